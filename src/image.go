package comicbot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/disintegration/imaging"
	"github.com/h2non/filetype"
	"github.com/vincent-petithory/dataurl"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	_ "golang.org/x/image/webp"
)

// Failure classes reported by PanelRenderer.Render.
var (
	ErrNetwork    = errors.New("network error")
	ErrNoImage    = errors.New("no image produced")
	ErrGeneration = errors.New("image generation failed")
)

// Fixed generation settings. These are content-safety and latency choices
// and are not tunable per call.
const (
	NegativePrompt    = "scary, violent, inappropriate, realistic, photographic"
	ImageWidth        = 768
	ImageHeight       = 512
	ImageScheduler    = "KarrasDPM"
	InferenceSteps    = 8
	GuidanceScale     = 7.5
	DefaultProbeURL   = "https://api.replicate.com/v1/predictions"
	DefaultAttempts   = 3
	DefaultRetryDelay = 2 * time.Second
	ProbeTimeout      = 5 * time.Second

	maxImageBytes = 32 << 20
)

// ImageParams is the configuration sent with every generation call.
type ImageParams struct {
	NegativePrompt string
	Width          int
	Height         int
	Scheduler      string
	Steps          int
	GuidanceScale  float64
}

// DefaultImageParams returns the fixed generation settings.
func DefaultImageParams() ImageParams {
	return ImageParams{
		NegativePrompt: NegativePrompt,
		Width:          ImageWidth,
		Height:         ImageHeight,
		Scheduler:      ImageScheduler,
		Steps:          InferenceSteps,
		GuidanceScale:  GuidanceScale,
	}
}

// ImageGenerator turns a prompt into an ordered list of image references,
// usually URLs. An empty list means the provider produced nothing.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string, params ImageParams) ([]string, error)
}

// PanelRenderer produces one panel image per prompt, retrying transient
// failures a fixed number of times with a constant delay.
type PanelRenderer struct {
	Generator    ImageGenerator
	Params       ImageParams
	HTTPClient   *http.Client
	ProbeURL     string
	ProbeTimeout time.Duration
	MaxAttempts  int
	RetryDelay   time.Duration
	// Limiter paces generation calls when set.
	Limiter  *rate.Limiter
	Progress Progressor

	newTimer func() backoff.Timer
}

func NewPanelRenderer(gen ImageGenerator, p Progressor) *PanelRenderer {
	return &PanelRenderer{
		Generator:    gen,
		Params:       DefaultImageParams(),
		HTTPClient:   &http.Client{Timeout: 2 * time.Minute},
		ProbeURL:     DefaultProbeURL,
		ProbeTimeout: ProbeTimeout,
		MaxAttempts:  DefaultAttempts,
		RetryDelay:   DefaultRetryDelay,
		Progress:     p,
	}
}

var promptCleaner = strings.NewReplacer(
	wrapperPrefix, "",
	wrapperSuffix, "",
	`"`, "",
)

// CleanImagePrompt strips wrapper artifacts and quotes, then drops any
// label up to and including the first colon.
func CleanImagePrompt(prompt string) string {
	cleaned := strings.TrimSpace(promptCleaner.Replace(prompt))
	if _, after, found := strings.Cut(cleaned, ":"); found {
		cleaned = strings.TrimSpace(after)
	}
	return cleaned
}

// Render returns the decoded image for prompt, or an error wrapping one of
// ErrNetwork, ErrNoImage or ErrGeneration once every attempt has failed.
func (r *PanelRenderer) Render(ctx context.Context, prompt string) (*PanelImage, error) {
	pr := progressorOrNull(r.Progress)
	cleaned := CleanImagePrompt(prompt)
	maxAttempts := r.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var (
		result  *PanelImage
		attempt int
	)
	operation := func() error {
		attempt++
		img, err := r.attempt(ctx, cleaned)
		if err != nil {
			return err
		}
		result = img
		return nil
	}
	notify := func(err error, next time.Duration) {
		logger.Warn("panel attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts),
			zap.Duration("retry_in", next),
			zap.Error(err))
		pr.UpdateOutput(retryMessage(err, attempt, maxAttempts))
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(r.RetryDelay), uint64(maxAttempts-1)),
		ctx,
	)
	var timer backoff.Timer
	if r.newTimer != nil {
		timer = r.newTimer()
	}
	if err := backoff.RetryNotifyWithTimer(operation, policy, notify, timer); err != nil {
		logger.Error("panel failed", zap.Int("attempts", attempt), zap.Error(err))
		if errors.Is(err, ErrNetwork) {
			pr.UpdateOutput(fmt.Sprintf("Network error after %d attempts: %v", attempt, err))
		} else {
			pr.UpdateOutput(fmt.Sprintf("Error generating image after %d attempts: %v", attempt, err))
		}
		return nil, fmt.Errorf("after %d attempts: %w", attempt, err)
	}
	return result, nil
}

func retryMessage(err error, attempt, maxAttempts int) string {
	if errors.Is(err, ErrNetwork) {
		return fmt.Sprintf("Network error on attempt %d/%d. Retrying...", attempt, maxAttempts)
	}
	return fmt.Sprintf("Error generating image: %v. Retrying... Attempt %d/%d", err, attempt+1, maxAttempts)
}

func (r *PanelRenderer) attempt(ctx context.Context, prompt string) (img *PanelImage, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			img, err = nil, fmt.Errorf("%w: panic: %v", ErrGeneration, rec)
		}
	}()

	if err := r.probe(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	if r.Limiter != nil {
		if err := r.Limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(err)
		}
	}

	refs, err := r.Generator.Generate(ctx, prompt, r.Params)
	if err != nil {
		if isNetworkError(err) {
			return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	if len(refs) == 0 || strings.TrimSpace(refs[0]) == "" {
		return nil, fmt.Errorf("%w: empty result", ErrNoImage)
	}
	return r.fetch(ctx, refs[0])
}

// probe checks that the provider endpoint answers at all. Any HTTP
// response, whatever its status, counts as reachable.
func (r *PanelRenderer) probe(ctx context.Context) error {
	if r.ProbeURL == "" {
		return nil
	}
	timeout := r.ProbeTimeout
	if timeout <= 0 {
		timeout = ProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.ProbeURL, nil)
	if err != nil {
		return err
	}
	resp, err := r.client().Do(req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return resp.Body.Close()
}

func (r *PanelRenderer) fetch(ctx context.Context, ref string) (*PanelImage, error) {
	var data []byte
	if strings.HasPrefix(ref, "data:") {
		decoded, err := decodeDataURI(ref)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNoImage, err)
		}
		data = decoded
	} else {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNoImage, err)
		}
		resp, err := r.client().Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%w: fetch status %d", ErrNoImage, resp.StatusCode)
		}
		data, err = io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
		}
	}

	img, err := DecodeImage(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoImage, err)
	}
	img.Source = ref
	if strings.HasPrefix(ref, "data:") {
		img.Source = "data:"
	}
	return img, nil
}

func (r *PanelRenderer) client() *http.Client {
	if r.HTTPClient != nil {
		return r.HTTPClient
	}
	return http.DefaultClient
}

// DecodeImage validates data as an image and records its type and bounds.
func DecodeImage(data []byte) (*PanelImage, error) {
	if len(data) == 0 {
		return nil, errors.New("empty image data")
	}
	decoded, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	bounds := decoded.Bounds()
	return &PanelImage{
		Data:   data,
		MIME:   sniffMIME(data),
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}

func sniffMIME(data []byte) string {
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return http.DetectContentType(data)
	}
	return kind.MIME.Value
}

func decodeDataURI(ref string) ([]byte, error) {
	du, err := dataurl.DecodeString(ref)
	if err != nil {
		return nil, err
	}
	return du.Data, nil
}

func isNetworkError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

