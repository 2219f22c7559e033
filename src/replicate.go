package comicbot

import (
	"context"
	"fmt"
	"strings"

	"github.com/replicate/replicate-go"
	"go.uber.org/zap"
)

// DefaultImageModel is the fast SDXL variant used for every panel.
const DefaultImageModel = "lucataco/sdxl-lcm:fbbd475b1084de80c47c35bfe4ae64b964294aa7e237e6537eed938cfd24903d"

// ReplicateClient generates panel images through the Replicate predictions API.
type ReplicateClient struct {
	client *replicate.Client
	model  string
}

// NewReplicateClient authenticates with token and targets DefaultImageModel.
func NewReplicateClient(token string) (*ReplicateClient, error) {
	client, err := replicate.NewClient(replicate.WithToken(token))
	if err != nil {
		return nil, fmt.Errorf("creating replicate client: %w", err)
	}
	return &ReplicateClient{
		client: client,
		model:  DefaultImageModel,
	}, nil
}

// Generate runs the model once and returns the output image URLs.
func (c *ReplicateClient) Generate(ctx context.Context, prompt string, params ImageParams) ([]string, error) {
	logger.Debug("running image model", zap.String("model", c.model), zap.Int("prompt_len", len(prompt)))

	output, err := c.client.Run(ctx, c.model, predictionInput(prompt, params), nil)
	if err != nil {
		return nil, fmt.Errorf("replicate run: %w", err)
	}
	return outputURLs(output), nil
}

func predictionInput(prompt string, params ImageParams) replicate.PredictionInput {
	return replicate.PredictionInput{
		"prompt":              prompt,
		"negative_prompt":     params.NegativePrompt,
		"width":               params.Width,
		"height":              params.Height,
		"scheduler":           params.Scheduler,
		"num_inference_steps": params.Steps,
		"guidance_scale":      params.GuidanceScale,
	}
}

// outputURLs flattens a prediction output into image references. Models
// return either a list of URLs or a single URL.
func outputURLs(output any) []string {
	var urls []string
	switch v := output.(type) {
	case nil:
	case string:
		if s := strings.TrimSpace(v); s != "" {
			urls = append(urls, s)
		}
	case []string:
		for _, s := range v {
			urls = append(urls, outputURLs(s)...)
		}
	case []any:
		for _, item := range v {
			urls = append(urls, outputURLs(item)...)
		}
	case fmt.Stringer:
		urls = append(urls, outputURLs(v.String())...)
	}
	return urls
}
