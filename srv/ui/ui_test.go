package ui

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	comicbot "github.com/opd-ai/montessoricomic/src"
)

const (
	storyReply = "Here you go!\n🌟 Story Option 1: The Garden Adventure\n📖 Description: Sarah plants seeds.\n🎯 Moral: Patience.\n🌟 Story Option 2: The Sharing Circle\n📖 Description: Tom shares.\n🎯 Moral: Sharing brings joy."
	panelReply = "🎨 Panel 1:\nA child planting seeds\n🎨 Panel 2:\nA dog in the garden\n🎨 Panel 3:\nFlowers blooming"
)

type fakeClient struct {
	prompts  []string
	err      error
	panelErr error
}

func (f *fakeClient) SendMessage(ctx context.Context, prompt string, maxTokens int64) (comicbot.Content, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return nil, f.err
	}
	if strings.Contains(prompt, "story options") {
		return comicbot.Content{{Type: "text", Text: storyReply}}, nil
	}
	if f.panelErr != nil {
		return nil, f.panelErr
	}
	return comicbot.Content{{Type: "text", Text: panelReply}}, nil
}

type fakeRenderer struct {
	fail map[string]bool
	data []byte
}

func (f *fakeRenderer) Render(ctx context.Context, prompt string) (*comicbot.PanelImage, error) {
	if f.fail[prompt] {
		return nil, comicbot.ErrNoImage
	}
	return &comicbot.PanelImage{Data: f.data, MIME: "image/png", Source: prompt}, nil
}

type testBrowser struct {
	t      *testing.T
	ui     *GeneratorUI
	cookie *http.Cookie
}

func newBrowser(t *testing.T, opts Options) *testBrowser {
	t.Helper()
	if opts.Client == nil {
		opts.Client = &fakeClient{}
	}
	if opts.NewRenderer == nil {
		renderer := &fakeRenderer{fail: map[string]bool{"A dog in the garden": true}, data: testPNG(t)}
		opts.NewRenderer = func(p comicbot.Progressor) comicbot.Renderer { return renderer }
	}
	return &testBrowser{t: t, ui: NewGeneratorUI(opts)}
}

func (b *testBrowser) do(req *http.Request) *httptest.ResponseRecorder {
	if b.cookie != nil {
		req.AddCookie(b.cookie)
	}
	rec := httptest.NewRecorder()
	b.ui.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookie {
			b.cookie = c
		}
	}
	return rec
}

func (b *testBrowser) get(path string) *httptest.ResponseRecorder {
	return b.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (b *testBrowser) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func (b *testBrowser) postStories(theme string, photo []byte) *httptest.ResponseRecorder {
	b.t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(b.t, mw.WriteField("theme", theme))
	if photo != nil {
		fw, err := mw.CreateFormFile("photo", "kid.png")
		require.NoError(b.t, err)
		_, err = fw.Write(photo)
		require.NoError(b.t, err)
	}
	require.NoError(b.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/stories", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return b.do(req)
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	return buf.Bytes()
}

func TestHealthCheck(t *testing.T) {
	b := newBrowser(t, Options{})
	rec := b.get("/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHomeIssuesSessionCookie(t *testing.T) {
	b := newBrowser(t, Options{})
	rec := b.get("/")

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, b.cookie)
	assert.True(t, isValidSession(b.cookie.Value))
	assert.True(t, b.cookie.HttpOnly)
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Contains(t, rec.Body.String(), "Generate Story Options")
	assert.NotContains(t, rec.Body.String(), `action="/login"`)

	first := b.cookie.Value
	b.get("/")
	assert.Equal(t, first, b.cookie.Value)
}

func TestComicFlow(t *testing.T) {
	client := &fakeClient{}
	b := newBrowser(t, Options{Client: client})

	rec := b.postStories("Learning to Share", testPNG(t))
	require.Equal(t, http.StatusSeeOther, rec.Code)

	page := b.get("/").Body.String()
	assert.Contains(t, page, "Story Option 1: The Garden Adventure")
	assert.Contains(t, page, "Story Option 2: The Sharing Circle")
	assert.NotContains(t, page, "Here you go!")
	assert.Contains(t, page, "Current photo: kid.png")

	rec = b.postForm("/panels", url.Values{"option": {"2"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Len(t, client.prompts, 2)
	assert.Contains(t, client.prompts[1], "Story Option 2: The Sharing Circle")
	assert.Contains(t, client.prompts[1], "a photo of a child")

	page = b.get("/").Body.String()
	assert.Contains(t, page, "Panel 3")
	assert.Contains(t, page, `src="/panels/0/image"`)
	assert.NotContains(t, page, `src="/panels/1/image"`)
	assert.Contains(t, page, "Could not generate panel 2. Please try again.")

	img := b.get("/panels/0/image")
	assert.Equal(t, http.StatusOK, img.Code)
	assert.Equal(t, "image/png", img.Header().Get("Content-Type"))
	assert.Equal(t, testPNG(t), img.Body.Bytes())

	assert.Equal(t, http.StatusNotFound, b.get("/panels/1/image").Code)
	assert.Equal(t, http.StatusNotFound, b.get("/panels/7/image").Code)
	assert.Equal(t, http.StatusNotFound, b.get("/panels/x/image").Code)

	pdf := b.get("/comic.pdf")
	assert.Equal(t, http.StatusOK, pdf.Code)
	assert.Equal(t, "application/pdf", pdf.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(pdf.Body.String(), "%PDF-"))
}

func TestComicPDFNeedsPanels(t *testing.T) {
	b := newBrowser(t, Options{})
	assert.Equal(t, http.StatusNotFound, b.get("/comic.pdf").Code)

	gated := newBrowser(t, Options{Password: "pw"})
	assert.Equal(t, http.StatusUnauthorized, gated.get("/comic.pdf").Code)
}

func TestPastedStoryWins(t *testing.T) {
	client := &fakeClient{}
	b := newBrowser(t, Options{Client: client})
	require.Equal(t, http.StatusSeeOther, b.postStories("Sharing", testPNG(t)).Code)

	rec := b.postForm("/panels", url.Values{"option": {"1"}, "story": {"My own story about sharing"}})

	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Contains(t, client.prompts[1], "My own story about sharing")
	assert.NotContains(t, client.prompts[1], "The Garden Adventure")
}

func TestStoriesValidation(t *testing.T) {
	b := newBrowser(t, Options{})

	assert.Equal(t, http.StatusBadRequest, b.postStories("", testPNG(t)).Code)
	assert.Equal(t, http.StatusBadRequest, b.postStories("Sharing", nil).Code)
	assert.Equal(t, http.StatusBadRequest, b.postStories("Sharing", []byte("not a photo")).Code)
}

func TestPanelsValidation(t *testing.T) {
	b := newBrowser(t, Options{})
	require.Equal(t, http.StatusSeeOther, b.postStories("Sharing", testPNG(t)).Code)

	assert.Equal(t, http.StatusBadRequest, b.postForm("/panels", url.Values{}).Code)
	assert.Equal(t, http.StatusBadRequest, b.postForm("/panels", url.Values{"option": {"3"}}).Code)
	assert.Equal(t, http.StatusBadRequest, b.postForm("/panels", url.Values{"option": {"zero"}}).Code)
}

func TestProviderFailureBecomesNotice(t *testing.T) {
	b := newBrowser(t, Options{Client: &fakeClient{err: errors.New("overloaded")}})

	rec := b.postStories("Sharing", testPNG(t))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	assert.Contains(t, b.get("/").Body.String(), "Failed to generate story options. Please try again.")
}

func TestPromptFailureBecomesNotice(t *testing.T) {
	client := &fakeClient{}
	b := newBrowser(t, Options{Client: client})
	require.Equal(t, http.StatusSeeOther, b.postStories("Sharing", testPNG(t)).Code)

	client.panelErr = errors.New("overloaded")
	rec := b.postForm("/panels", url.Values{"option": {"1"}})

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	page := b.get("/").Body.String()
	assert.Contains(t, page, "Failed to generate image prompts. Please try again.")
	assert.NotContains(t, page, "/comic.pdf")
}

func TestPasswordGate(t *testing.T) {
	b := newBrowser(t, Options{Password: "open sesame"})

	page := b.get("/").Body.String()
	assert.Contains(t, page, `action="/login"`)
	assert.NotContains(t, page, "Generate Story Options")
	assert.Equal(t, http.StatusUnauthorized, b.postStories("Sharing", testPNG(t)).Code)

	rec := b.postForm("/login", url.Values{"password": {"wrong"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	page = b.get("/").Body.String()
	assert.Contains(t, page, "Incorrect password")
	assert.Contains(t, page, `action="/login"`)

	b.postForm("/login", url.Values{"password": {"open sesame"}})
	page = b.get("/").Body.String()
	assert.Contains(t, page, "Generate Story Options")
	assert.Equal(t, http.StatusSeeOther, b.postStories("Sharing", testPNG(t)).Code)

	state, ok := b.ui.sessions.Lookup(b.cookie.Value)
	require.True(t, ok)
	assert.True(t, state.Authenticated)

	b.postForm("/logout", nil)
	_, ok = b.ui.sessions.Lookup(state.ID)
	assert.False(t, ok)
}

func TestSessionsAreIsolated(t *testing.T) {
	alice := newBrowser(t, Options{})
	bob := &testBrowser{t: t, ui: alice.ui}

	require.Equal(t, http.StatusSeeOther, alice.postStories("Sharing", testPNG(t)).Code)

	assert.Contains(t, alice.get("/").Body.String(), "The Garden Adventure")
	assert.NotContains(t, bob.get("/").Body.String(), "The Garden Adventure")
}

func TestPostRateLimit(t *testing.T) {
	b := newBrowser(t, Options{RateLimit: 1})

	assert.Equal(t, http.StatusSeeOther, b.postForm("/login", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, b.postForm("/login", nil).Code)
	assert.Equal(t, http.StatusOK, b.get("/").Code)
}
