package bookcompiler

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"

	comicbot "github.com/opd-ai/montessoricomic/src"
)

func solid(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 120, B: 40, A: 255})
		}
	}
	return img
}

func encoded(t *testing.T, encode func(*bytes.Buffer, image.Image) error) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, encode(&buf, solid(24, 16)))
	return buf.Bytes()
}

func testComic(t *testing.T) *comicbot.Comic {
	pngData := encoded(t, func(b *bytes.Buffer, img image.Image) error { return png.Encode(b, img) })
	gifData := encoded(t, func(b *bytes.Buffer, img image.Image) error { return gif.Encode(b, img, nil) })

	return &comicbot.Comic{
		Theme:    "Learning to Share",
		Selected: "🌟 Story Option 1: The Sharing Circle\n📖 Description: Tom shares his blocks.\n🎯 Moral: Sharing brings joy.",
		Prompts: []string{
			"🎨 Panel 1: A child holding colorful blocks",
			"A child offering a block to a friend",
			"Two children building a tower together",
		},
		Panels: []comicbot.GeneratedPanel{
			{Index: 0, Prompt: "A child holding colorful blocks", Image: &comicbot.PanelImage{Data: pngData, MIME: "image/png"}},
			{Index: 1, Prompt: "A child offering a block to a friend", Err: "Could not generate panel 2. Please try again."},
			{Index: 2, Prompt: "Two children building a tower together", Image: &comicbot.PanelImage{Data: gifData, MIME: "image/gif"}},
		},
	}
}

func TestCompile(t *testing.T) {
	bc := NewBookCompiler()
	bc.SetCompression(false)

	var out bytes.Buffer
	require.NoError(t, bc.Compile(testComic(t), &out))

	pdf := out.String()
	assert.True(t, bytes.HasPrefix(out.Bytes(), []byte("%PDF-")))
	assert.Contains(t, pdf, "Learning to Share")
	assert.Contains(t, pdf, "Tom shares his blocks.")
	assert.Contains(t, pdf, "Panel 2")
	assert.Contains(t, pdf, "Could not generate panel 2. Please try again.")
	assert.GreaterOrEqual(t, bc.PageCount(), 2)
}

func TestCompilePageNumbers(t *testing.T) {
	for _, enable := range []bool{true, false} {
		bc := NewBookCompiler()
		bc.SetCompression(false)
		bc.SetPageNumbers(enable)

		var out bytes.Buffer
		require.NoError(t, bc.Compile(testComic(t), &out))
		assert.Equal(t, enable, strings.Contains(out.String(), "Page 1"), "page numbers %v", enable)
	}
}

func TestCompileWithoutStory(t *testing.T) {
	bc := NewBookCompiler()
	var out bytes.Buffer

	require.NoError(t, bc.Compile(&comicbot.Comic{Theme: "Exploring Nature"}, &out))
	assert.Equal(t, 1, bc.PageCount())
	assert.Error(t, bc.Compile(nil, &out))
}

func TestPDFImageConvertsUnsupportedFormats(t *testing.T) {
	bmpData := encoded(t, func(b *bytes.Buffer, img image.Image) error { return bmp.Encode(b, img) })

	data, imageType, err := pdfImage(&comicbot.PanelImage{Data: bmpData, MIME: "image/bmp"})
	require.NoError(t, err)
	assert.Equal(t, "PNG", imageType)
	decoded, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 24, decoded.Bounds().Dx())

	_, imageType, err = pdfImage(&comicbot.PanelImage{Data: []byte{0xff, 0xd8}, MIME: "image/jpeg"})
	require.NoError(t, err)
	assert.Equal(t, "JPG", imageType)

	_, _, err = pdfImage(&comicbot.PanelImage{Data: []byte("junk"), MIME: "image/webp"})
	assert.Error(t, err)
}

func TestStoryMarkdown(t *testing.T) {
	got := storyMarkdown("🌟 Title\n\n📖 Description: one\n  🎯 Moral: two  \n")
	assert.Equal(t, "Title\n\nDescription: one\n\nMoral: two", got)
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, `"Hi" - it's Ana's day...`, cleanText("\u201cHi\u201d \u2014 it\u2019s Ana\u2019s day\u2026\U0001F31F"))
	assert.Equal(t, "niño", cleanText("niño"))
}
