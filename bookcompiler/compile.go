package bookcompiler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/disintegration/imaging"
	"github.com/jung-kurt/gofpdf"

	comicbot "github.com/opd-ai/montessoricomic/src"
)

// NewBookCompiler creates a new instance of BookCompiler
func NewBookCompiler() *BookCompiler {
	return &BookCompiler{
		titleFont:   "Arial",
		textFont:    "Times",
		pageNumbers: true,
		compress:    true,
		margin:      20,
		panelWidth:  150,
	}
}

// SetPageNumbers toggles the "Page N" footer.
func (bc *BookCompiler) SetPageNumbers(enable bool) {
	bc.pageNumbers = enable
}

// SetCompression toggles stream compression, mostly useful for inspecting
// the output.
func (bc *BookCompiler) SetCompression(enable bool) {
	bc.compress = enable
}

// PageCount is the number of pages of the last compiled book.
func (bc *BookCompiler) PageCount() int {
	if bc.pdf == nil {
		return 0
	}
	return bc.pdf.PageNo()
}

// Compile writes comic to w as a PDF.
func (bc *BookCompiler) Compile(comic *comicbot.Comic, w io.Writer) error {
	if comic == nil {
		return errors.New("no comic to compile")
	}

	bc.pdf = gofpdf.New("P", "mm", "A4", "")
	bc.pdf.SetMargins(bc.margin, bc.margin, bc.margin)
	bc.pdf.SetAutoPageBreak(true, bc.margin)
	bc.pdf.SetCompression(bc.compress)
	bc.pdf.SetTitle(comic.Theme, true)
	bc.pdf.SetCreator("Montessori Comic Generator", true)
	bc.tr = bc.pdf.UnicodeTranslatorFromDescriptor("")

	if bc.pageNumbers {
		bc.pdf.SetFooterFunc(func() {
			bc.pdf.SetY(-15)
			bc.pdf.SetFont(bc.titleFont, "I", 8)
			bc.pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", bc.pdf.PageNo()),
				"", 0, "C", false, 0, "")
		})
	}

	if err := bc.coverPage(comic); err != nil {
		return fmt.Errorf("rendering cover: %w", err)
	}
	for i, prompt := range comic.Prompts {
		var panel *comicbot.GeneratedPanel
		if i < len(comic.Panels) {
			panel = &comic.Panels[i]
		}
		if err := bc.panel(i, prompt, panel); err != nil {
			return fmt.Errorf("rendering panel %d: %w", i+1, err)
		}
	}

	return bc.pdf.Output(w)
}

func (bc *BookCompiler) coverPage(comic *comicbot.Comic) error {
	bc.pdf.AddPage()
	bc.pdf.SetFont(bc.titleFont, "B", 28)
	bc.pdf.MultiCell(0, 12, bc.text(comic.Theme), "", "C", false)
	bc.pdf.Ln(10)

	story := comic.Selected
	if story == "" {
		return nil
	}
	return bc.renderMarkdown(storyMarkdown(story))
}

// storyMarkdown turns every non-empty line of a story into its own
// paragraph. Model output separates fields with single newlines and leads
// them with emoji markers.
func storyMarkdown(story string) string {
	var paragraphs []string
	for _, line := range strings.Split(story, "\n") {
		line = strings.TrimLeftFunc(line, func(r rune) bool {
			return r > unicode.MaxLatin1 || unicode.IsSpace(r)
		})
		if line = strings.TrimSpace(line); line != "" {
			paragraphs = append(paragraphs, line)
		}
	}
	return strings.Join(paragraphs, "\n\n")
}

func (bc *BookCompiler) panel(index int, prompt string, panel *comicbot.GeneratedPanel) error {
	contentWidth := bc.contentWidth()
	width := bc.panelWidth
	if width > contentWidth {
		width = contentWidth
	}

	var info *gofpdf.ImageInfoType
	var name string
	var opts gofpdf.ImageOptions
	height := width * 2 / 3
	if panel != nil && panel.Image != nil {
		data, imageType, err := pdfImage(panel.Image)
		if err != nil {
			return err
		}
		name = fmt.Sprintf("panel-%02d", index+1)
		opts = gofpdf.ImageOptions{ImageType: imageType}
		info = bc.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
		if err := bc.pdf.Error(); err != nil {
			return err
		}
		if info.Width() > 0 {
			height = width * info.Height() / info.Width()
		}
	}

	_, pageHeight := bc.pdf.GetPageSize()
	if bc.pdf.GetY()+height+30 > pageHeight-bc.margin {
		bc.pdf.AddPage()
	}

	bc.pdf.SetFont(bc.titleFont, "B", 14)
	bc.pdf.CellFormat(0, 8, fmt.Sprintf("Panel %d", index+1), "", 1, "L", false, 0, "")

	x := bc.margin + (contentWidth-width)/2
	y := bc.pdf.GetY()
	if info != nil {
		bc.pdf.ImageOptions(name, x, y, width, height, false, opts, 0, "")
	} else {
		msg := "Not generated yet."
		if panel != nil && panel.Err != "" {
			msg = panel.Err
		}
		bc.pdf.SetDrawColor(160, 160, 160)
		bc.pdf.Rect(x, y, width, height, "D")
		bc.pdf.SetFont(bc.textFont, "I", 11)
		bc.pdf.SetXY(x, y+height/2-4)
		bc.pdf.CellFormat(width, 8, bc.text(msg), "", 0, "C", false, 0, "")
	}
	bc.pdf.SetY(y + height + 3)

	bc.pdf.SetFont(bc.textFont, "I", 10)
	bc.pdf.MultiCell(0, 5, bc.text(comicbot.CleanImagePrompt(prompt)), "", "L", false)
	bc.pdf.Ln(6)
	return bc.pdf.Error()
}

func (bc *BookCompiler) contentWidth() float64 {
	pageWidth, _ := bc.pdf.GetPageSize()
	left, _, right, _ := bc.pdf.GetMargins()
	return pageWidth - left - right
}

// pdfImage returns image bytes the PDF writer can embed, re-encoding
// formats it does not read as PNG.
func pdfImage(img *comicbot.PanelImage) ([]byte, string, error) {
	switch img.MIME {
	case "image/png":
		return img.Data, "PNG", nil
	case "image/jpeg":
		return img.Data, "JPG", nil
	case "image/gif":
		return img.Data, "GIF", nil
	}

	decoded, err := imaging.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return nil, "", fmt.Errorf("decoding %s panel: %w", img.MIME, err)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, decoded, imaging.PNG); err != nil {
		return nil, "", fmt.Errorf("re-encoding panel: %w", err)
	}
	return buf.Bytes(), "PNG", nil
}
