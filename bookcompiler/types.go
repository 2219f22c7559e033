package bookcompiler

import "github.com/jung-kurt/gofpdf"

// BookCompiler lays a generated comic out as a printable PDF: a cover page
// with the chosen story followed by the panels and their captions.
type BookCompiler struct {
	pdf         *gofpdf.Fpdf
	tr          func(string) string
	titleFont   string
	textFont    string
	pageNumbers bool
	compress    bool
	margin      float64
	// panelWidth is the printed width of a panel image in mm.
	panelWidth float64
}

// TextStyle holds current text formatting state
type TextStyle struct {
	FontFamily string
	Style      string
	Size       float64
}
