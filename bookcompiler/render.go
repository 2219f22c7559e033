package bookcompiler

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"

	"github.com/russross/blackfriday/v2"
	"golang.org/x/net/html"
)

var headingStyles = map[string]TextStyle{
	"h1": {FontFamily: "Arial", Style: "B", Size: 22},
	"h2": {FontFamily: "Arial", Style: "B", Size: 18},
	"h3": {FontFamily: "Arial", Style: "B", Size: 14},
}

func (bc *BookCompiler) renderMarkdown(md string) error {
	htmlBytes := blackfriday.Run([]byte(md))
	doc, err := html.Parse(bytes.NewReader(htmlBytes))
	if err != nil {
		return fmt.Errorf("parsing story HTML: %w", err)
	}
	bc.pdf.SetFont(bc.textFont, "", 12)
	bc.renderNode(doc, TextStyle{FontFamily: bc.textFont, Size: 12})
	return bc.pdf.Error()
}

// renderNode writes n and its children using style as the inherited
// font; inline elements restore it on the way out.
func (bc *BookCompiler) renderNode(n *html.Node, style TextStyle) {
	switch n.Type {
	case html.TextNode:
		if text := bc.text(n.Data); strings.TrimSpace(text) != "" {
			bc.pdf.Write(6, text)
		}
		return
	case html.ElementNode:
	default:
		bc.renderChildren(n, style)
		return
	}

	switch n.Data {
	case "h1", "h2", "h3":
		hs := headingStyles[n.Data]
		bc.pdf.Ln(4)
		bc.pdf.SetFont(hs.FontFamily, hs.Style, hs.Size)
		bc.renderChildren(n, hs)
		bc.pdf.Ln(hs.Size / 2)
		bc.setFont(style)
	case "p":
		bc.renderChildren(n, style)
		bc.pdf.Ln(8)
	case "strong", "b":
		bold := style
		bold.Style = addStyle(style.Style, "B")
		bc.setFont(bold)
		bc.renderChildren(n, bold)
		bc.setFont(style)
	case "em", "i":
		italic := style
		italic.Style = addStyle(style.Style, "I")
		bc.setFont(italic)
		bc.renderChildren(n, italic)
		bc.setFont(style)
	case "ul", "ol":
		bc.pdf.Ln(2)
		bc.renderChildren(n, style)
		bc.pdf.Ln(2)
	case "li":
		bc.pdf.SetX(bc.margin + 5)
		bc.pdf.Write(6, "- ")
		bc.renderChildren(n, style)
		bc.pdf.Ln(6)
	case "br":
		bc.pdf.Ln(6)
	case "img", "script", "style":
	default:
		bc.renderChildren(n, style)
	}
}

func (bc *BookCompiler) renderChildren(n *html.Node, style TextStyle) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		bc.renderNode(c, style)
	}
}

func (bc *BookCompiler) setFont(style TextStyle) {
	bc.pdf.SetFont(style.FontFamily, style.Style, style.Size)
}

func addStyle(current, s string) string {
	if strings.Contains(current, s) {
		return current
	}
	return current + s
}

// text prepares s for the core fonts, which only cover cp1252.
func (bc *BookCompiler) text(s string) string {
	return bc.tr(cleanText(s))
}

var quoteReplacer = strings.NewReplacer(
	"\u201c", `"`, "\u201d", `"`,
	"\u2018", "'", "\u2019", "'",
	"\u2026", "...",
	"\u2013", "-", "\u2014", "-",
)

// cleanText drops emoji and other symbols the core fonts cannot draw.
func cleanText(s string) string {
	return strings.Map(func(r rune) rune {
		if r > unicode.MaxLatin1 {
			return -1
		}
		return r
	}, quoteReplacer.Replace(s))
}
