package comicbot

import (
	"strings"
)

// Marker glyphs requested from the language model in the prompt templates.
const (
	StoryMarker       = "🌟"
	DescriptionMarker = "📖"
	MoralMarker       = "🎯"
	PanelMarker       = "🎨"
)

// StoryOption is one drafted story the user can choose from.
type StoryOption struct {
	Title       string
	Description string
	Moral       string
	Extra       []string
	Raw         string
}

// Text renders the option back into the marker template, which is the form
// the panel prompt template expects for the selected story.
func (s StoryOption) Text() string {
	var b strings.Builder
	b.WriteString(StoryMarker + " " + s.Title + "\n")
	if s.Description != "" {
		b.WriteString(s.Description + "\n")
	}
	if s.Moral != "" {
		b.WriteString(s.Moral + "\n")
	}
	for _, line := range s.Extra {
		b.WriteString(line + "\n")
	}
	return strings.TrimSpace(b.String())
}

// GeneratedPanel is a single comic panel. Image stays nil when every
// render attempt failed; Err then carries the reason shown to the user.
type GeneratedPanel struct {
	Index  int
	Prompt string
	Image  *PanelImage
	Err    string
}

// Number is the 1-based panel number used in labels.
func (p GeneratedPanel) Number() int {
	return p.Index + 1
}

// PanelImage holds downloaded image bytes and their decoded bounds.
type PanelImage struct {
	Data   []byte
	MIME   string
	Width  int
	Height int
	Source string
}

// Comic is everything produced by one headless generation run.
type Comic struct {
	Theme     string
	StoryText string
	Stories   []StoryOption
	Selected  string
	Prompts   []string
	Panels    []GeneratedPanel
}
