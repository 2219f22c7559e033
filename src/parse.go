package comicbot

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// DefaultTitleHints are the words that mark a story's title line.
var DefaultTitleHints = []string{"story", "historia"}

var (
	jsonBlockRegex = regexp.MustCompile("(?s)```(?:json)?\\s*(.*\\S)\\s*```")

	// panelLabelRegex matches a leading ":", "3:" or "Panel 3:" label.
	panelLabelRegex = regexp.MustCompile(`(?i)^(?:panel\s*)?\d{0,3}\s*:`)
)

// StoryParser splits model output into story options.
type StoryParser struct {
	TitleHints []string
}

// NewStoryParser returns a parser using hints, or DefaultTitleHints when
// none are given.
func NewStoryParser(hints ...string) *StoryParser {
	cleaned := make([]string, 0, len(hints))
	for _, h := range hints {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			cleaned = append(cleaned, h)
		}
	}
	if len(cleaned) == 0 {
		cleaned = append(cleaned, DefaultTitleHints...)
	}
	return &StoryParser{TitleHints: cleaned}
}

// Parse returns the story options found in normalized text, in order of
// appearance. It never fails; unexpected text degrades to a single option.
func (p *StoryParser) Parse(text string) []StoryOption {
	text = strings.TrimSpace(text)
	if text == "" {
		return []StoryOption{}
	}
	if stories, ok := parseStoriesJSON(text); ok {
		return stories
	}

	stories := []StoryOption{}
	for _, block := range splitOnMarker(text, StoryMarker) {
		lines := nonEmptyLines(block)
		if len(lines) == 0 {
			continue
		}
		stories = append(stories, p.parseBlock(block, lines))
	}
	return stories
}

func (p *StoryParser) parseBlock(block string, lines []string) StoryOption {
	titleIdx := 0
	for i, line := range lines {
		if p.isTitle(line) {
			titleIdx = i
			break
		}
	}

	story := StoryOption{
		Title: lines[titleIdx],
		Raw:   block,
	}
	var desc, moral []string
	for i, line := range lines {
		if i == titleIdx {
			continue
		}
		switch {
		case strings.Contains(line, DescriptionMarker):
			desc = append(desc, line)
		case strings.Contains(line, MoralMarker):
			moral = append(moral, line)
		default:
			story.Extra = append(story.Extra, line)
		}
	}
	story.Description = strings.Join(desc, "\n")
	story.Moral = strings.Join(moral, "\n")
	return story
}

func (p *StoryParser) isTitle(line string) bool {
	lower := strings.ToLower(line)
	for _, hint := range p.TitleHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

// ParsePanelPrompts returns one illustration prompt per panel, in panel
// order. It never fails and makes no assumption about the panel count.
func ParsePanelPrompts(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return []string{}
	}
	if prompts, ok := parsePanelsJSON(text); ok {
		return prompts
	}

	marker := PanelMarker
	if !strings.Contains(text, PanelMarker) {
		marker = "Panel"
	}

	prompts := []string{}
	for _, fragment := range splitOnMarker(text, marker) {
		fragment = stripPanelLabel(fragment)
		if fragment == "" {
			continue
		}
		prompts = append(prompts, fragment)
	}
	return prompts
}

// stripPanelLabel drops a leading numeric label up to and including the
// first colon.
func stripPanelLabel(fragment string) string {
	fragment = strings.TrimSpace(fragment)
	if loc := panelLabelRegex.FindStringIndex(fragment); loc != nil {
		fragment = fragment[loc[1]:]
	}
	return strings.TrimSpace(fragment)
}

// splitOnMarker splits text on marker and drops empty fragments. Text in
// front of the first marker is preamble and is dropped as well, unless
// every fragment after it is empty; then, as with no marker at all, the
// leading text is the single fragment.
func splitOnMarker(text, marker string) []string {
	parts := strings.Split(text, marker)
	out := make([]string, 0, len(parts))
	for _, part := range parts[1:] {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) > 0 {
		return out
	}
	if lead := strings.TrimSpace(parts[0]); lead != "" {
		out = append(out, lead)
	}
	return out
}

func nonEmptyLines(block string) []string {
	var lines []string
	for _, line := range strings.Split(block, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// extractJSON returns the JSON document held by text, if any: either a
// fenced ```json block or the whole text.
func extractJSON(text string) (gjson.Result, bool) {
	candidate := text
	if m := jsonBlockRegex.FindStringSubmatch(text); len(m) > 1 {
		candidate = m[1]
	}
	candidate = strings.TrimSpace(candidate)
	if !strings.HasPrefix(candidate, "{") && !strings.HasPrefix(candidate, "[") {
		return gjson.Result{}, false
	}
	if !gjson.Valid(candidate) {
		return gjson.Result{}, false
	}
	return gjson.Parse(candidate), true
}

func parseStoriesJSON(text string) ([]StoryOption, bool) {
	doc, ok := extractJSON(text)
	if !ok {
		return nil, false
	}
	list := doc
	if doc.IsObject() {
		list = doc.Get("stories")
	}
	if !list.IsArray() {
		return nil, false
	}

	stories := []StoryOption{}
	for _, item := range list.Array() {
		if !item.IsObject() {
			continue
		}
		story := StoryOption{
			Title:       strings.TrimSpace(item.Get("title").String()),
			Description: strings.TrimSpace(item.Get("description").String()),
			Moral:       strings.TrimSpace(item.Get("moral").String()),
			Raw:         item.Raw,
		}
		if story.Title == "" && story.Description == "" && story.Moral == "" {
			continue
		}
		if story.Description != "" {
			story.Description = DescriptionMarker + " " + story.Description
		}
		if story.Moral != "" {
			story.Moral = MoralMarker + " " + story.Moral
		}
		stories = append(stories, story)
	}
	return stories, len(stories) > 0
}

func parsePanelsJSON(text string) ([]string, bool) {
	doc, ok := extractJSON(text)
	if !ok {
		return nil, false
	}
	list := doc
	if doc.IsObject() {
		list = doc.Get("panels")
	}
	if !list.IsArray() {
		return nil, false
	}

	prompts := []string{}
	for _, item := range list.Array() {
		var prompt string
		switch {
		case item.Type == gjson.String:
			prompt = item.String()
		case item.IsObject():
			prompt = item.Get("prompt").String()
			if prompt == "" {
				prompt = item.Get("description").String()
			}
		}
		if prompt = strings.TrimSpace(prompt); prompt != "" {
			prompts = append(prompts, prompt)
		}
	}
	return prompts, len(prompts) > 0
}
