package comicbot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

var logger = zap.NewNop()

// SetLogger replaces the package logger. A nil logger disables logging.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger = l
}

var ErrEmptyTheme = errors.New("theme is empty")

// Progressor receives user-facing progress messages.
type Progressor interface {
	UpdateOutput(message string)
}

type nullProgressor struct{}

func (n nullProgressor) UpdateOutput(message string) {}

func progressorOrNull(p Progressor) Progressor {
	if p == nil {
		return nullProgressor{}
	}
	return p
}

// GenerateStoryOptions asks the model for story options about theme and
// returns both the normalized response and the parsed options.
func GenerateStoryOptions(ctx context.Context, client Client, parser *StoryParser, theme string, p Progressor) (string, []StoryOption, error) {
	pr := progressorOrNull(p)
	theme = strings.TrimSpace(theme)
	if theme == "" {
		return "", nil, ErrEmptyTheme
	}
	if parser == nil {
		parser = NewStoryParser()
	}

	pr.UpdateOutput("Generating story options...")
	response, err := client.SendMessage(ctx, GetStoryOptionsPrompt(theme), StoryMaxTokens)
	if err != nil {
		return "", nil, fmt.Errorf("generating story options: %w", err)
	}
	text := Normalize(response)
	stories := parser.Parse(text)
	logger.Info("story options generated", zap.String("theme", theme), zap.Int("options", len(stories)))
	pr.UpdateOutput(fmt.Sprintf("Generated %d story options", len(stories)))
	return text, stories, nil
}

// GenerateImagePrompts asks the model for one illustration prompt per
// panel of story.
func GenerateImagePrompts(ctx context.Context, client Client, story string, photo *Photo, p Progressor) ([]string, error) {
	pr := progressorOrNull(p)
	story = strings.TrimSpace(story)
	if story == "" {
		return nil, errors.New("story is empty")
	}

	pr.UpdateOutput("Generating image prompts...")
	response, err := client.SendMessage(ctx, GetPanelPromptsPrompt(story, photo != nil), PanelMaxTokens)
	if err != nil {
		return nil, fmt.Errorf("generating image prompts: %w", err)
	}
	prompts := ParsePanelPrompts(Normalize(response))
	logger.Info("panel prompts generated", zap.Int("panels", len(prompts)))
	return prompts, nil
}

// Renderer produces the image for one panel prompt.
type Renderer interface {
	Render(ctx context.Context, prompt string) (*PanelImage, error)
}

// RenderPanels renders prompts one at a time in order. each, when set, is
// called after every panel. Failed panels keep a nil Image and an Err.
func RenderPanels(ctx context.Context, renderer Renderer, prompts []string, p Progressor, each func(GeneratedPanel)) ([]GeneratedPanel, error) {
	pr := progressorOrNull(p)
	panels := make([]GeneratedPanel, 0, len(prompts))
	for i, prompt := range prompts {
		if err := ctx.Err(); err != nil {
			return panels, err
		}
		panel := GeneratedPanel{Index: i, Prompt: prompt}
		pr.UpdateOutput(fmt.Sprintf("Creating panel %d...", panel.Number()))

		img, err := renderer.Render(ctx, prompt)
		if err != nil {
			panel.Err = fmt.Sprintf("Could not generate panel %d. Please try again.", panel.Number())
			logger.Warn("panel not generated", zap.Int("panel", panel.Number()), zap.Error(err))
		} else {
			panel.Image = img
		}
		if each != nil {
			each(panel)
		}
		panels = append(panels, panel)
	}
	return panels, nil
}

// GenerateComic runs the whole pipeline without user interaction: the
// option at index selected is used as the story.
func GenerateComic(ctx context.Context, client Client, parser *StoryParser, renderer Renderer, theme string, selected int, photo *Photo, p Progressor) (*Comic, error) {
	text, stories, err := GenerateStoryOptions(ctx, client, parser, theme, p)
	if err != nil {
		return nil, err
	}
	comic := &Comic{Theme: theme, StoryText: text, Stories: stories}
	if len(stories) == 0 {
		return comic, errors.New("no story options in response")
	}
	if selected < 0 || selected >= len(stories) {
		return comic, fmt.Errorf("story option %d out of range (have %d)", selected+1, len(stories))
	}
	comic.Selected = stories[selected].Text()

	comic.Prompts, err = GenerateImagePrompts(ctx, client, comic.Selected, photo, p)
	if err != nil {
		return comic, err
	}
	comic.Panels, err = RenderPanels(ctx, renderer, comic.Prompts, p, nil)
	return comic, err
}
