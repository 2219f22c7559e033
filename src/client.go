package comicbot

import (
	"context"
	"strings"
)

// Client is a language model that answers a single user-role prompt.
type Client interface {
	SendMessage(ctx context.Context, prompt string, maxTokens int64) (Content, error)
}

// ContentBlock is one block of a model response.
type ContentBlock struct {
	Type string
	Text string
}

// Content is the ordered list of blocks returned by the model.
type Content []ContentBlock

// Text joins the text of every block.
func (c Content) Text() string {
	parts := make([]string, 0, len(c))
	for _, block := range c {
		if block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "\n")
}
