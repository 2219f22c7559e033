package comicbot

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var mimeExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// SaveToFiles writes the comic to outputDir: the story options, the chosen
// story, one caption per panel and every panel image that was produced.
func SaveToFiles(comic *Comic, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	storiesPath := filepath.Join(outputDir, "Stories.md")
	if err := os.WriteFile(storiesPath, []byte(storiesMarkdown(comic)), 0o644); err != nil {
		return fmt.Errorf("saving stories: %w", err)
	}

	if comic.Selected != "" {
		selectedPath := filepath.Join(outputDir, "Selected.md")
		if err := os.WriteFile(selectedPath, []byte(comic.Selected+"\n"), 0o644); err != nil {
			return fmt.Errorf("saving selected story: %w", err)
		}
	}

	for i, prompt := range comic.Prompts {
		captionPath := filepath.Join(outputDir, fmt.Sprintf("Caption_%02d.md", i+1))
		if err := os.WriteFile(captionPath, []byte(prompt+"\n"), 0o644); err != nil {
			return fmt.Errorf("saving caption %d: %w", i+1, err)
		}
	}

	for _, panel := range comic.Panels {
		if panel.Image == nil {
			continue
		}
		ext, ok := mimeExtensions[panel.Image.MIME]
		if !ok {
			ext = ".img"
		}
		imagePath := filepath.Join(outputDir, fmt.Sprintf("Panel_%02d%s", panel.Number(), ext))
		if err := os.WriteFile(imagePath, panel.Image.Data, 0o644); err != nil {
			return fmt.Errorf("saving panel %d: %w", panel.Number(), err)
		}
	}
	return nil
}

func storiesMarkdown(comic *Comic) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", comic.Theme)
	for _, story := range comic.Stories {
		fmt.Fprintf(&b, "## %s\n\n", story.Title)
		if story.Description != "" {
			fmt.Fprintf(&b, "**%s**\n\n", story.Description)
		}
		if story.Moral != "" {
			fmt.Fprintf(&b, "_%s_\n\n", story.Moral)
		}
		for _, line := range story.Extra {
			fmt.Fprintf(&b, "%s\n\n", line)
		}
	}
	return b.String()
}
