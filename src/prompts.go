package comicbot

import (
	"fmt"
	"strings"
)

// Token budgets for the two model calls.
const (
	StoryMaxTokens = 4000
	PanelMaxTokens = 1000
)

func GetStoryOptionsPrompt(theme string) string {
	return fmt.Sprintf(`Answer in the same language as the user's input.
As an expert in Montessori education and children's literature, generate 3 different story options for a children's comic book about %s.
If the theme asks for a specific number of options, generate that number instead.
Each story should:
- Be suitable for children aged 4-8
- Incorporate Montessori principles like independence, natural learning, and respect
- Have a clear moral or educational message
- Be structured in 6-8 scenes
- Include interactive elements or questions

Format your response EXACTLY like this example (keep the emojis):

%s Story Option 1: The Garden Adventure
%s Description: Sarah learns about plant growth and responsibility.
%s Moral: Taking care of living things teaches us patience and love.

%s Story Option 2: The Sharing Circle
%s Description: Tom discovers the joy of sharing with friends.
%s Moral: Sharing brings happiness to ourselves and others.

%s Story Option 3: The Clean-Up Hero
%s Description: Maria learns to organize her room independently.
%s Moral: Being organized helps us be more independent.`,
		strings.TrimSpace(theme),
		StoryMarker, DescriptionMarker, MoralMarker,
		StoryMarker, DescriptionMarker, MoralMarker,
		StoryMarker, DescriptionMarker, MoralMarker)
}

// GetPanelPromptsPrompt builds the request for per-panel illustration
// prompts. The photo only changes the wording; its pixels are never sent.
func GetPanelPromptsPrompt(story string, withPhoto bool) string {
	character := "a child who will be the main character"
	if withPhoto {
		character = "a photo of a child who will be the main character"
	}
	return fmt.Sprintf(`Given this story for a children's comic book:
%s

And considering we have %s,
generate 6-8 detailed image prompts that will work well with Stable Diffusion.
Each prompt should:
- Describe a key scene from the story
- Include style directions for a child-friendly, illustrated look
- Mention it should be in the style of a children's book illustration
- Be safe and appropriate for children

Format your response EXACTLY like this example:

%s Panel 1:
[Your detailed prompt here]

%s Panel 2:
[Your detailed prompt here]

(and so on...)`,
		strings.TrimSpace(story), character, PanelMarker, PanelMarker)
}
