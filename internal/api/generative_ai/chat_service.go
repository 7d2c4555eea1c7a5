package generativeAI

import (
	"strings"

	"google.golang.org/genai"

	"github.com/FACorreiaa/go-itinerary-rag/internal/types"
)

// toContents maps a chat transcript onto Gemini contents. Gemini has no
// system role inside contents, so system turns join the instruction.
func toContents(system string, messages []types.ChatMessage) (string, []*genai.Content) {
	instructions := make([]string, 0, 2)
	if strings.TrimSpace(system) != "" {
		instructions = append(instructions, system)
	}

	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case types.RoleSystem:
			instructions = append(instructions, m.Content)
		case types.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return strings.Join(instructions, "\n\n"), contents
}
