package types

import (
	"fmt"
	"strings"
)

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// ChatMessage is one turn of a conversation.
type ChatMessage struct {
	Role    MessageRole `json:"role"` // user, assistant, system
	Content string      `json:"content"`
}

// Validate rejects unknown roles and empty content.
func (m ChatMessage) Validate() error {
	switch m.Role {
	case RoleUser, RoleAssistant, RoleSystem:
	default:
		return fmt.Errorf("unsupported chat role %q", m.Role)
	}
	if strings.TrimSpace(m.Content) == "" {
		return fmt.Errorf("chat message with role %q has empty content", m.Role)
	}
	return nil
}

// NewChatTranscript returns system, history..., user as a fresh slice.
// The history slice is copied and never written to.
func NewChatTranscript(system string, history []ChatMessage, query string) []ChatMessage {
	transcript := make([]ChatMessage, 0, len(history)+2)
	transcript = append(transcript, ChatMessage{Role: RoleSystem, Content: system})
	transcript = append(transcript, history...)
	transcript = append(transcript, ChatMessage{Role: RoleUser, Content: query})
	return transcript
}

// ChatRequest is the body of POST /api/v1/chat.
type ChatRequest struct {
	Histories []ChatMessage `json:"histories"`
	Query     string        `json:"query"`
	Date      string        `json:"date"`
	Country   string        `json:"country"`
	StartTime string        `json:"startTime"`
	EndTime   string        `json:"endTime"`
	Address   string        `json:"address"`
}
