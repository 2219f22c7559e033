package session

import (
	"sync"
	"time"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is a user-visible progress, warning or error message.
type Notice struct {
	Level     Level
	Text      string
	Timestamp time.Time
}

// maxNotices bounds the history kept per session.
const maxNotices = 50

type MessageHistory struct {
	Messages []Notice
	mu       sync.RWMutex
}

func (h *MessageHistory) AddMessage(msg Notice) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	h.Messages = append(h.Messages, msg)
	if len(h.Messages) > maxNotices {
		h.Messages = h.Messages[len(h.Messages)-maxNotices:]
	}
}

func (h *MessageHistory) GetMessages() []Notice {
	h.mu.RLock()
	defer h.mu.RUnlock()
	messages := make([]Notice, len(h.Messages))
	copy(messages, h.Messages)
	return messages
}

// Drain returns the messages and clears the history.
func (h *MessageHistory) Drain() []Notice {
	h.mu.Lock()
	defer h.mu.Unlock()
	messages := h.Messages
	h.Messages = nil
	return messages
}
