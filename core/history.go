package core

import (
	"strings"
	"unicode/utf8"
)

// chatHistory is the flattened transcript fed into prompts. It keeps the
// newest max bytes.
type chatHistory struct {
	text strings.Builder
	max  int
}

func newChatHistory(max int) *chatHistory {
	return &chatHistory{max: max}
}

func (h *chatHistory) AppendUser(text string) string {
	return h.append("\nUser: " + text)
}

func (h *chatHistory) AppendAgent(text string) string {
	return h.append("\nAI: " + text)
}

func (h *chatHistory) String() string {
	if h == nil {
		return ""
	}
	return h.text.String()
}

func (h *chatHistory) append(entry string) string {
	h.text.WriteString(entry)
	if h.max > 0 && h.text.Len() > h.max {
		current := h.text.String()
		cut := len(current) - h.max
		for cut < len(current) && !utf8.RuneStart(current[cut]) {
			cut++
		}
		h.text.Reset()
		h.text.WriteString(current[cut:])
	}
	return h.text.String()
}
