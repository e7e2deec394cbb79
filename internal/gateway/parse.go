package gateway

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"pkt.systems/icoder/schema"
)

const (
	// MaxFallbackMessageLen bounds raw model text echoed into chat.
	MaxFallbackMessageLen = 500
	// RephraseMessage replaces oversized unparseable model output.
	RephraseMessage = "I apologize, but I had trouble processing that request. Please try rephrasing."
	// ErrorMessage is returned when the completion API cannot be reached.
	ErrorMessage = "Sorry, I encountered an error processing your request. Please try again."
)

var (
	fencedObjectRe = regexp.MustCompile("```(?:json)?\\s*(\\{[\\s\\S]*?\\})\\s*```")
	messageFieldRe = regexp.MustCompile(`"message"\s*:\s*"([^"]*)"`)
	errNotAnObject = errors.New("response is not a JSON object")
)

// ParseResponse recovers an agent response from model text. A strict JSON
// decode is attempted first; on failure a message-only response is built
// from the text and all operation lists are empty.
func ParseResponse(text string) schema.AgentResponse {
	trimmed := strings.TrimSpace(text)
	resp, err := DecodeStrict(trimmed)
	if err == nil {
		return resp
	}
	return Fallback(trimmed)
}

// ExtractJSON selects the candidate JSON document from trimmed model text.
// A whole-text object wins over a fenced block.
func ExtractJSON(trimmed string) string {
	candidate := trimmed
	if m := fencedObjectRe.FindStringSubmatch(trimmed); m != nil {
		candidate = m[1]
	}
	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		candidate = trimmed
	}
	return candidate
}

// DecodeStrict decodes the candidate JSON object into an agent response.
func DecodeStrict(trimmed string) (schema.AgentResponse, error) {
	candidate := strings.TrimSpace(ExtractJSON(trimmed))
	if !strings.HasPrefix(candidate, "{") {
		return schema.AgentResponse{}, errNotAnObject
	}
	var resp schema.AgentResponse
	if err := json.Unmarshal([]byte(candidate), &resp); err != nil {
		return schema.AgentResponse{}, err
	}
	return resp.WithDefaults(), nil
}

// Fallback builds a message-only response from text that failed to decode.
func Fallback(trimmed string) schema.AgentResponse {
	message := trimmed
	if strings.Contains(message, `"message"`) {
		if m := messageFieldRe.FindStringSubmatch(message); m != nil {
			message = m[1]
		}
	}
	if utf8.RuneCountInString(message) > MaxFallbackMessageLen {
		message = RephraseMessage
	}
	return schema.TextResponse(message)
}

// ErrorResponse is the fixed response for unreachable completions.
func ErrorResponse() schema.AgentResponse {
	return schema.TextResponse(ErrorMessage)
}
