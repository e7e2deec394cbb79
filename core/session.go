package core

import (
	"sync"
	"time"

	"pkt.systems/icoder/schema"
)

// Session is the owned editor context an agent turn operates on: the file
// set, tabs, transcript, and flattened chat history.
type Session struct {
	id        schema.SessionID
	createdAt time.Time

	mu         sync.Mutex
	files      []schema.File
	tabs       []schema.Tab
	activeTab  schema.FileID
	messages   []schema.ChatMessage
	history    *chatHistory
	phase      schema.Phase
	busy       bool
	previewURL string
	serverURL  string
}

// NewSession constructs an empty session.
func NewSession(id schema.SessionID, createdAt time.Time, historyMax int) *Session {
	return &Session{
		id:        id,
		createdAt: createdAt,
		history:   newChatHistory(historyMax),
		phase:     schema.PhaseIdle,
	}
}

// ID returns the session id.
func (s *Session) ID() schema.SessionID { return s.id }

// Files returns a copy of the current file set.
func (s *Session) Files() []schema.File {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]schema.File(nil), s.files...)
}

// Messages returns a copy of the transcript.
func (s *Session) Messages() []schema.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]schema.ChatMessage(nil), s.messages...)
}

// History returns the flattened chat history.
func (s *Session) History() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.String()
}

// Phase returns the current agent phase.
func (s *Session) Phase() schema.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Snapshot returns a transport-friendly view of the session.
func (s *Session) Snapshot() schema.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return schema.SessionSnapshot{
		ID:         s.id,
		CreatedAt:  s.createdAt,
		Files:      append([]schema.File{}, s.files...),
		Tabs:       append([]schema.Tab{}, s.tabs...),
		ActiveTab:  s.activeTab,
		Messages:   append([]schema.ChatMessage{}, s.messages...),
		Phase:      s.phase,
		PreviewURL: s.previewURL,
		ServerURL:  s.serverURL,
	}
}

// Summary returns a compact listing view of the session.
func (s *Session) Summary() schema.SessionSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return schema.SessionSummary{
		ID:        s.id,
		CreatedAt: s.createdAt,
		Files:     len(s.files),
		Messages:  len(s.messages),
		Phase:     s.phase,
	}
}

func (s *Session) tryBegin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return false
	}
	s.busy = true
	return true
}

func (s *Session) finish() {
	s.mu.Lock()
	s.busy = false
	s.phase = schema.PhaseIdle
	s.mu.Unlock()
}

func (s *Session) setPhase(phase schema.Phase) {
	s.mu.Lock()
	s.phase = phase
	s.mu.Unlock()
}

func (s *Session) fileNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.files))
	for _, f := range s.files {
		names = append(names, f.Name)
	}
	return names
}

// appendUserMessage records a user chat message and returns the updated
// flattened history.
func (s *Session) appendUserMessage(msg schema.ChatMessage) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return s.history.AppendUser(msg.Content)
}

// appendAgentMessage records an agent message; withHistory also feeds it
// into the flattened history used by later prompts.
func (s *Session) appendAgentMessage(msg schema.ChatMessage, withHistory bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	if withHistory {
		s.history.AppendAgent(msg.Content)
	}
}

func (s *Session) applyOperations(ops []schema.FileOperation, newFileID func() schema.FileID) FoldResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := ApplyFileOperations(s.files, ops, newFileID)
	s.files = result.Files
	return result
}

func (s *Session) filesEvent() schema.FilesEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return schema.FilesEvent{
		SessionID: s.id,
		Files:     append([]schema.File{}, s.files...),
		Tabs:      append([]schema.Tab{}, s.tabs...),
		ActiveTab: s.activeTab,
	}
}

func (s *Session) setPreviewURL(url string) {
	if url == "" {
		return
	}
	s.mu.Lock()
	s.previewURL = url
	s.mu.Unlock()
}

func (s *Session) setServerURL(url string) {
	if url == "" {
		return
	}
	s.mu.Lock()
	s.serverURL = url
	s.mu.Unlock()
}
