package schema

import "time"

// SessionID identifies an editor session.
type SessionID string

// FileID identifies a file within a session. It is stable for the session.
type FileID string

// MessageID identifies a chat message.
type MessageID string

// File is a named text file held in editor memory.
type File struct {
	ID          FileID `json:"id"`
	Name        string `json:"name"`
	Content     string `json:"content"`
	Language    string `json:"language"`
	IsDirectory bool   `json:"isDirectory"`
	ParentID    FileID `json:"parentId,omitempty"`
}

// Tab is an editor view over an open file. Name is cached at open time.
type Tab struct {
	ID      FileID `json:"id"`
	Name    string `json:"name"`
	IsDirty bool   `json:"isDirty"`
}

// ChatMessage is a single transcript entry.
type ChatMessage struct {
	ID        MessageID `json:"id"`
	Content   string    `json:"content"`
	IsUser    bool      `json:"isUser"`
	Timestamp time.Time `json:"timestamp"`
}
