package schema

import "time"

// SessionSummary is a compact view of a session for listings.
type SessionSummary struct {
	ID        SessionID `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Files     int       `json:"files"`
	Messages  int       `json:"messages"`
	Phase     Phase     `json:"phase"`
}

// SessionSnapshot is a read-only view of session state for transports.
type SessionSnapshot struct {
	ID         SessionID     `json:"id"`
	CreatedAt  time.Time     `json:"createdAt"`
	Files      []File        `json:"files"`
	Tabs       []Tab         `json:"tabs"`
	ActiveTab  FileID        `json:"activeTab,omitempty"`
	Messages   []ChatMessage `json:"messages"`
	Phase      Phase         `json:"phase"`
	PreviewURL string        `json:"previewUrl,omitempty"`
	ServerURL  string        `json:"serverUrl,omitempty"`
}
