package schema

// Phase is the agent turn state.
type Phase string

const (
	// PhaseIdle waits for user input.
	PhaseIdle Phase = "idle"
	// PhasePrompting builds the model prompt.
	PhasePrompting Phase = "prompting"
	// PhaseAwaitingCompletion waits on the gateway.
	PhaseAwaitingCompletion Phase = "awaiting_completion"
	// PhaseApplyingFileOps folds file operations into the session.
	PhaseApplyingFileOps Phase = "applying_file_ops"
	// PhaseExecutingCommands runs command operations in order.
	PhaseExecutingCommands Phase = "executing_commands"
	// PhaseSettled records the agent message.
	PhaseSettled Phase = "settled"
)

// SessionEventType describes session lifecycle changes.
type SessionEventType string

const (
	// SessionEventCreated indicates a new session.
	SessionEventCreated SessionEventType = "created"
	// SessionEventClosed indicates a closed session.
	SessionEventClosed SessionEventType = "closed"
)

// SessionEvent describes a session lifecycle change.
type SessionEvent struct {
	SessionID SessionID        `json:"session"`
	Type      SessionEventType `json:"type"`
}

// MessageEvent carries a transcript append.
type MessageEvent struct {
	SessionID SessionID   `json:"session"`
	Message   ChatMessage `json:"message"`
}

// FilesEvent carries the file set and tabs after a change.
type FilesEvent struct {
	SessionID SessionID `json:"session"`
	Files     []File    `json:"files"`
	Tabs      []Tab     `json:"tabs"`
	ActiveTab FileID    `json:"activeTab,omitempty"`
}

// PhaseEvent carries an agent phase transition.
type PhaseEvent struct {
	SessionID SessionID `json:"session"`
	TurnID    string    `json:"turn,omitempty"`
	Phase     Phase     `json:"phase"`
}
