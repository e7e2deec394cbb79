package schema

// Backend wire payloads.

// ExecuteRequest asks the backend to run a shell command.
type ExecuteRequest struct {
	Command    string `json:"command"`
	WorkingDir string `json:"workingDir,omitempty"`
}

// ExecuteResponse reports the outcome of a command. Logical failure is
// signalled through Success, never through transport status.
type ExecuteResponse struct {
	Output    string `json:"output"`
	Success   bool   `json:"success"`
	Cwd       string `json:"cwd"`
	ServerURL string `json:"serverUrl,omitempty"`
}

// WireFile is a file entry exchanged with the materializer endpoints.
type WireFile struct {
	Name        string `json:"name"`
	Content     string `json:"content"`
	IsDirectory bool   `json:"isDirectory,omitempty"`
}

// SavePreviewRequest mirrors files into the preview root.
type SavePreviewRequest struct {
	Files      []WireFile `json:"files"`
	ClearFirst bool       `json:"clearFirst,omitempty"`
}

// SavePreviewResponse reports a preview save.
type SavePreviewResponse struct {
	Success    bool   `json:"success"`
	PreviewURL string `json:"previewUrl,omitempty"`
	Error      string `json:"error,omitempty"`
}

// SyncFilesRequest mirrors files into the workspace root.
type SyncFilesRequest struct {
	Files []WireFile `json:"files"`
}

// SyncFilesResponse reports a workspace sync.
type SyncFilesResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// WireFiles converts editor files into materializer entries.
func WireFiles(files []File) []WireFile {
	out := make([]WireFile, 0, len(files))
	for _, f := range files {
		out = append(out, WireFile{Name: f.Name, Content: f.Content, IsDirectory: f.IsDirectory})
	}
	return out
}

// Session lifecycle.

// CreateSessionRequest describes a request to create an editor session.
type CreateSessionRequest struct {
	// Files seeds the session with an initial project.
	Files []WireFile
}

// CreateSessionResponse reports the created session.
type CreateSessionResponse struct {
	Session SessionSnapshot `json:"session"`
}

// CloseSessionRequest describes a request to close a session.
type CloseSessionRequest struct {
	SessionID SessionID
}

// CloseSessionResponse reports the closed session.
type CloseSessionResponse struct {
	Session SessionSummary `json:"session"`
}

// ListSessionsRequest describes a request to list sessions.
type ListSessionsRequest struct{}

// ListSessionsResponse reports open sessions.
type ListSessionsResponse struct {
	Sessions []SessionSummary `json:"sessions"`
}

// GetSessionRequest describes a request for a session snapshot.
type GetSessionRequest struct {
	SessionID SessionID
}

// GetSessionResponse reports a session snapshot.
type GetSessionResponse struct {
	Session SessionSnapshot `json:"session"`
}

// Agent turns.

// SendMessageRequest submits a chat message for one agent turn.
type SendMessageRequest struct {
	SessionID SessionID
	Message   string
}

// SendMessageResponse reports the outcome of an agent turn.
type SendMessageResponse struct {
	UserMessage  ChatMessage     `json:"userMessage"`
	AgentMessage ChatMessage     `json:"agentMessage"`
	Files        []File          `json:"files"`
	Commands     []CommandResult `json:"commands,omitempty"`
}

// CommandResult captures one executed command within a turn.
type CommandResult struct {
	Command string          `json:"command"`
	Result  ExecuteResponse `json:"result"`
}

// Direct edits.

// FileAction is a direct user edit action.
type FileAction string

const (
	// FileActionCreate creates an empty or seeded file.
	FileActionCreate FileAction = "create"
	// FileActionWrite replaces file content and marks its tab dirty.
	FileActionWrite FileAction = "write"
	// FileActionDelete removes a file.
	FileActionDelete FileAction = "delete"
)

// EditFileRequest describes a direct user edit. Files are addressed by id
// when set, otherwise by name.
type EditFileRequest struct {
	SessionID SessionID
	Action    FileAction
	FileID    FileID
	Name      string
	Content   string
}

// EditFileResponse reports the edited file and resulting file set.
type EditFileResponse struct {
	File  File   `json:"file"`
	Files []File `json:"files"`
}

// OpenTabRequest opens (or activates) a tab for a file.
type OpenTabRequest struct {
	SessionID SessionID
	FileID    FileID
}

// OpenTabResponse reports tabs after opening.
type OpenTabResponse struct {
	Tab       Tab    `json:"tab"`
	Tabs      []Tab  `json:"tabs"`
	ActiveTab FileID `json:"activeTab"`
}

// CloseTabRequest closes a tab.
type CloseTabRequest struct {
	SessionID SessionID
	FileID    FileID
}

// CloseTabResponse reports tabs after closing.
type CloseTabResponse struct {
	Tabs      []Tab  `json:"tabs"`
	ActiveTab FileID `json:"activeTab"`
}

// Terminal and save.

// RunCommandRequest runs terminal input against the workspace.
type RunCommandRequest struct {
	SessionID SessionID
	Command   string
}

// RunCommandResponse reports the command result and transcript entry.
type RunCommandResponse struct {
	Result  ExecuteResponse `json:"result"`
	Message ChatMessage     `json:"message"`
}

// SaveFilesRequest saves the session file set to the preview root.
type SaveFilesRequest struct {
	SessionID  SessionID
	ClearFirst bool
}

// SaveFilesResponse reports the preview save.
type SaveFilesResponse struct {
	Result SavePreviewResponse `json:"result"`
}
