package schema

// FileOpType tags a file operation requested by the model.
type FileOpType string

const (
	// FileOpCreate creates a file, overwriting any file with the same name.
	FileOpCreate FileOpType = "create"
	// FileOpWrite replaces file content, creating the file when absent.
	FileOpWrite FileOpType = "write"
	// FileOpDelete removes a file by name.
	FileOpDelete FileOpType = "delete"
	// FileOpRead is accepted for prompt symmetry and has no effect.
	FileOpRead FileOpType = "read"
)

// CommandOpType tags a command operation requested by the model.
type CommandOpType string

// CommandOpExecute runs a shell command.
const CommandOpExecute CommandOpType = "execute"

// FileOperation is one file mutation from an agent response.
type FileOperation struct {
	Type    FileOpType `json:"type"`
	Path    string     `json:"path"`
	Content string     `json:"content,omitempty"`
}

// Mutates reports whether applying the operation can change a file set.
func (op FileOperation) Mutates() bool {
	switch op.Type {
	case FileOpCreate, FileOpWrite, FileOpDelete:
		return true
	default:
		return false
	}
}

// CommandOperation is one shell command from an agent response.
type CommandOperation struct {
	Type    CommandOpType `json:"type"`
	Command string        `json:"command"`
}

// CodeBlock is an illustrative snippet returned alongside the message.
type CodeBlock struct {
	Language string `json:"language"`
	Code     string `json:"code"`
	Filename string `json:"filename,omitempty"`
}

// AgentResponse is the structured contract recovered from the model output.
type AgentResponse struct {
	Message           string             `json:"message"`
	FileOperations    []FileOperation    `json:"fileOperations"`
	CommandOperations []CommandOperation `json:"commandOperations"`
	CodeBlocks        []CodeBlock        `json:"codeBlocks"`
}

// WithDefaults replaces missing operation lists with empty ones.
func (r AgentResponse) WithDefaults() AgentResponse {
	if r.FileOperations == nil {
		r.FileOperations = []FileOperation{}
	}
	if r.CommandOperations == nil {
		r.CommandOperations = []CommandOperation{}
	}
	if r.CodeBlocks == nil {
		r.CodeBlocks = []CodeBlock{}
	}
	return r
}

// TextResponse returns a response carrying only a message.
func TextResponse(message string) AgentResponse {
	return AgentResponse{Message: message}.WithDefaults()
}
