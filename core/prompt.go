package core

import "strings"

// DefaultSystemPrompt declares the JSON contract the model must answer with.
const DefaultSystemPrompt = `You are a coding assistant with access to file system operations and command execution.

IMPORTANT: You must ALWAYS respond with valid JSON in this exact format:
{
  "message": "Your response message to the user",
  "fileOperations": [
    {
      "type": "read|write|create|delete",
      "path": "filename.ext",
      "content": "file content (only for write/create)"
    }
  ],
  "commandOperations": [
    {
      "type": "execute",
      "command": "command to run"
    }
  ],
  "codeBlocks": [
    {
      "language": "javascript|html|css|etc",
      "code": "code content",
      "filename": "optional filename"
    }
  ]
}

Available tools:
1. File operations:
   - read: read file content
   - write: modify an existing file
   - create: create a new file
   - delete: delete a file

2. Command operations:
   - execute: run shell commands (npm install, build commands, etc.)

Rules:
- ALWAYS respond with valid JSON only
- Put helpful explanations in the "message" field
- If npm install fails with ENOTEMPTY or corruption errors, use "rm -rf node_modules package-lock.json && npm install" instead
- Use commandOperations for package installations or builds
- Include code examples in codeBlocks when helpful
- When you update a file, only emit that file, not every file in the project`

// BuildUserPrompt renders the per-turn prompt from the current file names,
// the flattened chat history (already including the latest utterance), and
// the latest utterance itself.
func BuildUserPrompt(fileNames []string, history, request string) string {
	var b strings.Builder
	b.WriteString("You are a coding assistant with file system access.\n\n")
	b.WriteString("Current files: ")
	b.WriteString(strings.Join(fileNames, ", "))
	b.WriteString("\n\nChat history: ")
	b.WriteString(history)
	b.WriteString("\n\nUser request: ")
	b.WriteString(request)
	b.WriteString("\n\nRespond with JSON containing:\n")
	b.WriteString("- message: your response\n")
	b.WriteString(`- fileOperations: array of {type: "create"|"write"|"delete", path: "filename", content: "file content"}` + "\n")
	b.WriteString(`- commandOperations: array of {type: "execute", command: "shell command"}` + "\n\n")
	b.WriteString("Use create for new files, write for updating existing files.")
	return b.String()
}
