package schema

import "errors"

var (
	// ErrInvalidRequest indicates a malformed request payload.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidSession indicates an invalid session identifier.
	ErrInvalidSession = errors.New("invalid session")
	// ErrSessionNotFound indicates a requested session could not be found.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionBusy indicates the session is already running an agent turn.
	ErrSessionBusy = errors.New("session is busy")
	// ErrEmptyPrompt indicates the chat message was empty.
	ErrEmptyPrompt = errors.New("empty prompt")
	// ErrNoCommand indicates a command request without a command.
	ErrNoCommand = errors.New("no command provided")
	// ErrInvalidFileName indicates a file name that cannot be materialized.
	ErrInvalidFileName = errors.New("invalid file name")
	// ErrFileNotFound indicates a requested file could not be found.
	ErrFileNotFound = errors.New("file not found")
	// ErrTabNotFound indicates a requested tab could not be found.
	ErrTabNotFound = errors.New("tab not found")
	// ErrGatewayUnavailable indicates no language-model gateway is configured.
	ErrGatewayUnavailable = errors.New("gateway not configured")
	// ErrRunnerUnavailable indicates no command runner is configured.
	ErrRunnerUnavailable = errors.New("command runner not configured")
	// ErrPathEscapesRoot indicates a file name resolving outside its root.
	ErrPathEscapesRoot = errors.New("path escapes root")
)
