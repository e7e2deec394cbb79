package core

import (
	"context"

	"pkt.systems/icoder/schema"
)

// Gateway turns prompts into a structured agent response. Implementations
// recover malformed model output themselves; a returned error means no
// usable response exists for the turn.
type Gateway interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (schema.AgentResponse, error)
}

// CommandRunner executes shell commands.
type CommandRunner interface {
	Execute(ctx context.Context, req schema.ExecuteRequest) (schema.ExecuteResponse, error)
}

// Materializer mirrors files onto the preview and workspace roots.
type Materializer interface {
	SavePreview(ctx context.Context, req schema.SavePreviewRequest) (schema.SavePreviewResponse, error)
	SyncFiles(ctx context.Context, req schema.SyncFilesRequest) (schema.SyncFilesResponse, error)
}
