package core

import (
	"context"

	"pkt.systems/icoder/schema"
)

// Service is the transport-agnostic API for editor sessions and agent turns.
type Service interface {
	CreateSession(ctx context.Context, req schema.CreateSessionRequest) (schema.CreateSessionResponse, error)
	CloseSession(ctx context.Context, req schema.CloseSessionRequest) (schema.CloseSessionResponse, error)
	ListSessions(ctx context.Context, req schema.ListSessionsRequest) (schema.ListSessionsResponse, error)
	GetSession(ctx context.Context, req schema.GetSessionRequest) (schema.GetSessionResponse, error)
	SendMessage(ctx context.Context, req schema.SendMessageRequest) (schema.SendMessageResponse, error)
	EditFile(ctx context.Context, req schema.EditFileRequest) (schema.EditFileResponse, error)
	OpenTab(ctx context.Context, req schema.OpenTabRequest) (schema.OpenTabResponse, error)
	CloseTab(ctx context.Context, req schema.CloseTabRequest) (schema.CloseTabResponse, error)
	RunCommand(ctx context.Context, req schema.RunCommandRequest) (schema.RunCommandResponse, error)
	SaveFiles(ctx context.Context, req schema.SaveFilesRequest) (schema.SaveFilesResponse, error)
}
