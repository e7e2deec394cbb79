package core

import (
	"context"
	"sync"

	"pkt.systems/icoder/schema"
)

type stubGateway struct {
	mu      sync.Mutex
	resp    schema.AgentResponse
	err     error
	panics  bool
	prompts []string
	systems []string
	block   chan struct{}
}

func (g *stubGateway) Complete(ctx context.Context, systemPrompt, userPrompt string) (schema.AgentResponse, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, userPrompt)
	g.systems = append(g.systems, systemPrompt)
	block := g.block
	g.mu.Unlock()
	if block != nil {
		<-block
	}
	if g.panics {
		panic("boom")
	}
	return g.resp, g.err
}

func (g *stubGateway) lastPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.prompts) == 0 {
		return ""
	}
	return g.prompts[len(g.prompts)-1]
}

type stubRunner struct {
	mu      sync.Mutex
	calls   []schema.ExecuteRequest
	events  *[]string
	outputs map[string]schema.ExecuteResponse
	err     error
}

func (r *stubRunner) Execute(ctx context.Context, req schema.ExecuteRequest) (schema.ExecuteResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, req)
	if r.events != nil {
		*r.events = append(*r.events, "exec:"+req.Command)
	}
	if r.err != nil {
		return schema.ExecuteResponse{}, r.err
	}
	if resp, ok := r.outputs[req.Command]; ok {
		return resp, nil
	}
	return schema.ExecuteResponse{Output: "ran " + req.Command, Success: true, Cwd: req.WorkingDir}, nil
}

type stubMaterializer struct {
	mu      sync.Mutex
	saves   []schema.SavePreviewRequest
	syncs   []schema.SyncFilesRequest
	events  *[]string
	saveErr string
}

func (m *stubMaterializer) SavePreview(ctx context.Context, req schema.SavePreviewRequest) (schema.SavePreviewResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves = append(m.saves, req)
	if m.saveErr != "" {
		return schema.SavePreviewResponse{Success: false, Error: m.saveErr}, nil
	}
	return schema.SavePreviewResponse{Success: true, PreviewURL: "http://preview/index.html"}, nil
}

func (m *stubMaterializer) SyncFiles(ctx context.Context, req schema.SyncFilesRequest) (schema.SyncFilesResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncs = append(m.syncs, req)
	if m.events != nil {
		*m.events = append(*m.events, "sync")
	}
	return schema.SyncFilesResponse{Success: true, Message: "Files synced"}, nil
}

type recordingSink struct {
	mu       sync.Mutex
	sessions []schema.SessionEvent
	messages []schema.MessageEvent
	files    []schema.FilesEvent
	phases   []schema.Phase
}

func (s *recordingSink) OnSessionEvent(event schema.SessionEvent) {
	s.mu.Lock()
	s.sessions = append(s.sessions, event)
	s.mu.Unlock()
}

func (s *recordingSink) OnMessage(event schema.MessageEvent) {
	s.mu.Lock()
	s.messages = append(s.messages, event)
	s.mu.Unlock()
}

func (s *recordingSink) OnFiles(event schema.FilesEvent) {
	s.mu.Lock()
	s.files = append(s.files, event)
	s.mu.Unlock()
}

func (s *recordingSink) OnPhase(event schema.PhaseEvent) {
	s.mu.Lock()
	s.phases = append(s.phases, event.Phase)
	s.mu.Unlock()
}
