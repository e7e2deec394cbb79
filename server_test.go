package icoder

import (
	"context"
	"testing"
	"time"

	"pkt.systems/icoder/core"
	"pkt.systems/icoder/httpapi"
	"pkt.systems/icoder/schema"
)

type nopRunner struct{}

func (nopRunner) Execute(ctx context.Context, req schema.ExecuteRequest) (schema.ExecuteResponse, error) {
	return schema.ExecuteResponse{Success: true}, nil
}

type nopMaterializer struct{}

func (nopMaterializer) SavePreview(ctx context.Context, req schema.SavePreviewRequest) (schema.SavePreviewResponse, error) {
	return schema.SavePreviewResponse{Success: true}, nil
}

func (nopMaterializer) SyncFiles(ctx context.Context, req schema.SyncFilesRequest) (schema.SyncFilesResponse, error) {
	return schema.SyncFilesResponse{Success: true}, nil
}

func testDeps() ServerDeps {
	return ServerDeps{ServiceDeps: core.ServiceDeps{Runner: nopRunner{}, Materializer: nopMaterializer{}}}
}

func TestNewRequiresServices(t *testing.T) {
	if _, err := New(ServerConfig{}, testDeps()); err == nil {
		t.Fatalf("expected error without enabled services")
	}
	if _, err := New(ServerConfig{}, ServerDeps{}, WithHTTP()); err == nil {
		t.Fatalf("expected error without runner")
	}
	deps := ServerDeps{ServiceDeps: core.ServiceDeps{Runner: nopRunner{}}}
	if _, err := New(ServerConfig{}, deps, WithHTTP()); err == nil {
		t.Fatalf("expected error without materializer")
	}
}

func TestServerStopClosesSessions(t *testing.T) {
	cfg := ServerConfig{
		Service: schema.ServiceConfig{CommandDir: t.TempDir()},
		HTTP:    httpapi.Config{Addr: "127.0.0.1:0", PreviewRoot: t.TempDir()},
	}
	srv, err := New(cfg, testDeps(), WithHTTP())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	composite := srv.(*compositeServer)
	if _, err := composite.service.CreateSession(context.Background(), schema.CreateSessionRequest{}); err != nil {
		t.Fatalf("create session: %v", err)
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := srv.Start(context.Background()); err == nil {
		t.Fatalf("expected second Start to fail")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := srv.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	list, err := composite.service.ListSessions(context.Background(), schema.ListSessionsRequest{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list.Sessions) != 0 {
		t.Fatalf("expected sessions closed, got %d", len(list.Sessions))
	}
}

func TestWaitBeforeStart(t *testing.T) {
	srv, err := New(ServerConfig{}, testDeps(), WithHTTP())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := srv.Wait(); err == nil {
		t.Fatalf("expected Wait to fail before Start")
	}
	if err := srv.Stop(context.Background()); err != nil {
		t.Fatalf("Stop before Start: %v", err)
	}
}

func TestServerReportsListenFailure(t *testing.T) {
	cfg := ServerConfig{HTTP: httpapi.Config{Addr: "256.0.0.1:bad"}}
	srv, err := New(cfg, testDeps(), WithHTTP())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := srv.Wait(); err == nil {
		t.Fatalf("expected listen failure")
	}
}

type recordingSink struct {
	events []string
}

func (r *recordingSink) OnSessionEvent(schema.SessionEvent) { r.events = append(r.events, "session") }
func (r *recordingSink) OnMessage(schema.MessageEvent)      { r.events = append(r.events, "message") }
func (r *recordingSink) OnFiles(schema.FilesEvent)          { r.events = append(r.events, "files") }
func (r *recordingSink) OnPhase(schema.PhaseEvent)          { r.events = append(r.events, "phase") }

func TestEventFanoutSkipsNilSinks(t *testing.T) {
	first := &recordingSink{}
	second := &recordingSink{}
	fanout := eventFanout{sinks: []core.EventSink{first, nil, second}}
	fanout.OnSessionEvent(schema.SessionEvent{})
	fanout.OnMessage(schema.MessageEvent{})
	fanout.OnFiles(schema.FilesEvent{})
	fanout.OnPhase(schema.PhaseEvent{})
	for _, sink := range []*recordingSink{first, second} {
		if len(sink.events) != 4 {
			t.Fatalf("expected 4 events, got %v", sink.events)
		}
	}
}
