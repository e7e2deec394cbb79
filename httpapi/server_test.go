package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pkt.systems/icoder/core"
	"pkt.systems/icoder/schema"
)

type gatewayFunc func(ctx context.Context, system, user string) (schema.AgentResponse, error)

func (f gatewayFunc) Complete(ctx context.Context, system, user string) (schema.AgentResponse, error) {
	return f(ctx, system, user)
}

type fakeRunner struct{}

func (fakeRunner) Execute(ctx context.Context, req schema.ExecuteRequest) (schema.ExecuteResponse, error) {
	return schema.ExecuteResponse{Output: "ran " + req.Command, Success: true, Cwd: req.WorkingDir}, nil
}

type fakeMaterializer struct{}

func (fakeMaterializer) SavePreview(ctx context.Context, req schema.SavePreviewRequest) (schema.SavePreviewResponse, error) {
	return schema.SavePreviewResponse{Success: true, PreviewURL: "http://preview/index.html"}, nil
}

func (fakeMaterializer) SyncFiles(ctx context.Context, req schema.SyncFilesRequest) (schema.SyncFilesResponse, error) {
	return schema.SyncFilesResponse{Success: true, Message: "Files synced"}, nil
}

func postJSON(t *testing.T, url string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	switch v := body.(type) {
	case string:
		buf.WriteString(v)
	default:
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	resp, err := http.Post(url, "application/json", &buf)
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func newSessionServer(t *testing.T, gw core.Gateway) (*httptest.Server, *Hub) {
	t.Helper()
	hub := NewHub(100)
	svc, err := core.NewService(schema.ServiceConfig{CommandDir: t.TempDir()}, core.ServiceDeps{
		Gateway:      gw,
		Runner:       fakeRunner{},
		Materializer: fakeMaterializer{},
		EventSink:    hub,
	})
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	srv := NewServer(Config{}, svc, fakeRunner{}, fakeMaterializer{}, hub)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, hub
}

func createSession(t *testing.T, baseURL string) schema.SessionSnapshot {
	t.Helper()
	var resp schema.CreateSessionResponse
	if status := postJSON(t, baseURL+"/api/sessions", `{}`, &resp); status != http.StatusOK {
		t.Fatalf("create session status %d", status)
	}
	return resp.Session
}

func TestChatEndpointRunsTurn(t *testing.T) {
	gw := gatewayFunc(func(ctx context.Context, system, user string) (schema.AgentResponse, error) {
		return schema.AgentResponse{
			Message:        "done",
			FileOperations: []schema.FileOperation{{Type: schema.FileOpCreate, Path: "hello.txt", Content: "Hi"}},
		}, nil
	})
	ts, _ := newSessionServer(t, gw)
	sess := createSession(t, ts.URL)
	if len(sess.Messages) != 1 || sess.Messages[0].Content != core.GreetingMessage {
		t.Fatalf("expected greeting, got %+v", sess.Messages)
	}

	var resp schema.SendMessageResponse
	status := postJSON(t, ts.URL+"/api/chat", map[string]any{"session": sess.ID, "message": "create hello.txt"}, &resp)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if resp.AgentMessage.Content != "done\n\n✅ Created hello.txt" {
		t.Fatalf("unexpected agent message %q", resp.AgentMessage.Content)
	}
	if len(resp.Files) != 1 || resp.Files[0].Content != "Hi" {
		t.Fatalf("unexpected files %+v", resp.Files)
	}

	get, err := http.Get(ts.URL + "/api/session?session=" + string(sess.ID))
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	defer get.Body.Close()
	var snap schema.GetSessionResponse
	if err := json.NewDecoder(get.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(snap.Session.Messages) != 3 || snap.Session.PreviewURL != "http://preview/index.html" {
		t.Fatalf("unexpected snapshot %+v", snap.Session)
	}
}

func TestSessionErrorsMapToStatus(t *testing.T) {
	ts, _ := newSessionServer(t, gatewayFunc(func(ctx context.Context, system, user string) (schema.AgentResponse, error) {
		return schema.TextResponse("ok"), nil
	}))
	cases := []struct {
		path string
		body any
		want int
	}{
		{"/api/chat", map[string]any{"session": "missing", "message": "hi"}, http.StatusNotFound},
		{"/api/chat", map[string]any{"session": "bad id", "message": "hi"}, http.StatusBadRequest},
		{"/api/chat", map[string]any{"session": "x", "unknown": true}, http.StatusBadRequest},
		{"/api/tabs", map[string]any{"session": "missing", "action": "spin"}, http.StatusBadRequest},
		{"/api/command", map[string]any{"session": "missing", "command": "ls"}, http.StatusNotFound},
	}
	for _, tc := range cases {
		var body map[string]any
		if status := postJSON(t, ts.URL+tc.path, tc.body, &body); status != tc.want {
			t.Fatalf("%s %v: expected %d, got %d (%v)", tc.path, tc.body, tc.want, status, body)
		}
		if _, ok := body["error"]; !ok {
			t.Fatalf("expected error payload for %s", tc.path)
		}
	}
	sess := createSession(t, ts.URL)
	var body map[string]any
	if status := postJSON(t, ts.URL+"/api/chat", map[string]any{"session": sess.ID, "message": "  "}, &body); status != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty prompt, got %d", status)
	}
}

func TestFilesTabsCommandAndSave(t *testing.T) {
	ts, _ := newSessionServer(t, gatewayFunc(func(ctx context.Context, system, user string) (schema.AgentResponse, error) {
		return schema.TextResponse("ok"), nil
	}))
	sess := createSession(t, ts.URL)

	var created schema.EditFileResponse
	if status := postJSON(t, ts.URL+"/api/files", map[string]any{"session": sess.ID, "action": "create", "name": "app.js", "content": "1"}, &created); status != http.StatusOK {
		t.Fatalf("create file status %d", status)
	}
	var opened schema.OpenTabResponse
	if status := postJSON(t, ts.URL+"/api/tabs", map[string]any{"session": sess.ID, "action": "open", "id": created.File.ID}, &opened); status != http.StatusOK {
		t.Fatalf("open tab status %d", status)
	}
	if opened.ActiveTab != created.File.ID {
		t.Fatalf("expected active tab %s, got %s", created.File.ID, opened.ActiveTab)
	}
	var closed schema.CloseTabResponse
	if status := postJSON(t, ts.URL+"/api/tabs", map[string]any{"session": sess.ID, "action": "close", "id": created.File.ID}, &closed); status != http.StatusOK {
		t.Fatalf("close tab status %d", status)
	}
	if len(closed.Tabs) != 0 || closed.ActiveTab != "" {
		t.Fatalf("unexpected tabs after close %+v", closed)
	}

	var ran schema.RunCommandResponse
	if status := postJSON(t, ts.URL+"/api/command", map[string]any{"session": sess.ID, "command": "ls"}, &ran); status != http.StatusOK {
		t.Fatalf("command status %d", status)
	}
	if ran.Message.Content != "⚙️ Executed: ls\nran ls" {
		t.Fatalf("unexpected command message %q", ran.Message.Content)
	}

	var saved schema.SaveFilesResponse
	if status := postJSON(t, ts.URL+"/api/save", map[string]any{"session": sess.ID}, &saved); status != http.StatusOK {
		t.Fatalf("save status %d", status)
	}
	if !saved.Result.Success {
		t.Fatalf("expected save success, got %+v", saved)
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/sessions?session="+string(sess.ID), nil)
	del, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	del.Body.Close()
	if del.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on close, got %d", del.StatusCode)
	}
	var list schema.ListSessionsResponse
	get, err := http.Get(ts.URL + "/api/sessions")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	_ = json.NewDecoder(get.Body).Decode(&list)
	get.Body.Close()
	if len(list.Sessions) != 0 {
		t.Fatalf("expected no sessions, got %+v", list.Sessions)
	}
}

func TestStreamDeliversSnapshotAndEvents(t *testing.T) {
	ts, hub := newSessionServer(t, gatewayFunc(func(ctx context.Context, system, user string) (schema.AgentResponse, error) {
		return schema.TextResponse("ok"), nil
	}))
	sess := createSession(t, ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/stream?session="+string(sess.ID), nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	events := make(chan StreamEvent, 16)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var event StreamEvent
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err == nil {
				events <- event
			}
		}
		close(events)
	}()

	first := <-events
	if first.Type != "snapshot" || first.Snapshot == nil || first.Snapshot.ID != sess.ID {
		t.Fatalf("expected snapshot first, got %+v", first)
	}
	hub.OnPhase(schema.PhaseEvent{SessionID: sess.ID, Phase: schema.PhasePrompting})
	select {
	case event := <-events:
		if event.Type != "phase" || event.Phase != schema.PhasePrompting || event.Seq == 0 {
			t.Fatalf("unexpected event %+v", event)
		}
	case <-ctx.Done():
		t.Fatalf("timed out waiting for phase event")
	}
}

func TestStreamRequiresSession(t *testing.T) {
	ts, _ := newSessionServer(t, gatewayFunc(func(ctx context.Context, system, user string) (schema.AgentResponse, error) {
		return schema.TextResponse("ok"), nil
	}))
	resp, err := http.Get(ts.URL + "/api/stream")
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
