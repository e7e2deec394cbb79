package backendclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pkt.systems/icoder/schema"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := New(srv.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestExecuteRoundTrip(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/execute" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if !strings.HasPrefix(r.Header.Get("User-Agent"), "icoder/") {
			t.Errorf("missing user agent, got %q", r.Header.Get("User-Agent"))
		}
		var req schema.ExecuteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		_ = json.NewEncoder(w).Encode(schema.ExecuteResponse{Output: "ran " + req.Command, Success: true, Cwd: req.WorkingDir})
	}))
	resp, err := client.Execute(context.Background(), schema.ExecuteRequest{Command: "ls", WorkingDir: "/w"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if resp.Output != "ran ls" || !resp.Success || resp.Cwd != "/w" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestExecuteFailureIsNotAnError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"output":"boom","success":false,"cwd":"/w"}`))
	}))
	resp, err := client.Execute(context.Background(), schema.ExecuteRequest{Command: "false"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if resp.Success || resp.Output != "boom" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestExecuteMissingCommand(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"No command provided"}`))
	}))
	if _, err := client.Execute(context.Background(), schema.ExecuteRequest{}); !errors.Is(err, schema.ErrNoCommand) {
		t.Fatalf("expected ErrNoCommand, got %v", err)
	}
}

func TestNon2xxStatus(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	_, err := client.SavePreview(context.Background(), schema.SavePreviewRequest{})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusBadGateway {
		t.Fatalf("expected status error, got %v", err)
	}
	if err.Error() != "Server returned 502" {
		t.Fatalf("unexpected error text %q", err.Error())
	}
}

func TestUnreachableBackend(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	client, err := New(url)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = client.SyncFiles(context.Background(), schema.SyncFilesRequest{})
	var connErr *ConnectError
	if !errors.As(err, &connErr) {
		t.Fatalf("expected connect error, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "Cannot connect to command server. ") {
		t.Fatalf("unexpected error text %q", err.Error())
	}
}

func TestExecuteNonJSONReplyIsNarrated(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("plain text from a proxy"))
	}))
	resp, err := client.Execute(context.Background(), schema.ExecuteRequest{Command: "ls", WorkingDir: "/w"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if resp.Success || resp.Output != "Server response: plain text from a proxy" || resp.Cwd != "/w" {
		t.Fatalf("unexpected response %+v", resp)
	}
	_, err = client.SyncFiles(context.Background(), schema.SyncFilesRequest{})
	var raw *RawReplyError
	if !errors.As(err, &raw) || raw.Body != "plain text from a proxy" {
		t.Fatalf("expected raw reply error, got %v", err)
	}
}

func TestSavePreviewAndSync(t *testing.T) {
	var paths []string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		switch r.URL.Path {
		case "/api/save-preview":
			var req schema.SavePreviewRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			if !req.ClearFirst || len(req.Files) != 1 {
				t.Errorf("unexpected save request %+v", req)
			}
			_ = json.NewEncoder(w).Encode(schema.SavePreviewResponse{Success: true, PreviewURL: "http://x/preview/index.html"})
		case "/api/sync-files":
			_ = json.NewEncoder(w).Encode(schema.SyncFilesResponse{Success: false, Error: "disk full"})
		}
	}))
	save, err := client.SavePreview(context.Background(), schema.SavePreviewRequest{
		Files:      []schema.WireFile{{Name: "a.txt", Content: "a"}},
		ClearFirst: true,
	})
	if err != nil || !save.Success || save.PreviewURL == "" {
		t.Fatalf("unexpected save %+v: %v", save, err)
	}
	sync, err := client.SyncFiles(context.Background(), schema.SyncFilesRequest{})
	if err != nil || sync.Success || sync.Error != "disk full" {
		t.Fatalf("unexpected sync %+v: %v", sync, err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected 2 requests, got %v", paths)
	}
}

func TestNewRejectsBadURL(t *testing.T) {
	if _, err := New("localhost"); err == nil {
		t.Fatalf("expected error for url without scheme")
	}
}
