package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"pkt.systems/icoder/internal/logx"
	"pkt.systems/icoder/schema"
)

// Backend endpoints answer 200 for logical failures; callers inspect the
// success and error fields.

var backendEndpoints = []string{"/api/execute", "/api/save-preview", "/api/sync-files"}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "Backend is running",
		"endpoints": backendEndpoints,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "OK"})
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	log := logx.Ctx(r.Context())
	var req schema.ExecuteRequest
	if err := decodeLenient(r.Body, &req); err != nil {
		log.Warn("http execute decode failed", "err", err)
	}
	if strings.TrimSpace(req.Command) == "" {
		writeJSON(w, http.StatusOK, map[string]any{"error": "No command provided"})
		return
	}
	if s.runner == nil {
		writeJSON(w, http.StatusOK, schema.ExecuteResponse{Output: schema.ErrRunnerUnavailable.Error(), Cwd: req.WorkingDir})
		return
	}
	// Only the executor timeout ends a command; a client disconnect does not.
	resp, err := s.runner.Execute(context.WithoutCancel(r.Context()), req)
	if err != nil {
		log.Warn("http execute failed", "err", err)
		if errors.Is(err, schema.ErrNoCommand) {
			writeJSON(w, http.StatusOK, map[string]any{"error": "No command provided"})
			return
		}
		writeJSON(w, http.StatusOK, schema.ExecuteResponse{Output: err.Error(), Cwd: req.WorkingDir})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSavePreview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	log := logx.Ctx(r.Context())
	var body wireFilesBody
	if err := decodeLenient(r.Body, &body); err != nil {
		log.Warn("http save-preview decode failed", "err", err)
		writeJSON(w, http.StatusOK, schema.SavePreviewResponse{Success: false, Error: err.Error()})
		return
	}
	req := schema.SavePreviewRequest{Files: body.wireFiles(), ClearFirst: body.ClearFirst}
	if s.materializer == nil {
		writeJSON(w, http.StatusOK, schema.SavePreviewResponse{Success: false, Error: schema.ErrRunnerUnavailable.Error()})
		return
	}
	resp, err := s.materializer.SavePreview(r.Context(), req)
	if err != nil {
		log.Warn("http save-preview failed", "err", err)
		resp = schema.SavePreviewResponse{Success: false, Error: err.Error()}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSyncFiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	log := logx.Ctx(r.Context())
	var body wireFilesBody
	if err := decodeLenient(r.Body, &body); err != nil {
		log.Warn("http sync-files decode failed", "err", err)
		writeJSON(w, http.StatusOK, schema.SyncFilesResponse{Success: false, Error: err.Error()})
		return
	}
	req := schema.SyncFilesRequest{Files: body.wireFiles()}
	if s.materializer == nil {
		writeJSON(w, http.StatusOK, schema.SyncFilesResponse{Success: false, Error: schema.ErrRunnerUnavailable.Error()})
		return
	}
	resp, err := s.materializer.SyncFiles(r.Context(), req)
	if err != nil {
		log.Warn("http sync-files failed", "err", err)
		resp = schema.SyncFilesResponse{Success: false, Error: err.Error()}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) previewHandler() http.Handler {
	if strings.TrimSpace(s.cfg.PreviewRoot) == "" {
		return http.NotFoundHandler()
	}
	return http.StripPrefix("/preview/", http.FileServer(http.Dir(s.cfg.PreviewRoot)))
}

// decodeLenient accepts browser payloads that carry extra editor fields
// (ids, language tags) alongside the ones the backend reads.
func decodeLenient(body io.Reader, target any) error {
	err := json.NewDecoder(body).Decode(target)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// wireFilesBody is the save-preview and sync-files payload. Entries stay raw
// so a malformed entry is dropped instead of failing the request.
type wireFilesBody struct {
	Files      []json.RawMessage `json:"files"`
	ClearFirst bool              `json:"clearFirst"`
}

// wireFiles keeps entries whose name is a non-empty JSON string and whose
// content is a JSON string.
func (b wireFilesBody) wireFiles() []schema.WireFile {
	files := make([]schema.WireFile, 0, len(b.Files))
	for _, raw := range b.Files {
		var entry struct {
			Name        json.RawMessage `json:"name"`
			Content     json.RawMessage `json:"content"`
			IsDirectory json.RawMessage `json:"isDirectory"`
		}
		if err := json.Unmarshal(raw, &entry); err != nil {
			continue
		}
		name, ok := jsonString(entry.Name)
		if !ok || name == "" {
			continue
		}
		content, ok := jsonString(entry.Content)
		if !ok {
			continue
		}
		files = append(files, schema.WireFile{
			Name:        name,
			Content:     content,
			IsDirectory: bytes.Equal(bytes.TrimSpace(entry.IsDirectory), []byte("true")),
		})
	}
	return files
}

func jsonString(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}
