package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pkt.systems/icoder/core"
	"pkt.systems/icoder/internal/logx"
	"pkt.systems/icoder/schema"
)

// Server serves the backend endpoints and the agent-session API.
type Server struct {
	cfg          Config
	service      core.Service
	runner       core.CommandRunner
	materializer core.Materializer
	hub          *Hub
}

// NewServer constructs an HTTP server. service may be nil, in which case
// only the backend endpoints are mounted.
func NewServer(cfg Config, service core.Service, runner core.CommandRunner, materializer core.Materializer, hub *Hub) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return &Server{
		cfg:          cfg,
		service:      service,
		runner:       runner,
		materializer: materializer,
		hub:          hub,
	}
}

// Handler returns an http.Handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/preview/", s.previewHandler())
	mux.HandleFunc("/api/execute", s.handleExecute)
	mux.HandleFunc("/api/save-preview", s.handleSavePreview)
	mux.HandleFunc("/api/sync-files", s.handleSyncFiles)

	if s.service != nil {
		mux.HandleFunc("/api/sessions", s.handleSessions)
		mux.HandleFunc("/api/session", s.requireSession(s.handleSession))
		mux.HandleFunc("/api/chat", s.handleChat)
		mux.HandleFunc("/api/files", s.handleFiles)
		mux.HandleFunc("/api/tabs", s.handleTabs)
		mux.HandleFunc("/api/command", s.handleCommand)
		mux.HandleFunc("/api/save", s.handleSave)
		mux.HandleFunc("/api/stream", s.requireSession(s.handleStream))
	}
	return withBodyLimit(withRequestLogging(mux, lookupSession), s.cfg.MaxBodyBytes)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	log := logx.Ctx(r.Context())
	switch r.Method {
	case http.MethodGet:
		resp, err := s.service.ListSessions(r.Context(), schema.ListSessionsRequest{})
		if err != nil {
			log.Warn("http sessions list failed", "err", err)
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
		log.Debug("http sessions list ok", "count", len(resp.Sessions))
	case http.MethodPost:
		var payload struct {
			Files []schema.WireFile `json:"files"`
		}
		if err := decodeLenient(r.Body, &payload); err != nil {
			log.Warn("http sessions decode failed", "err", err)
			writeError(w, http.StatusBadRequest, err)
			return
		}
		resp, err := s.service.CreateSession(r.Context(), schema.CreateSessionRequest{Files: payload.Files})
		if err != nil {
			log.Warn("http sessions create failed", "err", err)
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
		log.Info("http sessions create ok", "session", resp.Session.ID, "files", len(resp.Session.Files))
	case http.MethodDelete:
		id := sessionParam(r)
		resp, err := s.service.CloseSession(r.Context(), schema.CloseSessionRequest{SessionID: id})
		if err != nil {
			log.Warn("http sessions close failed", "err", err)
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
		log.Info("http sessions close ok", "session", id)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request, sessionID schema.SessionID) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	resp, err := s.service.GetSession(r.Context(), schema.GetSessionRequest{SessionID: sessionID})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Session schema.SessionID `json:"session"`
		Message string           `json:"message"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	log := logx.WithSession(r.Context(), payload.Session)
	ctx := logx.ContextWithSessionLogger(r.Context(), log, payload.Session)
	resp, err := s.service.SendMessage(ctx, schema.SendMessageRequest{SessionID: payload.Session, Message: payload.Message})
	if err != nil {
		log.Warn("http chat failed", "err", err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
	log.Info("http chat ok", "commands", len(resp.Commands), "files", len(resp.Files))
}

func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Session schema.SessionID  `json:"session"`
		Action  schema.FileAction `json:"action"`
		ID      schema.FileID     `json:"id"`
		Name    string            `json:"name"`
		Content string            `json:"content"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	log := logx.WithSession(r.Context(), payload.Session)
	resp, err := s.service.EditFile(r.Context(), schema.EditFileRequest{
		SessionID: payload.Session,
		Action:    payload.Action,
		FileID:    payload.ID,
		Name:      payload.Name,
		Content:   payload.Content,
	})
	if err != nil {
		log.Warn("http files failed", "action", payload.Action, "err", err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
	log.Info("http files ok", "action", payload.Action, "file", resp.File.Name)
}

func (s *Server) handleTabs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Session schema.SessionID `json:"session"`
		Action  string           `json:"action"`
		ID      schema.FileID    `json:"id"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	log := logx.WithSession(r.Context(), payload.Session)
	switch payload.Action {
	case "open":
		resp, err := s.service.OpenTab(r.Context(), schema.OpenTabRequest{SessionID: payload.Session, FileID: payload.ID})
		if err != nil {
			log.Warn("http tabs open failed", "err", err)
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	case "close":
		resp, err := s.service.CloseTab(r.Context(), schema.CloseTabRequest{SessionID: payload.Session, FileID: payload.ID})
		if err != nil {
			log.Warn("http tabs close failed", "err", err)
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: unknown tab action %q", schema.ErrInvalidRequest, payload.Action))
	}
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Session schema.SessionID `json:"session"`
		Command string           `json:"command"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	log := logx.WithSession(r.Context(), payload.Session)
	ctx := logx.ContextWithSessionLogger(r.Context(), log, payload.Session)
	resp, err := s.service.RunCommand(ctx, schema.RunCommandRequest{SessionID: payload.Session, Command: payload.Command})
	if err != nil {
		log.Warn("http command failed", "err", err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
	log.Info("http command ok", "success", resp.Result.Success)
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Session schema.SessionID `json:"session"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := s.service.SaveFiles(r.Context(), schema.SaveFilesRequest{SessionID: payload.Session, ClearFirst: false})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request, sessionID schema.SessionID) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("stream unsupported"))
		return
	}
	if s.hub == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("stream unavailable"))
		return
	}
	log := logx.WithSession(r.Context(), sessionID)
	snap, err := s.service.GetSession(r.Context(), schema.GetSessionRequest{SessionID: sessionID})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	lastID := parseUint(r.Header.Get("Last-Event-ID"))
	ch, unsubscribe, _ := s.hub.Subscribe(sessionID)
	defer unsubscribe()

	_ = writeSSEvent(w, StreamEvent{
		Type:      "snapshot",
		Session:   sessionID,
		Snapshot:  &snap.Session,
		Timestamp: time.Now(),
	})
	replayCount := 0
	if lastID > 0 {
		replay := s.hub.Replay(sessionID, lastID)
		replayCount = len(replay)
		for _, event := range replay {
			_ = writeSSEvent(w, event)
		}
	}
	flusher.Flush()

	notify := r.Context().Done()
	log.Info("http stream opened", "last_id", lastID, "replay", replayCount)
	for {
		select {
		case <-notify:
			log.Info("http stream closed")
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			_ = writeSSEvent(w, event)
			flusher.Flush()
			if event.Type == "session" && event.Lifecycle == schema.SessionEventClosed {
				log.Info("http stream ended", "reason", "session closed")
				return
			}
		}
	}
}

func (s *Server) requireSession(next func(http.ResponseWriter, *http.Request, schema.SessionID)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := sessionParam(r)
		if err := schema.ValidateSessionID(id); err != nil {
			logx.Ctx(r.Context()).Warn("http session missing", "remote", clientIP(r))
			writeError(w, http.StatusBadRequest, err)
			return
		}
		log := logx.WithSession(r.Context(), id)
		ctx := logx.ContextWithSessionLogger(r.Context(), log, id)
		next(w, r.WithContext(ctx), id)
	}
}

func sessionParam(r *http.Request) schema.SessionID {
	return schema.SessionID(strings.TrimSpace(r.URL.Query().Get("session")))
}

func lookupSession(r *http.Request) schema.SessionID {
	if r == nil {
		return ""
	}
	return sessionParam(r)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, schema.ErrSessionNotFound),
		errors.Is(err, schema.ErrFileNotFound),
		errors.Is(err, schema.ErrTabNotFound):
		return http.StatusNotFound
	case errors.Is(err, schema.ErrSessionBusy):
		return http.StatusConflict
	case errors.Is(err, schema.ErrGatewayUnavailable),
		errors.Is(err, schema.ErrRunnerUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, schema.ErrInvalidRequest),
		errors.Is(err, schema.ErrInvalidSession),
		errors.Is(err, schema.ErrEmptyPrompt),
		errors.Is(err, schema.ErrNoCommand),
		errors.Is(err, schema.ErrInvalidFileName),
		errors.Is(err, schema.ErrPathEscapesRoot):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func withBodyLimit(next http.Handler, limit int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil && limit > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
		}
		next.ServeHTTP(w, r)
	})
}

func decodeJSON(body io.Reader, target any) error {
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func writeSSEvent(w http.ResponseWriter, event StreamEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if event.Seq > 0 {
		_, _ = fmt.Fprintf(w, "id: %d\n", event.Seq)
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", strings.TrimSpace(string(data)))
	return nil
}

func parseUint(value string) uint64 {
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}

