package core

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"pkt.systems/icoder/internal/logx"
	"pkt.systems/icoder/schema"
	"pkt.systems/pslog"
)

// service implements the core service behavior.
type service struct {
	cfg      schema.ServiceConfig
	agent    *Agent
	sink     EventSink
	logger   pslog.Logger
	now      func() time.Time
	mu       sync.Mutex
	sessions map[schema.SessionID]*Session
}

// NewService constructs the core service implementation.
func NewService(cfg schema.ServiceConfig, deps ServiceDeps) (Service, error) {
	normalized, err := schema.NormalizeServiceConfig(cfg)
	if err != nil {
		return nil, err
	}
	cfg = normalized
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	deps.Now = now
	return &service{
		cfg:      cfg,
		agent:    NewAgent(cfg, deps),
		sink:     deps.EventSink,
		logger:   logger,
		now:      now,
		sessions: make(map[schema.SessionID]*Session),
	}, nil
}

func (s *service) CreateSession(ctx context.Context, req schema.CreateSessionRequest) (schema.CreateSessionResponse, error) {
	if ctx == nil {
		return schema.CreateSessionResponse{}, errors.New("missing context")
	}
	id := schema.SessionID(newID())
	sess := NewSession(id, s.now(), s.cfg.HistoryMax)
	log := logx.WithSession(ctx, id)
	ctx = logx.ContextWithSessionLogger(ctx, log, id)

	if len(req.Files) > 0 {
		ops := make([]schema.FileOperation, 0, len(req.Files))
		for _, f := range req.Files {
			if f.IsDirectory {
				continue
			}
			ops = append(ops, schema.FileOperation{Type: schema.FileOpCreate, Path: f.Name, Content: f.Content})
		}
		result := sess.applyOperations(ops, func() schema.FileID { return schema.FileID(newID()) })
		log.Info("service session seeded", "files", len(result.Files))
	}
	if !s.cfg.DisableGreeting {
		sess.appendAgentMessage(s.agent.newMessage(GreetingMessage, false), false)
	}

	s.mu.Lock()
	s.sessions[id] = sess
	count := len(s.sessions)
	s.mu.Unlock()
	s.emitSession(schema.SessionEvent{SessionID: id, Type: schema.SessionEventCreated})
	log.Info("service session created", "sessions", count)

	if len(sess.Files()) > 0 {
		if resp, err := s.agent.SaveFiles(ctx, sess, true); err != nil {
			log.Warn("service initial preview save failed", "err", err)
		} else if !resp.Success {
			log.Warn("service initial preview save failed", "err", resp.Error)
		}
	}
	return schema.CreateSessionResponse{Session: sess.Snapshot()}, nil
}

func (s *service) CloseSession(ctx context.Context, req schema.CloseSessionRequest) (schema.CloseSessionResponse, error) {
	if err := schema.ValidateSessionID(req.SessionID); err != nil {
		return schema.CloseSessionResponse{}, err
	}
	s.mu.Lock()
	sess := s.sessions[req.SessionID]
	delete(s.sessions, req.SessionID)
	s.mu.Unlock()
	if sess == nil {
		return schema.CloseSessionResponse{}, schema.ErrSessionNotFound
	}
	s.emitSession(schema.SessionEvent{SessionID: req.SessionID, Type: schema.SessionEventClosed})
	logx.WithSession(ctx, req.SessionID).Info("service session closed")
	return schema.CloseSessionResponse{Session: sess.Summary()}, nil
}

func (s *service) ListSessions(ctx context.Context, req schema.ListSessionsRequest) (schema.ListSessionsResponse, error) {
	s.mu.Lock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()
	summaries := make([]schema.SessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		summaries = append(summaries, sess.Summary())
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].CreatedAt.Equal(summaries[j].CreatedAt) {
			return summaries[i].ID < summaries[j].ID
		}
		return summaries[i].CreatedAt.Before(summaries[j].CreatedAt)
	})
	return schema.ListSessionsResponse{Sessions: summaries}, nil
}

func (s *service) GetSession(ctx context.Context, req schema.GetSessionRequest) (schema.GetSessionResponse, error) {
	sess, err := s.session(req.SessionID)
	if err != nil {
		return schema.GetSessionResponse{}, err
	}
	return schema.GetSessionResponse{Session: sess.Snapshot()}, nil
}

func (s *service) SendMessage(ctx context.Context, req schema.SendMessageRequest) (schema.SendMessageResponse, error) {
	if ctx == nil {
		return schema.SendMessageResponse{}, errors.New("missing context")
	}
	sess, err := s.session(req.SessionID)
	if err != nil {
		return schema.SendMessageResponse{}, err
	}
	runCtx, cancel := detachRunContext(ctx)
	defer cancel()
	resp, err := s.agent.RunTurn(runCtx, sess, req.Message)
	if err != nil {
		logx.WithSession(ctx, req.SessionID).Warn("service message rejected", "err", err)
	}
	return resp, err
}

func (s *service) EditFile(ctx context.Context, req schema.EditFileRequest) (schema.EditFileResponse, error) {
	sess, err := s.session(req.SessionID)
	if err != nil {
		return schema.EditFileResponse{}, err
	}
	log := logx.WithSession(ctx, req.SessionID).With("action", req.Action)

	sess.mu.Lock()
	idx := -1
	if req.FileID != "" {
		idx = indexByID(sess.files, req.FileID)
	} else if req.Name != "" {
		if name, err := schema.NormalizeFileName(req.Name); err == nil {
			idx = indexByName(sess.files, name)
		}
	}
	var file schema.File
	switch req.Action {
	case schema.FileActionCreate:
		name, err := schema.NormalizeFileName(req.Name)
		if err != nil {
			sess.mu.Unlock()
			return schema.EditFileResponse{}, err
		}
		result := ApplyFileOperations(sess.files, []schema.FileOperation{{Type: schema.FileOpCreate, Path: name, Content: req.Content}}, func() schema.FileID { return schema.FileID(newID()) })
		sess.files = result.Files
		file = sess.files[indexByName(sess.files, name)]
	case schema.FileActionWrite:
		if idx < 0 {
			sess.mu.Unlock()
			return schema.EditFileResponse{}, schema.ErrFileNotFound
		}
		next := append([]schema.File(nil), sess.files...)
		next[idx].Content = req.Content
		sess.files = next
		sess.tabs = markDirty(sess.tabs, next[idx].ID)
		file = next[idx]
	case schema.FileActionDelete:
		if idx < 0 {
			sess.mu.Unlock()
			return schema.EditFileResponse{}, schema.ErrFileNotFound
		}
		file = sess.files[idx]
		next := make([]schema.File, 0, len(sess.files)-1)
		next = append(next, sess.files[:idx]...)
		next = append(next, sess.files[idx+1:]...)
		sess.files = next
	default:
		sess.mu.Unlock()
		return schema.EditFileResponse{}, schema.ErrInvalidRequest
	}
	files := append([]schema.File{}, sess.files...)
	sess.mu.Unlock()

	s.emitFiles(sess)
	log.Info("service file edited", "file", file.Name, "files", len(files))
	return schema.EditFileResponse{File: file, Files: files}, nil
}

func (s *service) OpenTab(ctx context.Context, req schema.OpenTabRequest) (schema.OpenTabResponse, error) {
	sess, err := s.session(req.SessionID)
	if err != nil {
		return schema.OpenTabResponse{}, err
	}
	sess.mu.Lock()
	idx := indexByID(sess.files, req.FileID)
	if idx < 0 {
		sess.mu.Unlock()
		return schema.OpenTabResponse{}, schema.ErrFileNotFound
	}
	tabs, tab := openTab(sess.tabs, sess.files[idx])
	sess.tabs = tabs
	sess.activeTab = tab.ID
	resp := schema.OpenTabResponse{Tab: tab, Tabs: append([]schema.Tab{}, tabs...), ActiveTab: tab.ID}
	sess.mu.Unlock()
	s.emitFiles(sess)
	return resp, nil
}

func (s *service) CloseTab(ctx context.Context, req schema.CloseTabRequest) (schema.CloseTabResponse, error) {
	sess, err := s.session(req.SessionID)
	if err != nil {
		return schema.CloseTabResponse{}, err
	}
	sess.mu.Lock()
	tabs, active, ok := closeTab(sess.tabs, sess.activeTab, req.FileID)
	if !ok {
		sess.mu.Unlock()
		return schema.CloseTabResponse{}, schema.ErrTabNotFound
	}
	sess.tabs = tabs
	sess.activeTab = active
	resp := schema.CloseTabResponse{Tabs: append([]schema.Tab{}, tabs...), ActiveTab: active}
	sess.mu.Unlock()
	s.emitFiles(sess)
	return resp, nil
}

func (s *service) RunCommand(ctx context.Context, req schema.RunCommandRequest) (schema.RunCommandResponse, error) {
	sess, err := s.session(req.SessionID)
	if err != nil {
		return schema.RunCommandResponse{}, err
	}
	runCtx, cancel := detachRunContext(ctx)
	defer cancel()
	return s.agent.RunCommand(runCtx, sess, req.Command)
}

func (s *service) SaveFiles(ctx context.Context, req schema.SaveFilesRequest) (schema.SaveFilesResponse, error) {
	sess, err := s.session(req.SessionID)
	if err != nil {
		return schema.SaveFilesResponse{}, err
	}
	resp, err := s.agent.SaveFiles(ctx, sess, req.ClearFirst)
	if err != nil {
		logx.WithSession(ctx, req.SessionID).Warn("service save failed", "err", err)
		return schema.SaveFilesResponse{}, err
	}
	return schema.SaveFilesResponse{Result: resp}, nil
}

func (s *service) session(id schema.SessionID) (*Session, error) {
	if err := schema.ValidateSessionID(id); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.sessions[id]
	if sess == nil {
		return nil, schema.ErrSessionNotFound
	}
	return sess, nil
}

func (s *service) emitSession(event schema.SessionEvent) {
	if s.sink == nil {
		return
	}
	s.sink.OnSessionEvent(event)
}

func (s *service) emitFiles(sess *Session) {
	if s.sink == nil {
		return
	}
	s.sink.OnFiles(sess.filesEvent())
}

// detachRunContext keeps the request logger without request cancellation.
func detachRunContext(ctx context.Context) (context.Context, context.CancelFunc) {
	base := context.Background()
	if ctx != nil {
		if logger := pslog.Ctx(ctx); logger != nil {
			base = logx.CopyContextFields(pslog.ContextWithLogger(base, logger), ctx)
		}
	}
	return context.WithCancel(base)
}
