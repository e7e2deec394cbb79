package sshserver

import (
	"context"
	"errors"
	"io"
	"net"

	gliderssh "github.com/gliderlabs/ssh"
	"golang.org/x/crypto/ssh"

	"pkt.systems/icoder/core"
	"pkt.systems/icoder/internal/chat"
	"pkt.systems/icoder/internal/eventbus"
	"pkt.systems/icoder/internal/logx"
	"pkt.systems/icoder/schema"
	"pkt.systems/pslog"
)

// Server exposes the agent chat over SSH. Every connection gets its own
// editor session, closed when the connection ends.
type Server struct {
	Addr               string
	HostKeyPath        string
	AuthorizedKeysPath string
	Listener           net.Listener
	Service            core.Service
	Prompt             string
	EventBus           *eventbus.Bus
	// Seed is copied into every new session.
	Seed   []schema.WireFile
	logger pslog.Logger
	keys   []ssh.PublicKey
}

// New constructs a Server from cfg.
func New(cfg Config, service core.Service, bus *eventbus.Bus) *Server {
	return &Server{
		Addr:               cfg.Addr,
		HostKeyPath:        cfg.HostKeyPath,
		AuthorizedKeysPath: cfg.AuthorizedKeysPath,
		Prompt:             cfg.Prompt,
		Service:            service,
		EventBus:           bus,
	}
}

// ListenAndServe starts the SSH server and shuts down on context cancellation.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.Prompt == "" {
		s.Prompt = chat.DefaultPrompt
	}
	if s.logger == nil {
		s.logger = pslog.Ctx(ctx)
	}
	if s.Service == nil {
		return errors.New("service is required for SSH")
	}

	signer, err := EnsureHostKey(s.HostKeyPath)
	if err != nil {
		return err
	}
	keys, err := LoadAuthorizedKeys(s.AuthorizedKeysPath)
	if err != nil {
		return err
	}
	s.keys = keys

	server := &gliderssh.Server{
		Addr:             s.Addr,
		Handler:          s.handleSession,
		PublicKeyHandler: s.handlePublicKey,
	}
	server.AddHostKey(signer)
	s.logger.Info("ssh server starting", "addr", s.Addr, "authorized_keys", len(keys))

	errCh := make(chan error, 1)
	go func() {
		if s.Listener != nil {
			errCh <- server.Serve(s.Listener)
			return
		}
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		_ = server.Close()
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) handlePublicKey(ctx gliderssh.Context, key gliderssh.PublicKey) bool {
	log := s.logger
	if log == nil {
		log = pslog.Ctx(ctx)
	}
	log = log.With("user", ctx.User(), "remote", remoteAddr(ctx), "fingerprint", ssh.FingerprintSHA256(key))
	for _, allowed := range s.keys {
		if gliderssh.KeysEqual(allowed, key) {
			log.Info("ssh pubkey accepted")
			return true
		}
	}
	log.Warn("ssh pubkey rejected", "reason", "no matching key")
	return false
}

func remoteAddr(ctx gliderssh.Context) string {
	if ctx == nil || ctx.RemoteAddr() == nil {
		return ""
	}
	return ctx.RemoteAddr().String()
}

func (s *Server) handleSession(sess gliderssh.Session) {
	log := s.logger
	if log == nil {
		log = pslog.Ctx(sess.Context())
	}
	log = log.With("user", sess.User(), "remote", sess.RemoteAddr().String())
	if sshSession := sess.Context().SessionID(); sshSession != "" {
		log = log.With("ssh_session", sshSession)
	}

	pty, winCh, ok := sess.Pty()
	if !ok {
		log.Info("ssh session rejected", "reason", "pty required")
		_, _ = io.WriteString(sess, "pty required\n")
		return
	}

	ctx := pslog.ContextWithLogger(sess.Context(), log)
	created, err := s.Service.CreateSession(ctx, schema.CreateSessionRequest{Files: s.Seed})
	if err != nil {
		log.Warn("ssh session rejected", "reason", "create session", "err", err)
		_, _ = io.WriteString(sess, "cannot create session\n")
		return
	}
	sessionID := created.Session.ID
	ctx = logx.ContextWithSessionLogger(ctx, logx.WithSession(ctx, sessionID), sessionID)
	log = logx.WithSession(ctx, sessionID)
	defer func() {
		if _, err := s.Service.CloseSession(context.WithoutCancel(ctx), schema.CloseSessionRequest{SessionID: sessionID}); err != nil {
			log.Warn("ssh session close failed", "err", err)
		}
	}()

	var events <-chan eventbus.Event
	if s.EventBus != nil {
		var unsubscribe func()
		events, unsubscribe = s.EventBus.Subscribe(sessionID)
		defer unsubscribe()
	}

	log.Info("ssh session opened", "term", pty.Term)
	repl := chat.New(sess, s.Service, sessionID, chat.Options{Prompt: s.Prompt, Events: events})
	repl.SetSize(pty.Window.Width, pty.Window.Height)
	go func() {
		for win := range winCh {
			repl.SetSize(win.Width, win.Height)
		}
	}()
	if err := repl.Run(ctx); err != nil {
		log.Warn("ssh chat ended", "err", err)
	}
	log.Info("ssh session closed", "term", pty.Term)
}
