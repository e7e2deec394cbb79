// Package chat runs a line-oriented agent chat over a terminal stream.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"golang.org/x/term"

	"pkt.systems/icoder/core"
	"pkt.systems/icoder/internal/eventbus"
	"pkt.systems/icoder/internal/logx"
	"pkt.systems/icoder/schema"
)

// DefaultPrompt is shown when no prompt is configured.
const DefaultPrompt = "> "

const helpText = `commands:
  /files         list project files
  /cat <name>    show a file
  /run <command> run a shell command in the workspace
  /save          save files to the preview root
  /help          show this help
  /quit          leave the chat
anything else is sent to the agent`

// Options configures a REPL.
type Options struct {
	Prompt string
	// Events, when set, streams phase updates for the session.
	Events <-chan eventbus.Event
}

// REPL is one interactive chat bound to an editor session.
type REPL struct {
	service   core.Service
	sessionID schema.SessionID
	term      *term.Terminal
	events    <-chan eventbus.Event
}

// New constructs a REPL reading lines from rw.
func New(rw io.ReadWriter, service core.Service, sessionID schema.SessionID, opts Options) *REPL {
	prompt := opts.Prompt
	if prompt == "" {
		prompt = DefaultPrompt
	}
	return &REPL{
		service:   service,
		sessionID: sessionID,
		term:      term.NewTerminal(rw, prompt),
		events:    opts.Events,
	}
}

// SetSize updates the terminal dimensions.
func (r *REPL) SetSize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	_ = r.term.SetSize(width, height)
}

// Run prints the transcript so far and reads lines until /quit, EOF, or
// context cancellation.
func (r *REPL) Run(ctx context.Context) error {
	log := logx.WithSession(ctx, r.sessionID)
	snap, err := r.service.GetSession(ctx, schema.GetSessionRequest{SessionID: r.sessionID})
	if err != nil {
		return err
	}
	for _, msg := range snap.Session.Messages {
		r.printMessage(msg)
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	if r.events != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.forwardEvents(stop)
		}()
	}
	defer func() {
		close(stop)
		wg.Wait()
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := r.term.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		quit, err := r.handle(ctx, strings.TrimSpace(line))
		if err != nil {
			log.Warn("chat input failed", "err", err)
			r.printf("error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

func (r *REPL) handle(ctx context.Context, line string) (bool, error) {
	if line == "" {
		return false, nil
	}
	cmd, ok := parseCommand(line)
	if !ok {
		resp, err := r.service.SendMessage(ctx, schema.SendMessageRequest{SessionID: r.sessionID, Message: line})
		if err != nil {
			if errors.Is(err, schema.ErrSessionBusy) {
				r.printf("the agent is still working on the previous request\n")
				return false, nil
			}
			return false, err
		}
		r.printMessage(resp.AgentMessage)
		return false, nil
	}
	arg := cmd.Remainder
	switch cmd.Name {
	case "quit", "exit", "q":
		return true, nil
	case "help":
		r.printf("%s\n", helpText)
	case "files":
		return false, r.listFiles(ctx)
	case "cat":
		if arg == "" {
			return false, errors.New("usage: /cat <name>")
		}
		return false, r.catFile(ctx, arg)
	case "run":
		if arg == "" {
			return false, errors.New("usage: /run <command>")
		}
		resp, err := r.service.RunCommand(ctx, schema.RunCommandRequest{SessionID: r.sessionID, Command: arg})
		if err != nil {
			return false, err
		}
		r.printMessage(resp.Message)
	case "save":
		resp, err := r.service.SaveFiles(ctx, schema.SaveFilesRequest{SessionID: r.sessionID})
		if err != nil {
			return false, err
		}
		switch {
		case !resp.Result.Success:
			r.printf("save failed: %s\n", resp.Result.Error)
		case resp.Result.PreviewURL != "":
			r.printf("saved, preview at %s\n", resp.Result.PreviewURL)
		default:
			r.printf("nothing to save\n")
		}
	default:
		return false, fmt.Errorf("unknown command /%s (try /help)", cmd.Name)
	}
	return false, nil
}

func (r *REPL) listFiles(ctx context.Context) error {
	snap, err := r.service.GetSession(ctx, schema.GetSessionRequest{SessionID: r.sessionID})
	if err != nil {
		return err
	}
	files := snap.Session.Files
	if len(files) == 0 {
		r.printf("no files\n")
		return nil
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	var b strings.Builder
	for _, f := range files {
		fmt.Fprintf(&b, "%s (%s, %d bytes)\n", f.Name, f.Language, len(f.Content))
	}
	r.printf("%s", b.String())
	return nil
}

func (r *REPL) catFile(ctx context.Context, name string) error {
	snap, err := r.service.GetSession(ctx, schema.GetSessionRequest{SessionID: r.sessionID})
	if err != nil {
		return err
	}
	normalized, err := schema.NormalizeFileName(name)
	if err != nil {
		return err
	}
	for _, f := range snap.Session.Files {
		if f.Name == normalized {
			content := f.Content
			if !strings.HasSuffix(content, "\n") {
				content += "\n"
			}
			r.printf("%s", content)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", schema.ErrFileNotFound, normalized)
}

func (r *REPL) forwardEvents(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case event, ok := <-r.events:
			if !ok {
				return
			}
			if event.Type != eventbus.EventPhase || event.Phase == nil {
				continue
			}
			if label := phaseLabel(event.Phase.Phase); label != "" {
				r.printf("… %s\n", label)
			}
		}
	}
}

func phaseLabel(phase schema.Phase) string {
	switch phase {
	case schema.PhaseAwaitingCompletion:
		return "thinking"
	case schema.PhaseApplyingFileOps:
		return "applying file changes"
	case schema.PhaseExecutingCommands:
		return "running commands"
	default:
		return ""
	}
}

func (r *REPL) printMessage(msg schema.ChatMessage) {
	marker := "AI: "
	if msg.IsUser {
		marker = "You: "
	}
	r.printf("%s", markLines(marker, msg.Content))
}

func (r *REPL) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.term, format, args...)
}
