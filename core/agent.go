package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pkt.systems/icoder/internal/logx"
	"pkt.systems/icoder/schema"
	"pkt.systems/pslog"
)

const (
	// AgentErrorMessage replaces the agent reply when the gateway fails.
	AgentErrorMessage = "Error connecting to AI service. Please try again."
	// GreetingMessage opens every new session transcript.
	GreetingMessage = `Hi! I can help you read/write files and execute commands. Try: "create a new file" or "run npm install"`
	// CommandPlaceholder is shown when a command produced no output.
	CommandPlaceholder = "Command executed"
)

// Agent runs agent turns against an owned session.
type Agent struct {
	cfg          schema.ServiceConfig
	systemPrompt string
	gateway      Gateway
	runner       CommandRunner
	materializer Materializer
	sink         EventSink
	now          func() time.Time
}

// NewAgent constructs an agent. The config is expected to be normalized.
func NewAgent(cfg schema.ServiceConfig, deps ServiceDeps) *Agent {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	systemPrompt := cfg.SystemPrompt
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return &Agent{
		cfg:          cfg,
		systemPrompt: systemPrompt,
		gateway:      deps.Gateway,
		runner:       deps.Runner,
		materializer: deps.Materializer,
		sink:         deps.EventSink,
		now:          now,
	}
}

// RunTurn runs one user turn to completion: prompt, completion, file
// operations, sequential commands, and the settled agent message. Gateway
// failure settles the turn with a fixed error message and no mutations.
func (a *Agent) RunTurn(ctx context.Context, sess *Session, text string) (schema.SendMessageResponse, error) {
	if strings.TrimSpace(text) == "" {
		return schema.SendMessageResponse{}, schema.ErrEmptyPrompt
	}
	if a.gateway == nil {
		return schema.SendMessageResponse{}, schema.ErrGatewayUnavailable
	}
	if !sess.tryBegin() {
		return schema.SendMessageResponse{}, schema.ErrSessionBusy
	}
	turnID := newID()
	defer func() {
		sess.finish()
		a.emitPhase(sess, turnID, schema.PhaseIdle)
	}()

	log := logx.WithTurn(logx.WithSession(ctx, sess.ID()), turnID)
	ctx = logx.ContextWithTurn(logx.ContextWithSessionLogger(ctx, log, sess.ID()), turnID)
	started := time.Now()
	log.Info("agent turn start", "prompt_len", len(text))

	userMsg := a.newMessage(text, true)
	history := sess.appendUserMessage(userMsg)
	a.emitMessage(sess, userMsg)

	a.setPhase(sess, turnID, schema.PhasePrompting)
	prompt := BuildUserPrompt(sess.fileNames(), history, text)

	a.setPhase(sess, turnID, schema.PhaseAwaitingCompletion)
	resp, err := a.complete(ctx, prompt)
	if err != nil {
		log.Warn("agent completion failed", "err", err)
		agentMsg := a.newMessage(AgentErrorMessage, false)
		sess.appendAgentMessage(agentMsg, false)
		a.emitMessage(sess, agentMsg)
		a.setPhase(sess, turnID, schema.PhaseSettled)
		return schema.SendMessageResponse{UserMessage: userMsg, AgentMessage: agentMsg, Files: sess.Files()}, nil
	}
	resp = resp.WithDefaults()

	a.setPhase(sess, turnID, schema.PhaseApplyingFileOps)
	records := a.applyFileOperations(ctx, sess, resp.FileOperations)

	a.setPhase(sess, turnID, schema.PhaseExecutingCommands)
	var commands []schema.CommandResult
	for _, op := range resp.CommandOperations {
		if op.Type != schema.CommandOpExecute {
			log.Debug("agent command skipped", "type", op.Type)
			continue
		}
		output, result := a.runCommand(ctx, sess, "agent", op.Command)
		commands = append(commands, schema.CommandResult{Command: op.Command, Result: result})
		records = append(records, FormatCommandRecord(op.Command, output))
	}

	a.setPhase(sess, turnID, schema.PhaseSettled)
	content := resp.Message
	if len(records) > 0 {
		content += "\n\n" + strings.Join(records, "\n")
	}
	agentMsg := a.newMessage(content, false)
	sess.appendAgentMessage(agentMsg, true)
	a.emitMessage(sess, agentMsg)
	log.Info("agent turn settled",
		"duration_ms", time.Since(started).Milliseconds(),
		"file_ops", len(resp.FileOperations),
		"command_ops", len(commands),
	)
	return schema.SendMessageResponse{
		UserMessage:  userMsg,
		AgentMessage: agentMsg,
		Files:        sess.Files(),
		Commands:     commands,
	}, nil
}

// RunCommand runs terminal input for the session and appends the result to
// the transcript. It does not take the turn lock.
func (a *Agent) RunCommand(ctx context.Context, sess *Session, command string) (schema.RunCommandResponse, error) {
	if strings.TrimSpace(command) == "" {
		return schema.RunCommandResponse{}, schema.ErrNoCommand
	}
	ctx = logx.ContextWithSessionLogger(ctx, logx.WithSession(ctx, sess.ID()), sess.ID())
	output, result := a.runCommand(ctx, sess, "terminal", command)
	msg := a.newMessage(FormatCommandRecord(command, output), false)
	sess.appendAgentMessage(msg, false)
	a.emitMessage(sess, msg)
	return schema.RunCommandResponse{Result: result, Message: msg}, nil
}

// SaveFiles pushes the session file set to the preview root. An empty file
// set is not written.
func (a *Agent) SaveFiles(ctx context.Context, sess *Session, clearFirst bool) (schema.SavePreviewResponse, error) {
	if a.materializer == nil {
		return schema.SavePreviewResponse{}, schema.ErrRunnerUnavailable
	}
	files := sess.Files()
	if len(files) == 0 {
		return schema.SavePreviewResponse{Success: true}, nil
	}
	resp, err := a.materializer.SavePreview(ctx, schema.SavePreviewRequest{Files: schema.WireFiles(files), ClearFirst: clearFirst})
	if err != nil {
		return schema.SavePreviewResponse{}, err
	}
	if resp.Success {
		sess.setPreviewURL(resp.PreviewURL)
	}
	return resp, nil
}

// FormatCommandRecord renders a transcript line for an executed command.
func FormatCommandRecord(command, output string) string {
	return fmt.Sprintf("⚙️ Executed: %s\n%s", command, output)
}

func (a *Agent) complete(ctx context.Context, prompt string) (resp schema.AgentResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("gateway panic: %v", r)
		}
	}()
	return a.gateway.Complete(ctx, a.systemPrompt, prompt)
}

func (a *Agent) applyFileOperations(ctx context.Context, sess *Session, ops []schema.FileOperation) []string {
	if len(ops) == 0 {
		return nil
	}
	log := pslog.Ctx(ctx)
	result := sess.applyOperations(ops, func() schema.FileID { return schema.FileID(newID()) })
	records := result.Records
	if !result.Mutating {
		return records
	}
	a.emitFiles(sess)
	log.Info("agent file ops applied", "ops", len(ops), "files", len(result.Files))
	if a.materializer == nil {
		return records
	}
	save, err := a.materializer.SavePreview(ctx, schema.SavePreviewRequest{
		Files:      schema.WireFiles(result.Files),
		ClearFirst: true,
	})
	switch {
	case err != nil:
		log.Warn("agent preview save failed", "err", err)
		records = append(records, fmt.Sprintf("⚠️ Preview update failed: %v", err))
	case !save.Success:
		log.Warn("agent preview save failed", "err", save.Error)
		records = append(records, fmt.Sprintf("⚠️ Preview update failed: %s", save.Error))
	default:
		sess.setPreviewURL(save.PreviewURL)
	}
	return records
}

// runCommand syncs the workspace and runs one command. Runner failures are
// folded into the returned output text.
func (a *Agent) runCommand(ctx context.Context, sess *Session, origin, command string) (string, schema.ExecuteResponse) {
	log := logx.WithCommand(pslog.Ctx(ctx), origin, command)
	if a.runner == nil {
		return "Error: " + schema.ErrRunnerUnavailable.Error(), schema.ExecuteResponse{Output: schema.ErrRunnerUnavailable.Error()}
	}
	if a.materializer != nil {
		sync, err := a.materializer.SyncFiles(ctx, schema.SyncFilesRequest{Files: schema.WireFiles(sess.Files())})
		if err != nil {
			log.Warn("agent workspace sync failed", "err", err)
		} else if !sync.Success {
			log.Warn("agent workspace sync failed", "err", sync.Error)
		}
	}
	if !a.cfg.DisableAuditLogging {
		log.Debug("audit command", "command", command, "workdir", a.cfg.CommandDir)
	}
	result, err := a.runner.Execute(ctx, schema.ExecuteRequest{Command: command, WorkingDir: a.cfg.CommandDir})
	if err != nil {
		log.Warn("agent command failed", "err", err)
		text := "Error: " + err.Error()
		if errors.Is(err, schema.ErrNoCommand) {
			text = "Error: No command provided"
		}
		return text, schema.ExecuteResponse{Output: text, Cwd: a.cfg.CommandDir}
	}
	sess.setServerURL(result.ServerURL)
	output := result.Output
	if output == "" {
		output = CommandPlaceholder
	}
	return output, result
}

func (a *Agent) newMessage(content string, isUser bool) schema.ChatMessage {
	return schema.ChatMessage{
		ID:        schema.MessageID(newID()),
		Content:   content,
		IsUser:    isUser,
		Timestamp: a.now(),
	}
}

func (a *Agent) setPhase(sess *Session, turnID string, phase schema.Phase) {
	sess.setPhase(phase)
	a.emitPhase(sess, turnID, phase)
}

func (a *Agent) emitPhase(sess *Session, turnID string, phase schema.Phase) {
	if a.sink == nil {
		return
	}
	a.sink.OnPhase(schema.PhaseEvent{SessionID: sess.ID(), TurnID: turnID, Phase: phase})
}

func (a *Agent) emitMessage(sess *Session, msg schema.ChatMessage) {
	if a.sink == nil {
		return
	}
	a.sink.OnMessage(schema.MessageEvent{SessionID: sess.ID(), Message: msg})
}

func (a *Agent) emitFiles(sess *Session) {
	if a.sink == nil {
		return
	}
	a.sink.OnFiles(sess.filesEvent())
}
