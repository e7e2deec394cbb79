package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"pkt.systems/icoder/schema"
	"pkt.systems/pslog"
)

const (
	// DefaultTimeout is the hard wall-clock limit for one command.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxOutputBytes bounds the output returned for one command.
	DefaultMaxOutputBytes = 256 * 1024
	// PlaceholderOutput is reported when a command printed nothing.
	PlaceholderOutput = "Command executed"
	// waitDelay bounds how long Wait blocks on pipes held by orphaned children.
	waitDelay = 2 * time.Second
)

// Config configures the command executor.
type Config struct {
	// Shell runs the command string via "<shell> -c".
	Shell string
	// Timeout is the hard limit per command.
	Timeout time.Duration
	// DefaultDir is used when a request carries no working directory.
	DefaultDir string
	// MaxOutputBytes truncates output beyond this size. Negative disables.
	MaxOutputBytes int
	// DevServer discovers dev-server URLs from command output.
	DevServer DevServerDetector
}

// Executor runs shell commands as subprocesses with a hard timeout. It
// enforces no queueing; callers order their own commands.
type Executor struct {
	shell     string
	shellArgs []string
	timeout   time.Duration
	dir       string
	maxOutput int
	devServer DevServerDetector
}

// New constructs an executor.
func New(cfg Config) *Executor {
	shell, args := shellCommand(cfg.Shell)
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxOutputBytes == 0 {
		cfg.MaxOutputBytes = DefaultMaxOutputBytes
	}
	if cfg.DevServer == nil {
		cfg.DevServer = NoDevServer{}
	}
	return &Executor{
		shell:     shell,
		shellArgs: args,
		timeout:   cfg.Timeout,
		dir:       cfg.DefaultDir,
		maxOutput: cfg.MaxOutputBytes,
		devServer: cfg.DevServer,
	}
}

// Timeout reports the configured per-command limit.
func (e *Executor) Timeout() time.Duration {
	return e.timeout
}

// Execute runs the command. Command failure and timeout are reported through
// the response; only an empty command is an error.
func (e *Executor) Execute(ctx context.Context, req schema.ExecuteRequest) (schema.ExecuteResponse, error) {
	if strings.TrimSpace(req.Command) == "" {
		return schema.ExecuteResponse{}, schema.ErrNoCommand
	}
	cwd := req.WorkingDir
	if cwd == "" {
		cwd = e.dir
	}
	command := e.devServer.Prepare(req.Command)
	log := pslog.Ctx(ctx).With("cwd", cwd)
	started := time.Now()
	log.Info("executor command start", "command_len", len(command))
	log.Trace("executor command", "command", command)

	stdout, stderr, runErr := e.run(ctx, command, cwd)
	output := selectOutput(stdout, stderr, runErr)
	resp := schema.ExecuteResponse{
		Output:  truncateOutput(output, e.maxOutput),
		Success: runErr == nil,
		Cwd:     cwd,
	}
	resp.ServerURL = e.devServer.Detect(req.Command, output, resp.Success)
	fields := []any{"success", resp.Success, "duration_ms", time.Since(started).Milliseconds(), "output_len", len(output)}
	if resp.ServerURL != "" {
		fields = append(fields, "server_url", resp.ServerURL)
	}
	if runErr != nil {
		fields = append(fields, "err", runErr)
		log.Warn("executor command failed", fields...)
	} else {
		log.Info("executor command done", fields...)
	}
	return resp, nil
}

func (e *Executor) run(ctx context.Context, command, cwd string) (string, string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	args := append(append([]string(nil), e.shellArgs...), command)
	cmd := exec.CommandContext(runCtx, e.shell, args...)
	cmd.Dir = cwd
	cmd.WaitDelay = waitDelay
	configureProcessGroup(cmd)

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	err := cmd.Run()
	if err != nil {
		switch {
		case errors.Is(runCtx.Err(), context.DeadlineExceeded):
			err = fmt.Errorf("command timed out after %s", e.timeout)
		case ctx.Err() != nil:
			err = fmt.Errorf("command canceled: %w", ctx.Err())
		}
	}
	return stdoutBuf.String(), stderrBuf.String(), err
}

// selectOutput picks stdout, else stderr, else the error text, else the
// placeholder. Streams are never concatenated.
func selectOutput(stdout, stderr string, err error) string {
	if stdout != "" {
		return stdout
	}
	if stderr != "" {
		return stderr
	}
	if err != nil {
		return err.Error()
	}
	return PlaceholderOutput
}

func truncateOutput(output string, maxLen int) string {
	if maxLen <= 0 || len(output) <= maxLen {
		return output
	}
	return strings.ToValidUTF8(output[:maxLen], "") + "\n... (output truncated)"
}

func shellCommand(shell string) (string, []string) {
	if runtime.GOOS == "windows" {
		if shell == "" {
			shell = "cmd"
		}
		return shell, []string{"/C"}
	}
	if shell == "" {
		shell = "/bin/sh"
	}
	return shell, []string{"-c"}
}
