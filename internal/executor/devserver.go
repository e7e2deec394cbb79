package executor

import (
	"regexp"
	"strconv"
	"strings"
)

// DevServerDetector rewrites dev-server commands before they run and derives
// a browsable URL from their output.
type DevServerDetector interface {
	Prepare(command string) string
	Detect(command, output string, success bool) string
}

// NoDevServer leaves commands untouched and never reports a URL.
type NoDevServer struct{}

// Prepare returns the command unchanged.
func (NoDevServer) Prepare(command string) string { return command }

// Detect reports no URL.
func (NoDevServer) Detect(string, string, bool) string { return "" }

var (
	localhostPortRe = regexp.MustCompile(`localhost:(\d+)`)
	portWordRe      = regexp.MustCompile(`port\s+(\d+)`)
)

// PortSniffer appends host/port arguments to commands containing Trigger
// and sniffs the listening port from successful output.
type PortSniffer struct {
	// Trigger is the command fragment that marks a dev-server start.
	Trigger string
	// ExtraArgs are appended when the command does not already pass --host.
	ExtraArgs string
	// DefaultPort is used when no port appears in the output.
	DefaultPort int
	// URLTemplate renders the URL; "{port}" is replaced with the port.
	URLTemplate string
}

// Prepare appends ExtraArgs to matching commands.
func (p PortSniffer) Prepare(command string) string {
	if !p.matches(command) || p.ExtraArgs == "" || strings.Contains(command, "--host") {
		return command
	}
	return command + " " + p.ExtraArgs
}

// Detect renders the dev-server URL for a successful matching command.
func (p PortSniffer) Detect(command, output string, success bool) string {
	if !success || !p.matches(command) || p.URLTemplate == "" {
		return ""
	}
	port := strconv.Itoa(p.DefaultPort)
	if m := localhostPortRe.FindStringSubmatch(output); m != nil {
		port = m[1]
	} else if m := portWordRe.FindStringSubmatch(output); m != nil {
		port = m[1]
	}
	return strings.ReplaceAll(p.URLTemplate, "{port}", port)
}

func (p PortSniffer) matches(command string) bool {
	return p.Trigger != "" && strings.Contains(command, p.Trigger)
}
