package chat

import "strings"

// command is a parsed slash command line.
type command struct {
	Name string
	// Remainder is the raw text after the command name.
	Remainder string
}

// parseCommand parses a line starting with "/". Names are lower-cased.
func parseCommand(input string) (command, bool) {
	trimmed := strings.TrimLeft(input, " \t")
	if !strings.HasPrefix(trimmed, "/") {
		return command{}, false
	}
	raw := strings.TrimSpace(trimmed[1:])
	if raw == "" {
		return command{}, true
	}
	end := strings.IndexFunc(raw, isSpace)
	if end == -1 {
		return command{Name: strings.ToLower(raw)}, true
	}
	return command{
		Name:      strings.ToLower(raw[:end]),
		Remainder: strings.TrimSpace(raw[end:]),
	}, true
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

// markLines prefixes the first line with marker and indents the rest to
// line up under it.
func markLines(marker, text string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	indent := strings.Repeat(" ", len([]rune(marker)))
	var b strings.Builder
	for i, line := range lines {
		if i == 0 {
			b.WriteString(marker)
		} else if line != "" {
			b.WriteString(indent)
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}
