package schema

import (
	"path"
	"strings"
)

// NormalizeFileName validates a project-relative file name and returns its
// canonical slash-separated form. Absolute names and names escaping the
// project via ".." are rejected.
func NormalizeFileName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", ErrInvalidFileName
	}
	if strings.ContainsRune(trimmed, 0) {
		return "", ErrInvalidFileName
	}
	slashed := strings.ReplaceAll(trimmed, "\\", "/")
	if strings.HasPrefix(slashed, "/") {
		return "", ErrInvalidFileName
	}
	cleaned := path.Clean(slashed)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidFileName
	}
	return cleaned, nil
}

// ValidateSessionID ensures a session id matches [A-Za-z0-9_-].
func ValidateSessionID(id SessionID) error {
	raw := string(id)
	if raw == "" {
		return ErrInvalidSession
	}
	for _, r := range raw {
		if r >= 'a' && r <= 'z' {
			continue
		}
		if r >= 'A' && r <= 'Z' {
			continue
		}
		if r >= '0' && r <= '9' {
			continue
		}
		if r == '_' || r == '-' {
			continue
		}
		return ErrInvalidSession
	}
	return nil
}
