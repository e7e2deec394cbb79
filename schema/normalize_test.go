package schema

import (
	"errors"
	"testing"
)

func TestNormalizeFileName(t *testing.T) {
	cases := map[string]string{
		"hello.txt":          "hello.txt",
		" src/app.js ":       "src/app.js",
		"src/./lib/../a.css": "src/a.css",
		"dir\\file.md":       "dir/file.md",
	}
	for in, want := range cases {
		got, err := NormalizeFileName(in)
		if err != nil {
			t.Fatalf("normalize %q: %v", in, err)
		}
		if got != want {
			t.Fatalf("normalize %q: expected %q, got %q", in, want, got)
		}
	}
}

func TestNormalizeFileNameRejects(t *testing.T) {
	for _, in := range []string{"", "   ", "/etc/passwd", "../x", "a/../../x", ".", "a\x00b"} {
		if _, err := NormalizeFileName(in); !errors.Is(err, ErrInvalidFileName) {
			t.Fatalf("expected ErrInvalidFileName for %q, got %v", in, err)
		}
	}
}

func TestValidateSessionID(t *testing.T) {
	if err := ValidateSessionID("3f2a-b_9"); err != nil {
		t.Fatalf("expected valid session id: %v", err)
	}
	for _, id := range []SessionID{"", "a b", "x/y", "é"} {
		if err := ValidateSessionID(id); !errors.Is(err, ErrInvalidSession) {
			t.Fatalf("expected ErrInvalidSession for %q, got %v", id, err)
		}
	}
}

func TestLanguageForName(t *testing.T) {
	cases := map[string]string{
		"index.html":   "html",
		"App.TSX":      "typescript",
		"main.go":      "go",
		"notes":        "plaintext",
		"archive.tar":  "plaintext",
		"deploy.yml":   "yaml",
		"run.sh":       "shell",
		"README.md":    "markdown",
		"style.min.js": "javascript",
	}
	for name, want := range cases {
		if got := LanguageForName(name); got != want {
			t.Fatalf("language for %q: expected %q, got %q", name, want, got)
		}
	}
}

func TestAgentResponseWithDefaults(t *testing.T) {
	resp := AgentResponse{Message: "hi"}.WithDefaults()
	if resp.FileOperations == nil || resp.CommandOperations == nil || resp.CodeBlocks == nil {
		t.Fatalf("expected empty slices, got %+v", resp)
	}
	if len(resp.FileOperations) != 0 || len(resp.CommandOperations) != 0 {
		t.Fatalf("expected no operations, got %+v", resp)
	}
}
