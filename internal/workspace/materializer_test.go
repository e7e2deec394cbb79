package workspace

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"pkt.systems/icoder/schema"
)

func newTestMaterializer(t *testing.T) *Materializer {
	t.Helper()
	base := t.TempDir()
	m, err := New(Config{
		PreviewRoot:   filepath.Join(base, "preview"),
		WorkspaceRoot: filepath.Join(base, "workspace"),
		PreviewURL:    "http://localhost:3001/preview/index.html",
	})
	if err != nil {
		t.Fatalf("new materializer: %v", err)
	}
	return m
}

func listFiles(t *testing.T, root string) []string {
	t.Helper()
	var names []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		t.Fatalf("walk %s: %v", root, err)
	}
	sort.Strings(names)
	return names
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestSavePreviewClearFirstLeavesExactlyFiles(t *testing.T) {
	m := newTestMaterializer(t)
	ctx := context.Background()

	first := []schema.WireFile{
		{Name: "index.html", Content: "<h1>one</h1>"},
		{Name: "old/app.js", Content: "console.log(1)"},
	}
	if resp, _ := m.SavePreview(ctx, schema.SavePreviewRequest{Files: first, ClearFirst: true}); !resp.Success {
		t.Fatalf("first save failed: %+v", resp)
	}
	second := []schema.WireFile{
		{Name: "index.html", Content: "<h1>two</h1>"},
		{Name: "src/main.css", Content: "body{}"},
	}
	resp, err := m.SavePreview(ctx, schema.SavePreviewRequest{Files: second, ClearFirst: true})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !resp.Success || resp.PreviewURL != "http://localhost:3001/preview/index.html" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	got := listFiles(t, m.PreviewRoot())
	want := []string{"index.html", "src/main.css"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if _, err := os.Stat(filepath.Join(m.PreviewRoot(), "old")); !os.IsNotExist(err) {
		t.Fatalf("expected old dir removed, got %v", err)
	}
	if content := readFile(t, filepath.Join(m.PreviewRoot(), "index.html")); content != "<h1>two</h1>" {
		t.Fatalf("unexpected content %q", content)
	}
}

func TestSavePreviewClearFirstEmptySet(t *testing.T) {
	m := newTestMaterializer(t)
	ctx := context.Background()
	_, _ = m.SavePreview(ctx, schema.SavePreviewRequest{Files: []schema.WireFile{{Name: "a.txt", Content: "a"}}})
	resp, _ := m.SavePreview(ctx, schema.SavePreviewRequest{ClearFirst: true})
	if !resp.Success {
		t.Fatalf("expected success, got %+v", resp)
	}
	if got := listFiles(t, m.PreviewRoot()); len(got) != 0 {
		t.Fatalf("expected empty preview root, got %v", got)
	}
}

func TestSavePreviewWithoutClearKeepsFiles(t *testing.T) {
	m := newTestMaterializer(t)
	ctx := context.Background()
	_, _ = m.SavePreview(ctx, schema.SavePreviewRequest{Files: []schema.WireFile{{Name: "a.txt", Content: "a"}}})
	_, _ = m.SavePreview(ctx, schema.SavePreviewRequest{Files: []schema.WireFile{{Name: "b.txt", Content: "b"}}})
	got := listFiles(t, m.PreviewRoot())
	if len(got) != 2 {
		t.Fatalf("expected both files, got %v", got)
	}
}

func TestSavePreviewSkipsUnnamedAndEscaping(t *testing.T) {
	m := newTestMaterializer(t)
	outside := filepath.Join(filepath.Dir(m.PreviewRoot()), "escaped.txt")
	files := []schema.WireFile{
		{Name: "", Content: "nameless"},
		{Name: "../escaped.txt", Content: "nope"},
		{Name: "ok.txt", Content: "yes"},
	}
	resp, _ := m.SavePreview(context.Background(), schema.SavePreviewRequest{Files: files, ClearFirst: true})
	if !resp.Success {
		t.Fatalf("expected success, got %+v", resp)
	}
	if got := listFiles(t, m.PreviewRoot()); len(got) != 1 || got[0] != "ok.txt" {
		t.Fatalf("expected only ok.txt, got %v", got)
	}
	if _, err := os.Stat(outside); !os.IsNotExist(err) {
		t.Fatalf("expected no file outside root, got %v", err)
	}
}

func TestSavePreviewDirectoryEntries(t *testing.T) {
	m := newTestMaterializer(t)
	files := []schema.WireFile{{Name: "assets", IsDirectory: true}}
	if resp, _ := m.SavePreview(context.Background(), schema.SavePreviewRequest{Files: files}); !resp.Success {
		t.Fatalf("expected success, got %+v", resp)
	}
	info, err := os.Stat(filepath.Join(m.PreviewRoot(), "assets"))
	if err != nil || !info.IsDir() {
		t.Fatalf("expected assets dir, got %v", err)
	}
}

func TestSavePreviewReportsFailure(t *testing.T) {
	m := newTestMaterializer(t)
	ctx := context.Background()
	_, _ = m.SavePreview(ctx, schema.SavePreviewRequest{Files: []schema.WireFile{{Name: "blocker", Content: "file"}}})
	resp, err := m.SavePreview(ctx, schema.SavePreviewRequest{Files: []schema.WireFile{{Name: "blocker/child.txt", Content: "x"}}})
	if err != nil {
		t.Fatalf("expected failure in response, got error %v", err)
	}
	if resp.Success || resp.Error == "" {
		t.Fatalf("expected failure response, got %+v", resp)
	}
}

func TestSyncFilesNeverDeletes(t *testing.T) {
	m := newTestMaterializer(t)
	ctx := context.Background()
	resp, err := m.SyncFiles(ctx, schema.SyncFilesRequest{Files: []schema.WireFile{
		{Name: "package.json", Content: "{}"},
		{Name: "node_modules/dep/index.js", Content: "module.exports = 1"},
	}})
	if err != nil || !resp.Success || resp.Message != SyncedMessage {
		t.Fatalf("unexpected sync result: %+v %v", resp, err)
	}
	resp, _ = m.SyncFiles(ctx, schema.SyncFilesRequest{Files: []schema.WireFile{{Name: "index.js", Content: "require('dep')"}}})
	if !resp.Success {
		t.Fatalf("second sync failed: %+v", resp)
	}
	got := listFiles(t, m.WorkspaceRoot())
	want := []string{"index.js", "node_modules/dep/index.js", "package.json"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestSyncFilesOverwrites(t *testing.T) {
	m := newTestMaterializer(t)
	ctx := context.Background()
	_, _ = m.SyncFiles(ctx, schema.SyncFilesRequest{Files: []schema.WireFile{{Name: "a.txt", Content: "one"}}})
	_, _ = m.SyncFiles(ctx, schema.SyncFilesRequest{Files: []schema.WireFile{{Name: "a.txt", Content: "two"}}})
	if content := readFile(t, filepath.Join(m.WorkspaceRoot(), "a.txt")); content != "two" {
		t.Fatalf("expected overwritten content, got %q", content)
	}
	info, err := os.Stat(filepath.Join(m.WorkspaceRoot(), "a.txt"))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o644 {
		t.Fatalf("expected 0644, got %v", info.Mode().Perm())
	}
}

func TestNewRequiresRoots(t *testing.T) {
	if _, err := New(Config{WorkspaceRoot: t.TempDir()}); err == nil {
		t.Fatalf("expected error for missing preview root")
	}
	if _, err := New(Config{PreviewRoot: t.TempDir()}); err == nil {
		t.Fatalf("expected error for missing workspace root")
	}
}
