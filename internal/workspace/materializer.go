package workspace

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
	"pkt.systems/icoder/schema"
	"pkt.systems/pslog"
)

// SyncedMessage is reported after a successful workspace sync.
const SyncedMessage = "Files synced"

// Config configures the on-disk roots.
type Config struct {
	// PreviewRoot is replaced wholesale on clearing saves and served as the
	// live preview.
	PreviewRoot string
	// WorkspaceRoot is only ever overwritten, never cleared.
	WorkspaceRoot string
	// PreviewURL is reported back after a successful preview save.
	PreviewURL string
}

// Materializer mirrors in-memory files onto the preview and workspace roots.
// Writers do not lock the roots.
type Materializer struct {
	previewRoot   string
	workspaceRoot string
	previewURL    string
}

// New constructs a materializer and ensures both roots exist.
func New(cfg Config) (*Materializer, error) {
	if strings.TrimSpace(cfg.PreviewRoot) == "" {
		return nil, errors.New("preview root is required")
	}
	if strings.TrimSpace(cfg.WorkspaceRoot) == "" {
		return nil, errors.New("workspace root is required")
	}
	preview, err := filepath.Abs(cfg.PreviewRoot)
	if err != nil {
		return nil, fmt.Errorf("preview root: %w", err)
	}
	work, err := filepath.Abs(cfg.WorkspaceRoot)
	if err != nil {
		return nil, fmt.Errorf("workspace root: %w", err)
	}
	for _, dir := range []string{preview, work} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return &Materializer{previewRoot: preview, workspaceRoot: work, previewURL: cfg.PreviewURL}, nil
}

// PreviewRoot returns the absolute preview root.
func (m *Materializer) PreviewRoot() string { return m.previewRoot }

// WorkspaceRoot returns the absolute workspace root.
func (m *Materializer) WorkspaceRoot() string { return m.workspaceRoot }

// SavePreview writes files under the preview root, first removing and
// recreating the root when ClearFirst is set. Failures are reported in the
// response and leave already written files in place.
func (m *Materializer) SavePreview(ctx context.Context, req schema.SavePreviewRequest) (schema.SavePreviewResponse, error) {
	log := pslog.Ctx(ctx).With("root", m.previewRoot, "clear_first", req.ClearFirst)
	if req.ClearFirst {
		if err := resetDir(m.previewRoot); err != nil {
			log.Warn("workspace preview clear failed", "err", err)
			return schema.SavePreviewResponse{Success: false, Error: err.Error()}, nil
		}
	}
	written, err := writeFiles(log, m.previewRoot, req.Files)
	if err != nil {
		log.Warn("workspace preview save failed", "err", err, "written", written)
		return schema.SavePreviewResponse{Success: false, Error: err.Error()}, nil
	}
	log.Info("workspace preview saved", "files", len(req.Files), "written", written)
	return schema.SavePreviewResponse{Success: true, PreviewURL: m.previewURL}, nil
}

// SyncFiles writes files under the workspace root without removing
// anything already present.
func (m *Materializer) SyncFiles(ctx context.Context, req schema.SyncFilesRequest) (schema.SyncFilesResponse, error) {
	log := pslog.Ctx(ctx).With("root", m.workspaceRoot)
	if err := os.MkdirAll(m.workspaceRoot, 0o755); err != nil {
		log.Warn("workspace sync failed", "err", err)
		return schema.SyncFilesResponse{Success: false, Error: err.Error()}, nil
	}
	written, err := writeFiles(log, m.workspaceRoot, req.Files)
	if err != nil {
		log.Warn("workspace sync failed", "err", err, "written", written)
		return schema.SyncFilesResponse{Success: false, Error: err.Error()}, nil
	}
	log.Debug("workspace synced", "files", len(req.Files), "written", written)
	return schema.SyncFilesResponse{Success: true, Message: SyncedMessage}, nil
}

func resetDir(root string) error {
	if err := os.RemoveAll(root); err != nil {
		return err
	}
	return os.MkdirAll(root, 0o755)
}

// writeFiles writes each entry under root. Entries without a name are
// skipped, as are names resolving outside root.
func writeFiles(log pslog.Logger, root string, files []schema.WireFile) (int, error) {
	written := 0
	for _, file := range files {
		if file.Name == "" {
			continue
		}
		target, err := resolve(root, file.Name)
		if err != nil {
			log.Warn("workspace file skipped", "name", file.Name, "err", err)
			continue
		}
		if file.IsDirectory {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return written, err
			}
			continue
		}
		if err := writeFile(target, file.Content); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

func writeFile(target, content string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	_, statErr := os.Stat(target)
	if err := atomic.WriteFile(target, strings.NewReader(content)); err != nil {
		return err
	}
	if errors.Is(statErr, fs.ErrNotExist) {
		return os.Chmod(target, 0o644)
	}
	return nil
}

// resolve joins a project-relative name onto root.
func resolve(root, name string) (string, error) {
	clean, err := schema.NormalizeFileName(name)
	if err != nil {
		return "", err
	}
	target := filepath.Join(root, filepath.FromSlash(clean))
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", schema.ErrPathEscapesRoot
	}
	return target, nil
}
