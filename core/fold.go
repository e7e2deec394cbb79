package core

import (
	"fmt"

	"pkt.systems/icoder/schema"
)

// FoldResult is the file set produced by applying file operations in order.
type FoldResult struct {
	Files []schema.File
	// Records holds one human-readable line per applied operation.
	Records []string
	// Mutating reports whether any create, write, or delete was applied.
	Mutating bool
}

// ApplyFileOperations folds ops over files and returns a new snapshot; the
// input slice is not modified. create and write upsert by name, keeping the
// id of an existing file. delete removes by name and is a no-op when the
// name is absent. read and unknown types are ignored.
func ApplyFileOperations(files []schema.File, ops []schema.FileOperation, newFileID func() schema.FileID) FoldResult {
	next := append([]schema.File(nil), files...)
	result := FoldResult{}
	for _, op := range ops {
		if !op.Mutates() {
			continue
		}
		name, err := schema.NormalizeFileName(op.Path)
		if err != nil {
			result.Records = append(result.Records, fmt.Sprintf("⚠️ Skipped %s: %v", op.Path, err))
			continue
		}
		result.Mutating = true
		switch op.Type {
		case schema.FileOpCreate, schema.FileOpWrite:
			next = upsertFile(next, name, op.Content, newFileID)
			verb := "Created"
			if op.Type == schema.FileOpWrite {
				verb = "Updated"
			}
			result.Records = append(result.Records, fmt.Sprintf("✅ %s %s", verb, name))
		case schema.FileOpDelete:
			next = removeFile(next, name)
			result.Records = append(result.Records, fmt.Sprintf("✅ Deleted %s", name))
		}
	}
	result.Files = next
	return result
}

func upsertFile(files []schema.File, name, content string, newFileID func() schema.FileID) []schema.File {
	if idx := indexByName(files, name); idx >= 0 {
		files[idx].Content = content
		files[idx].Language = schema.LanguageForName(name)
		return files
	}
	return append(files, schema.File{
		ID:       newFileID(),
		Name:     name,
		Content:  content,
		Language: schema.LanguageForName(name),
	})
}

func removeFile(files []schema.File, name string) []schema.File {
	out := files[:0:0]
	for _, f := range files {
		if !f.IsDirectory && f.Name == name {
			continue
		}
		out = append(out, f)
	}
	return out
}

func indexByName(files []schema.File, name string) int {
	for i, f := range files {
		if !f.IsDirectory && f.Name == name {
			return i
		}
	}
	return -1
}

func indexByID(files []schema.File, id schema.FileID) int {
	for i, f := range files {
		if f.ID == id {
			return i
		}
	}
	return -1
}
