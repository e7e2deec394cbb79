package schema

import "strings"

// DefaultLanguage is used for names without a known extension.
const DefaultLanguage = "plaintext"

var languageByExtension = map[string]string{
	"js":   "javascript",
	"jsx":  "javascript",
	"ts":   "typescript",
	"tsx":  "typescript",
	"py":   "python",
	"java": "java",
	"c":    "c",
	"cpp":  "cpp",
	"cs":   "csharp",
	"php":  "php",
	"rb":   "ruby",
	"go":   "go",
	"rs":   "rust",
	"html": "html",
	"css":  "css",
	"scss": "scss",
	"json": "json",
	"xml":  "xml",
	"md":   "markdown",
	"sql":  "sql",
	"sh":   "shell",
	"yml":  "yaml",
	"yaml": "yaml",
}

// LanguageForName derives the editor language tag from a file name.
func LanguageForName(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx == -1 {
		return DefaultLanguage
	}
	ext := strings.ToLower(name[idx+1:])
	if lang, ok := languageByExtension[ext]; ok {
		return lang
	}
	return DefaultLanguage
}
