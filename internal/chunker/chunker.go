// Package chunker provides the default code-analysis collaborator: it walks
// a repository checkout, splits source files into line windows, and extracts
// declared symbols and call names with lightweight pattern matching. A
// heavier AST-based analyzer can replace it behind the indexer's Analyzer
// interface.
package chunker

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"codemind/internal/vectorstore"
)

const (
	windowLines  = 60
	overlapLines = 10
	maxFileBytes = 1 << 20 // skip files over 1 MiB, likely generated or binary
)

// languageByExt maps file extensions to language names. Files with other
// extensions are skipped.
var languageByExt = map[string]string{
	".go":   "go",
	".py":   "python",
	".js":   "javascript",
	".jsx":  "javascript",
	".ts":   "typescript",
	".tsx":  "typescript",
	".java": "java",
	".rb":   "ruby",
	".rs":   "rust",
	".c":    "c",
	".h":    "c",
	".cpp":  "cpp",
	".cs":   "csharp",
	".php":  "php",
}

var (
	// Declaration sites: func/def/class/type/interface followed by a name.
	symbolRe = regexp.MustCompile(`(?m)^\s*(?:export\s+)?(?:func|def|class|type|interface|struct)\s+(?:\([^)]*\)\s*)?([A-Za-z_][A-Za-z0-9_]*)`)
	// Call sites: identifier immediately followed by an open paren.
	callRe = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]*)\s*\(`)
)

// keywords are identifiers that look like call sites but aren't.
var keywords = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "return": true,
	"func": true, "def": true, "catch": true, "with": true, "select": true,
}

// Chunker is the line-window analyzer.
type Chunker struct{}

// New creates a Chunker.
func New() *Chunker { return &Chunker{} }

// Analyze walks the checkout at root and produces annotated chunks for the
// given repo/branch. Embeddings are left empty; the vectorize stage fills
// them in.
func (c *Chunker) Analyze(root, repo, branch, runID string) ([]vectorstore.Chunk, error) {
	var chunks []vectorstore.Chunk

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" || d.Name() == "node_modules" || d.Name() == "vendor" {
				return filepath.SkipDir
			}
			return nil
		}

		lang, ok := languageByExt[strings.ToLower(filepath.Ext(path))]
		if !ok {
			return nil
		}
		info, err := d.Info()
		if err != nil || info.Size() > maxFileBytes {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		chunks = append(chunks, chunkFile(rel, lang, string(data), repo, branch, runID)...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

// chunkFile splits one file into overlapping line windows.
func chunkFile(filename, lang, content, repo, branch, runID string) []vectorstore.Chunk {
	lines := strings.Split(content, "\n")

	var chunks []vectorstore.Chunk
	step := windowLines - overlapLines
	for start := 0; start < len(lines); start += step {
		end := start + windowLines
		if end > len(lines) {
			end = len(lines)
		}
		text := strings.Join(lines[start:end], "\n")
		if strings.TrimSpace(text) == "" {
			if end == len(lines) {
				break
			}
			continue
		}

		chunks = append(chunks, vectorstore.Chunk{
			Filename:   filename,
			Language:   lang,
			Location:   fmt.Sprintf("%d-%d", start+1, end),
			StartLine:  start + 1,
			EndLine:    end,
			Code:       text,
			Symbols:    extractSymbols(text),
			Calls:      extractCalls(text),
			Repo:       repo,
			Branch:     branch,
			IndexRunID: runID,
		})
		if end == len(lines) {
			break
		}
	}
	return chunks
}

func extractSymbols(text string) []string {
	return uniqueMatches(symbolRe.FindAllStringSubmatch(text, -1))
}

func extractCalls(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range callRe.FindAllStringSubmatch(text, -1) {
		name := m[1]
		if keywords[name] || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

func uniqueMatches(matches [][]string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range matches {
		if seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		out = append(out, m[1])
	}
	return out
}
