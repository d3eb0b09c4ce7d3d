package extractor

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/mdforge/ingestor/ingest"
	"github.com/mdforge/ingestor/mediatype"
)

var gitURLRe = regexp.MustCompile(`(?i)^(https?://(github\.com|gitlab\.com|bitbucket\.org)/|git@|https?://.+\.git$)`)

// codeExts are file extensions inlined as fenced code blocks during a
// repository walk, keyed to the fence language tag.
var codeExts = map[string]string{
	".go":   "go",
	".py":   "python",
	".js":   "javascript",
	".ts":   "typescript",
	".rs":   "rust",
	".java": "java",
	".c":    "c",
	".h":    "c",
	".cpp":  "cpp",
	".rb":   "ruby",
	".sh":   "bash",
	".sql":  "sql",
	".yaml": "yaml",
	".yml":  "yaml",
	".toml": "toml",
	".json": "json",
	".md":   "markdown",
}

// skipDirs are directories never walked inside a cloned repository.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	"__pycache__":  true,
	".venv":        true,
}

// Git extracts a repository by shallow-cloning it and rendering its
// README plus a bounded walk of source files as fenced code blocks.
type Git struct {
	// MaxFiles bounds how many files are inlined.
	MaxFiles int
	// MaxFileBytes bounds the size of each inlined file.
	MaxFileBytes int64
}

func NewGit(maxFiles int, maxFileBytes int64) *Git {
	return &Git{MaxFiles: maxFiles, MaxFileBytes: maxFileBytes}
}

func (g *Git) Supports(src *ingest.Source) bool {
	return src.IsURL() && gitURLRe.MatchString(src.URL)
}

func (g *Git) Extract(ctx context.Context, src *ingest.Source) (*ingest.ExtractionResult, error) {
	dir, err := os.MkdirTemp("", "ingestor-git-*")
	if err != nil {
		return nil, fmt.Errorf("git: temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	cmd := exec.CommandContext(ctx, "git", "clone", "--depth", "1", src.URL, dir)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, ingest.Unreadable(fmt.Errorf("git clone %s: %w: %s", src.URL, err, strings.TrimSpace(string(out))))
	}

	result := &ingest.ExtractionResult{
		MediaType: mediatype.Git,
		SourceID:  src.Identifier(),
		Metadata:  map[string]any{"url": src.URL, "title": repoName(src.URL)},
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", repoName(src.URL))

	if readme := g.readReadme(dir); readme != "" {
		b.WriteString(readme)
		b.WriteString("\n\n---\n\n")
	}

	files, truncated := g.collectFiles(dir)
	if truncated {
		result.AddWarning("repository has more than %d eligible files; walk truncated", g.MaxFiles)
	}

	b.WriteString("## Files\n")
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		g.renderFile(&b, dir, rel, result)
	}

	result.Markdown = normalizeWhitespace(b.String())
	result.Metadata["file_count"] = len(files)
	return result, nil
}

// readReadme returns the repository README content, if any.
func (g *Git) readReadme(dir string) string {
	for _, name := range []string{"README.md", "README.rst", "README.txt", "README", "readme.md"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		if int64(len(data)) > g.MaxFileBytes {
			data = data[:g.MaxFileBytes]
		}
		return strings.TrimSpace(string(data))
	}
	return ""
}

// collectFiles walks the clone and returns relative paths of eligible
// source files, sorted, capped at MaxFiles.
func (g *Git) collectFiles(dir string) (files []string, truncated bool) {
	var all []string
	filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if skipDirs[d.Name()] || strings.HasPrefix(d.Name(), ".") && p != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := codeExts[strings.ToLower(filepath.Ext(p))]; !ok {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return nil
		}
		if strings.EqualFold(rel, "README.md") {
			return nil
		}
		all = append(all, rel)
		return nil
	})
	sort.Strings(all)
	if len(all) > g.MaxFiles {
		return all[:g.MaxFiles], true
	}
	return all, false
}

// renderFile appends one repository file as a fenced code block.
func (g *Git) renderFile(b *strings.Builder, dir, rel string, result *ingest.ExtractionResult) {
	full := filepath.Join(dir, rel)
	info, err := os.Stat(full)
	if err != nil {
		return
	}
	data, err := os.ReadFile(full)
	if err != nil {
		result.AddWarning("unreadable file %s: %v", rel, err)
		return
	}
	clipped := false
	if int64(len(data)) > g.MaxFileBytes {
		data = data[:g.MaxFileBytes]
		clipped = true
	}
	lang := codeExts[strings.ToLower(filepath.Ext(rel))]
	fmt.Fprintf(b, "\n### %s\n\n```%s\n%s\n```\n", filepath.ToSlash(rel), lang, strings.TrimRight(string(data), "\n"))
	if clipped {
		result.AddWarning("file %s clipped at %d bytes (size %d)", rel, g.MaxFileBytes, info.Size())
	}
}

// repoName derives a display name from a repository URL.
func repoName(repoURL string) string {
	s := strings.TrimSuffix(strings.TrimRight(repoURL, "/"), ".git")
	if i := strings.LastIndexAny(s, "/:"); i >= 0 {
		s = s[i+1:]
	}
	if s == "" {
		return "repository"
	}
	return s
}
