package ingest

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/mdforge/ingestor/mediatype"
)

// ItemResult is the outcome of one source in a batch run.
type ItemResult struct {
	Source string        `json:"source"`
	Paths  *WrittenPaths `json:"paths,omitempty"`
	Err    error         `json:"-"`
	Error  string        `json:"error,omitempty"`
}

// BatchReport summarises a batch run.
type BatchReport struct {
	Items     []ItemResult `json:"items"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Skipped   int          `json:"skipped"`
	Cancelled bool         `json:"cancelled"`
}

// Failed reports whether any source in the batch failed.
func (r *BatchReport) AnyFailed() bool { return r.Failed > 0 }

// RunBatch processes sources concurrently, bounded by the configured
// concurrency limit. Each source runs an independent pipeline instance:
// failure of one never affects siblings, and results arrive in input
// order regardless of completion order.
//
// Cancellation is cooperative: once ctx is done no new source pipelines
// launch, in-flight ones abort at their next suspension point, and
// already-written outputs remain valid.
func (p *Pipeline) RunBatch(ctx context.Context, sources []*Source) *BatchReport {
	report := &BatchReport{Items: make([]ItemResult, len(sources))}

	sem := semaphore.NewWeighted(int64(p.cfg.Concurrency))
	var wg sync.WaitGroup

	for i, src := range sources {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Context cancelled: mark the remainder without launching.
			report.Cancelled = true
			for j := i; j < len(sources); j++ {
				report.Items[j] = ItemResult{Source: sources[j].Identifier(), Err: ctx.Err(), Error: ctx.Err().Error()}
			}
			break
		}

		wg.Add(1)
		go func(i int, src *Source) {
			defer wg.Done()
			defer sem.Release(1)

			paths, err := p.Process(ctx, src)
			item := ItemResult{Source: src.Identifier(), Paths: paths, Err: err}
			if err != nil {
				item.Error = err.Error()
			}
			report.Items[i] = item
		}(i, src)
	}

	wg.Wait()

	for _, item := range report.Items {
		switch {
		case item.Err != nil:
			report.Failed++
		case item.Paths != nil && item.Paths.Skipped:
			report.Skipped++
			report.Succeeded++
		default:
			report.Succeeded++
		}
	}
	return report
}

// DiscoverSources walks a folder and returns a source per supported file.
// Files with unrecognised extensions are skipped silently; `.url` pointer
// files become remote sources for the URL they contain.
func DiscoverSources(folder string, recursive bool) ([]*Source, error) {
	var sources []*Source

	walk := func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !recursive && path != folder {
				return fs.SkipDir
			}
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".url") {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil // unreadable pointer file, skip
			}
			if url := firstURLLine(string(data)); url != "" {
				sources = append(sources, FromURL(url))
			}
			return nil
		}
		if mediatype.FromExtension(filepath.Ext(path)) == mediatype.Unknown {
			return nil
		}
		sources = append(sources, FromPath(path))
		return nil
	}

	if err := filepath.WalkDir(folder, walk); err != nil {
		return nil, err
	}
	return sources, nil
}

// firstURLLine returns the first non-empty, non-comment line that looks
// like an http(s) URL.
func firstURLLine(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// Windows .url shortcut format: URL=https://...
		line = strings.TrimPrefix(line, "URL=")
		if strings.HasPrefix(line, "http://") || strings.HasPrefix(line, "https://") {
			return line
		}
	}
	return ""
}
