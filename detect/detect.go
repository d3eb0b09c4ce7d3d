// Package detect classifies sources into media types. Content sniffing is
// authoritative over file extensions: scraped and downloaded corpora are
// full of files with wrong or missing extensions, and misrouting them to
// the wrong extractor is worse than the cost of reading a prefix.
package detect

import (
	"context"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/mdforge/ingestor/ingest"
	"github.com/mdforge/ingestor/mediatype"
)

// sniffLimit bounds how many leading bytes are read for classification.
const sniffLimit = 3072

var (
	youtubePatterns = []*regexp.Regexp{
		regexp.MustCompile(`^(?:https?://)?(?:www\.)?youtube\.com/watch\?v=[\w-]+`),
		regexp.MustCompile(`^(?:https?://)?(?:www\.)?youtu\.be/[\w-]+`),
		regexp.MustCompile(`^(?:https?://)?(?:www\.)?youtube\.com/playlist\?list=[\w-]+`),
	}
	gitPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^https?://(?:www\.)?github\.com/[^/]+/[^/]+(?:/.*)?$`),
		regexp.MustCompile(`^https?://(?:www\.)?gitlab\.com/[^/]+/[^/]+(?:/.*)?$`),
		regexp.MustCompile(`^git@[\w.-]+:[^/]+/.+\.git$`),
		regexp.MustCompile(`^https?://.+\.git$`),
	}
	webPattern = regexp.MustCompile(`^https?://`)
)

// Detector implements ingest.Detector.
type Detector struct{}

// New creates a Detector.
func New() *Detector {
	mimetype.SetLimit(sniffLimit)
	return &Detector{}
}

// Detect classifies a source. URL sources are pattern-matched before any
// byte inspection (no bytes are resident yet); file and buffer sources
// are sniffed by content with extension fallback. Never returns an error:
// unreadable content resolves to Unknown, and I/O failures from full
// reads are the extractor's concern.
func (d *Detector) Detect(_ context.Context, src *ingest.Source) mediatype.Type {
	if src.IsURL() {
		return detectURL(src.URL)
	}

	// .url pointer files reference web content to crawl.
	if src.Ext() == "url" {
		return mediatype.Web
	}

	if mt := d.sniff(src); mt != mediatype.Unknown {
		// DOCX, PPTX, XLSX, and EPUB are zip containers. A bare "zip"
		// answer is correct but less specific than an OOXML extension.
		if mt == mediatype.Archive {
			switch ext := mediatype.FromExtension(src.Ext()); ext {
			case mediatype.DOCX, mediatype.PPTX, mediatype.XLSX, mediatype.EPUB:
				return ext
			}
		}
		return mt
	}

	if src.MIME != "" {
		if mt := mediatype.FromMIME(src.MIME); mt != mediatype.Unknown {
			return mt
		}
	}

	return mediatype.FromExtension(src.Ext())
}

// sniff classifies by content signature. Generic sniffer answers
// (text/plain, application/octet-stream) are treated as low confidence
// and defer to the extension, the declared hint, or Unknown.
func (d *Detector) sniff(src *ingest.Source) mediatype.Type {
	prefix := src.Prefix(sniffLimit)
	if len(prefix) == 0 {
		return mediatype.Unknown
	}

	detected := mimetype.Detect(prefix)
	if mediatype.Generic(detected.String()) {
		return mediatype.Unknown
	}
	return mediatype.FromMIME(detected.String())
}

func detectURL(url string) mediatype.Type {
	trimmed := strings.TrimSpace(url)
	for _, pat := range youtubePatterns {
		if pat.MatchString(trimmed) {
			return mediatype.YouTube
		}
	}
	for _, pat := range gitPatterns {
		if pat.MatchString(trimmed) {
			return mediatype.Git
		}
	}
	if webPattern.MatchString(trimmed) {
		return mediatype.Web
	}
	return mediatype.Unknown
}
