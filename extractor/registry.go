package extractor

import (
	"time"

	"github.com/mdforge/ingestor/fetch"
	"github.com/mdforge/ingestor/ingest"
	"github.com/mdforge/ingestor/mediatype"
)

// NewSet builds a fully populated registry from the configuration. The
// returned closer releases shared resources (the browser renderer, when
// web.strategy is "browser") and is safe to call when nothing was
// acquired.
func NewSet(cfg *ingest.Config) (*ingest.Registry, func(), error) {
	fetcher := fetch.New(fetch.Config{
		Timeout:   time.Duration(cfg.Web.TimeoutSeconds) * time.Second,
		MaxBytes:  cfg.MaxFileSize,
		UserAgent: cfg.Web.UserAgent,
	})

	var renderer Renderer
	closer := func() {}
	if cfg.Web.Strategy == "browser" {
		r := fetch.NewRenderer(time.Duration(cfg.Web.TimeoutSeconds)*time.Second, cfg.Logger)
		renderer = r
		closer = func() { r.Close() }
	}

	text := NewText(cfg.MaxFileSize)

	reg := ingest.NewRegistry()
	reg.MustRegister(mediatype.PDF, NewPDF())
	reg.MustRegister(mediatype.Text, text)
	reg.MustRegister(mediatype.DOCX, NewDOCX())
	reg.MustRegister(mediatype.PPTX, NewPPTX())
	reg.MustRegister(mediatype.EPUB, NewEPUB())
	reg.MustRegister(mediatype.XLSX, NewXLSX())
	reg.MustRegister(mediatype.CSV, NewCSV())
	reg.MustRegister(mediatype.JSON, NewJSON(cfg.MaxFileSize))
	reg.MustRegister(mediatype.XML, NewXML(cfg.MaxFileSize))
	reg.MustRegister(mediatype.Image, NewImageFile(cfg.MaxFileSize))
	reg.MustRegister(mediatype.Archive, NewArchive())
	reg.MustRegister(mediatype.Web, NewWeb(fetcher, renderer, cfg.Web.MaxDepth, cfg.Web.MaxPages, cfg.Logger))
	reg.MustRegister(mediatype.YouTube, NewYouTube(fetcher))
	reg.MustRegister(mediatype.Git, NewGit(cfg.Git.MaxFiles, cfg.Git.MaxFileBytes))
	if cfg.Audio.Transcriber != "" {
		reg.MustRegister(mediatype.Audio, NewAudio(cfg.Audio.Transcriber, cfg.Audio.Model))
	}

	return reg, closer, nil
}
