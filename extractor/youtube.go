package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"

	"github.com/mdforge/ingestor/fetch"
	"github.com/mdforge/ingestor/ingest"
	"github.com/mdforge/ingestor/mediatype"
)

var youtubeURLRe = regexp.MustCompile(`(?i)^https?://(www\.)?(youtube\.com/watch|youtu\.be/|youtube\.com/shorts/)`)

// YouTube extracts video metadata through the public oEmbed endpoint.
// Transcription is out of scope; the result carries title, author, and
// a link back to the video.
type YouTube struct {
	fetcher *fetch.Fetcher

	// OEmbedBase is the oEmbed endpoint prefix, settable for tests.
	OEmbedBase string
}

func NewYouTube(fetcher *fetch.Fetcher) *YouTube {
	return &YouTube{fetcher: fetcher, OEmbedBase: "https://www.youtube.com/oembed"}
}

func (y *YouTube) Supports(src *ingest.Source) bool {
	return src.IsURL() && youtubeURLRe.MatchString(src.URL)
}

func (y *YouTube) Extract(ctx context.Context, src *ingest.Source) (*ingest.ExtractionResult, error) {
	oembed := y.OEmbedBase + "?format=json&url=" + url.QueryEscape(src.URL)
	res, err := y.fetcher.Fetch(ctx, oembed)
	if err != nil {
		return nil, ingest.Unreadable(fmt.Errorf("oembed %s: %w", src.URL, err))
	}

	var meta struct {
		Title        string `json:"title"`
		AuthorName   string `json:"author_name"`
		AuthorURL    string `json:"author_url"`
		ThumbnailURL string `json:"thumbnail_url"`
	}
	if err := json.Unmarshal(res.Body, &meta); err != nil {
		return nil, ingest.Malformed(fmt.Errorf("oembed decode: %w", err))
	}
	if meta.Title == "" {
		meta.Title = src.URL
	}

	result := &ingest.ExtractionResult{
		MediaType: mediatype.YouTube,
		SourceID:  src.Identifier(),
		Metadata: map[string]any{
			"title":  meta.Title,
			"author": meta.AuthorName,
			"url":    src.URL,
		},
	}

	markdown := fmt.Sprintf("# %s\n\n", meta.Title)
	if meta.AuthorName != "" {
		markdown += fmt.Sprintf("By [%s](%s)\n\n", meta.AuthorName, meta.AuthorURL)
	}
	markdown += fmt.Sprintf("[Watch on YouTube](%s)\n", src.URL)

	if meta.ThumbnailURL != "" {
		if thumb, err := y.fetcher.Fetch(ctx, meta.ThumbnailURL); err == nil {
			name := "thumbnail" + imageExt(meta.ThumbnailURL)
			result.Images = append(result.Images, ingest.Image{Data: thumb.Body, Format: formatFromName(name), Name: name})
			markdown += fmt.Sprintf("\n![thumbnail](img/%s)\n", name)
		} else {
			result.AddWarning("thumbnail download failed: %v", err)
		}
	}

	result.Markdown = markdown
	return result, nil
}
