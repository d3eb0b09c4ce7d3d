// Package mediatype defines the closed set of content categories the
// ingestion pipeline recognises and the lookup tables used to resolve
// extensions and MIME types to a category.
package mediatype

import "strings"

// Type identifies a content category.
type Type string

const (
	PDF     Type = "pdf"
	Text    Type = "text"
	DOCX    Type = "docx"
	PPTX    Type = "pptx"
	EPUB    Type = "epub"
	XLSX    Type = "xlsx"
	CSV     Type = "csv"
	JSON    Type = "json"
	XML     Type = "xml"
	Image   Type = "image"
	Audio   Type = "audio"
	Web     Type = "web"
	YouTube Type = "youtube"
	Git     Type = "git"
	Archive Type = "archive"
	Paper   Type = "paper"
	Unknown Type = "unknown"
)

// All returns every recognised type except Unknown, in a stable order.
func All() []Type {
	return []Type{
		PDF, Text, DOCX, PPTX, EPUB, XLSX, CSV, JSON, XML,
		Image, Audio, Web, YouTube, Git, Archive, Paper,
	}
}

func (t Type) String() string { return string(t) }

// IsRemote reports whether sources of this type are retrieved over the
// network rather than read from local bytes.
func (t Type) IsRemote() bool {
	switch t {
	case Web, YouTube, Git, Paper:
		return true
	}
	return false
}

// extensionTable maps lowercase file extensions (without dot) to types.
var extensionTable = map[string]Type{
	"pdf":  PDF,
	"txt":  Text,
	"text": Text,
	"md":   Text,
	"markdown": Text,
	"rst":  Text,
	"html": Text,
	"htm":  Text,
	"docx": DOCX,
	"doc":  DOCX,
	"pptx": PPTX,
	"ppt":  PPTX,
	"epub": EPUB,
	"xlsx": XLSX,
	"xls":  XLSX,
	"csv":  CSV,
	"json": JSON,
	"xml":  XML,
	"png":  Image,
	"jpg":  Image,
	"jpeg": Image,
	"gif":  Image,
	"webp": Image,
	"bmp":  Image,
	"tiff": Image,
	"tif":  Image,
	"mp3":  Audio,
	"wav":  Audio,
	"flac": Audio,
	"ogg":  Audio,
	"m4a":  Audio,
	"aac":  Audio,
	"zip":  Archive,
	"tar":  Archive,
	"gz":   Archive,
	"tgz":  Archive,
}

// mimeTable maps MIME types (as reported by content sniffing) to types.
// Prefix entries end with "/" and match any subtype.
var mimeTable = map[string]Type{
	"application/pdf": PDF,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   DOCX,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": PPTX,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         XLSX,
	"application/vnd.ms-excel":    XLSX,
	"application/epub+zip":        EPUB,
	"application/zip":             Archive,
	"application/x-tar":           Archive,
	"application/gzip":            Archive,
	"application/json":            JSON,
	"application/xml":             XML,
	"text/xml":                    XML,
	"text/csv":                    CSV,
	"text/html":                   Text,
	"text/markdown":               Text,
	"text/plain":                  Text,
}

// FromExtension resolves a file extension (with or without leading dot)
// to a media type. Returns Unknown when no rule matches.
func FromExtension(ext string) Type {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if t, ok := extensionTable[ext]; ok {
		return t
	}
	return Unknown
}

// FromMIME resolves a MIME type to a media type. Parameters after ";"
// are ignored. Returns Unknown when no rule matches.
func FromMIME(mime string) Type {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	if t, ok := mimeTable[mime]; ok {
		return t
	}
	switch {
	case strings.HasPrefix(mime, "image/"):
		return Image
	case strings.HasPrefix(mime, "audio/"):
		return Audio
	case strings.HasPrefix(mime, "text/"):
		return Text
	}
	return Unknown
}

// Generic reports whether a sniffed MIME type is too unspecific to be
// authoritative over the file extension. Content sniffers report
// text/plain and application/octet-stream for anything they cannot
// classify more precisely, so those results defer to the extension.
func Generic(mime string) bool {
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "", "text/plain", "application/octet-stream", "text/x-generic":
		return true
	}
	return false
}
