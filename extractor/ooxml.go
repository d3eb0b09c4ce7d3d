package extractor

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"
)

// zipEntry finds a named file inside an opened zip archive.
func zipEntry(r *zip.Reader, name string) (*zip.File, bool) {
	for _, f := range r.File {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// readZipEntry reads the full content of one archive member.
func readZipEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// relationship is one entry of an OOXML .rels part.
type relationship struct {
	ID     string `xml:"Id,attr"`
	Type   string `xml:"Type,attr"`
	Target string `xml:"Target,attr"`
}

type relationships struct {
	Rels []relationship `xml:"Relationship"`
}

// parseRels reads an OOXML relationships part and returns rId → target,
// with relative targets resolved against baseDir.
func parseRels(r *zip.Reader, relsPath, baseDir string) (map[string]string, error) {
	f, ok := zipEntry(r, relsPath)
	if !ok {
		return map[string]string{}, nil
	}
	data, err := readZipEntry(f)
	if err != nil {
		return nil, err
	}
	var rels relationships
	if err := xml.Unmarshal(data, &rels); err != nil {
		return nil, fmt.Errorf("parse %s: %w", relsPath, err)
	}
	out := make(map[string]string, len(rels.Rels))
	for _, rel := range rels.Rels {
		target := rel.Target
		if !strings.HasPrefix(target, "/") {
			target = path.Join(baseDir, target)
		} else {
			target = strings.TrimPrefix(target, "/")
		}
		out[rel.ID] = path.Clean(target)
	}
	return out, nil
}
