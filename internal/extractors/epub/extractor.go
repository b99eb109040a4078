// Package epub extracts metadata and text from EPUB files.
//
// An EPUB is a zip container: META-INF/container.xml points at an OPF
// package document carrying Dublin Core metadata, a manifest and a
// spine. Text content lives in XHTML items referenced by the spine.
// The standard library's archive/zip and encoding/xml cover the whole
// format, so no external dependency is needed here.
package epub

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/yexubai/BookBrain/internal/core/domain"
	"github.com/yexubai/BookBrain/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// maxTextBytes bounds how much chapter text is pulled from a single
// EPUB; the pipeline truncates further per configuration.
const maxTextBytes = 1 << 20

// Extractor handles EPUB documents.
type Extractor struct{}

// New creates a new EPUB extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extensions returns the file extensions this extractor handles.
func (e *Extractor) Extensions() []string {
	return []string{".epub"}
}

// container mirrors META-INF/container.xml.
type container struct {
	Rootfiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

// opf mirrors the parts of the package document we consume.
type opf struct {
	Metadata struct {
		Titles      []string `xml:"title"`
		Creators    []string `xml:"creator"`
		Publishers  []string `xml:"publisher"`
		Languages   []string `xml:"language"`
		Identifiers []string `xml:"identifier"`
		Dates       []string `xml:"date"`
		Description string   `xml:"description"`
	} `xml:"metadata"`
	Manifest struct {
		Items []struct {
			ID        string `xml:"id,attr"`
			Href      string `xml:"href,attr"`
			MediaType string `xml:"media-type,attr"`
		} `xml:"item"`
	} `xml:"manifest"`
	Spine struct {
		ItemRefs []struct {
			IDRef string `xml:"idref,attr"`
		} `xml:"itemref"`
	} `xml:"spine"`
}

// Extract parses the EPUB container and returns metadata plus the
// concatenated chapter text in spine order.
func (e *Extractor) Extract(ctx context.Context, p string) (*driven.Extraction, error) {
	r, err := zip.OpenReader(p)
	if err != nil {
		return nil, fmt.Errorf("epub: opening %s: %w", path.Base(p), err)
	}
	defer r.Close()

	files := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		files[f.Name] = f
	}

	opfPath, err := rootfilePath(files)
	if err != nil {
		return nil, err
	}

	var pkg opf
	if err := unmarshalZipXML(files, opfPath, &pkg); err != nil {
		return nil, fmt.Errorf("epub: parsing package document: %w", err)
	}

	out := &driven.Extraction{
		Title:       first(pkg.Metadata.Titles),
		Author:      first(pkg.Metadata.Creators),
		Publisher:   first(pkg.Metadata.Publishers),
		Language:    first(pkg.Metadata.Languages),
		Description: strings.TrimSpace(pkg.Metadata.Description),
		ISBN:        findISBN(pkg.Metadata.Identifiers),
		Year:        parseYear(first(pkg.Metadata.Dates)),
	}

	hrefByID := make(map[string]string, len(pkg.Manifest.Items))
	for _, item := range pkg.Manifest.Items {
		if strings.Contains(item.MediaType, "html") {
			hrefByID[item.ID] = item.Href
		}
	}

	opfDir := path.Dir(opfPath)
	var sb strings.Builder
	for _, ref := range pkg.Spine.ItemRefs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		href, ok := hrefByID[ref.IDRef]
		if !ok {
			continue
		}
		f, ok := files[resolveHref(opfDir, href)]
		if !ok {
			continue
		}
		text, err := readChapterText(f)
		if err != nil {
			continue // a broken chapter never fails the whole book
		}
		if text != "" {
			sb.WriteString(text)
			sb.WriteString("\n")
		}
		if sb.Len() >= maxTextBytes {
			break
		}
	}

	out.Text = strings.TrimSpace(sb.String())
	return out, nil
}

// RenderPages is unsupported: EPUBs are reflowable and have no page
// model to rasterise, so the OCR fallback does not apply.
func (e *Extractor) RenderPages(_ context.Context, _ string, _ int) ([]driven.PageImage, error) {
	return nil, domain.ErrOCRUnavailable
}

// rootfilePath locates the OPF package document via container.xml.
func rootfilePath(files map[string]*zip.File) (string, error) {
	var c container
	if err := unmarshalZipXML(files, "META-INF/container.xml", &c); err != nil {
		return "", fmt.Errorf("epub: parsing container.xml: %w", err)
	}
	if len(c.Rootfiles) == 0 || c.Rootfiles[0].FullPath == "" {
		return "", fmt.Errorf("epub: container.xml declares no rootfile")
	}
	return c.Rootfiles[0].FullPath, nil
}

func unmarshalZipXML(files map[string]*zip.File, name string, v any) error {
	f, ok := files[name]
	if !ok {
		return fmt.Errorf("missing %s", name)
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	return xml.NewDecoder(rc).Decode(v)
}

// readChapterText strips markup from one XHTML chapter using the XML
// tokenizer, skipping script and style elements.
func readChapterText(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	dec := xml.NewDecoder(rc)
	dec.Strict = false
	dec.AutoClose = xml.HTMLAutoClose
	dec.Entity = xml.HTMLEntity

	var sb strings.Builder
	skipDepth := 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Salvage whatever text preceded the malformed markup.
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if name := strings.ToLower(t.Name.Local); name == "script" || name == "style" {
				skipDepth++
			}
		case xml.EndElement:
			if name := strings.ToLower(t.Name.Local); name == "script" || name == "style" {
				if skipDepth > 0 {
					skipDepth--
				}
			}
		case xml.CharData:
			if skipDepth == 0 {
				if text := strings.TrimSpace(string(t)); text != "" {
					sb.WriteString(text)
					sb.WriteString(" ")
				}
			}
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

// resolveHref joins a manifest href onto the OPF directory.
func resolveHref(opfDir, href string) string {
	if opfDir == "." || opfDir == "" {
		return href
	}
	return path.Join(opfDir, href)
}

// findISBN returns the first identifier that looks like an ISBN-10 or
// ISBN-13 after stripping separators.
func findISBN(identifiers []string) string {
	for _, id := range identifiers {
		clean := strings.NewReplacer("-", "", " ", "", "urn:isbn:", "").Replace(strings.ToLower(id))
		if len(clean) == 10 || len(clean) == 13 {
			if _, err := strconv.ParseUint(strings.TrimSuffix(clean, "x"), 10, 64); err == nil {
				return strings.TrimSpace(id)
			}
		}
	}
	return ""
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

// parseYear extracts the leading four-digit year from a Dublin Core
// date, which may be "2006", "2006-05-01" or a full timestamp.
func parseYear(date string) int {
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil || year < 1000 {
		return 0
	}
	return year
}
