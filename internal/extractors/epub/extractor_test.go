package epub

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yexubai/BookBrain/internal/core/domain"
)

const containerXML = `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

const contentOPF = `<?xml version="1.0"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>The Go Programming Language</dc:title>
    <dc:creator>Alan Donovan</dc:creator>
    <dc:publisher>Addison-Wesley</dc:publisher>
    <dc:language>en</dc:language>
    <dc:identifier>uid-1234</dc:identifier>
    <dc:identifier>978-0134190440</dc:identifier>
    <dc:date>2015-10-26</dc:date>
    <dc:description>A guide to Go.</dc:description>
  </metadata>
  <manifest>
    <item id="ch1" href="ch1.xhtml" media-type="application/xhtml+xml"/>
    <item id="ch2" href="ch2.xhtml" media-type="application/xhtml+xml"/>
    <item id="css" href="style.css" media-type="text/css"/>
  </manifest>
  <spine>
    <itemref idref="ch1"/>
    <itemref idref="ch2"/>
  </spine>
</package>`

const chapterOne = `<?xml version="1.0"?>
<html xmlns="http://www.w3.org/1999/xhtml">
  <head><style>p { margin: 0; }</style></head>
  <body><h1>Chapter 1</h1><p>Go is a compiled language.</p></body>
</html>`

const chapterTwo = `<?xml version="1.0"?>
<html xmlns="http://www.w3.org/1999/xhtml">
  <body><p>Goroutines are cheap.</p></body>
</html>`

func writeEPUB(t *testing.T, files map[string]string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "book.epub")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)
	for name, content := range files {
		entry, err := w.Create(name)
		require.NoError(t, err)
		_, err = entry.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	return path
}

func TestExtract(t *testing.T) {
	path := writeEPUB(t, map[string]string{
		"mimetype":               "application/epub+zip",
		"META-INF/container.xml": containerXML,
		"OEBPS/content.opf":      contentOPF,
		"OEBPS/ch1.xhtml":        chapterOne,
		"OEBPS/ch2.xhtml":        chapterTwo,
	})

	got, err := New().Extract(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "The Go Programming Language", got.Title)
	assert.Equal(t, "Alan Donovan", got.Author)
	assert.Equal(t, "Addison-Wesley", got.Publisher)
	assert.Equal(t, "en", got.Language)
	assert.Equal(t, "A guide to Go.", got.Description)
	assert.Equal(t, "978-0134190440", got.ISBN)
	assert.Equal(t, 2015, got.Year)

	assert.Contains(t, got.Text, "Go is a compiled language.")
	assert.Contains(t, got.Text, "Goroutines are cheap.")
	assert.NotContains(t, got.Text, "margin", "style content must be stripped")

	// Spine order is preserved.
	assert.Less(t,
		strings.Index(got.Text, "compiled"),
		strings.Index(got.Text, "Goroutines"))
}

func TestExtractMissingChapterIsSkipped(t *testing.T) {
	path := writeEPUB(t, map[string]string{
		"META-INF/container.xml": containerXML,
		"OEBPS/content.opf":      contentOPF,
		"OEBPS/ch2.xhtml":        chapterTwo,
	})

	got, err := New().Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Contains(t, got.Text, "Goroutines are cheap.")
}

func TestExtractMissingContainer(t *testing.T) {
	path := writeEPUB(t, map[string]string{
		"mimetype": "application/epub+zip",
	})

	_, err := New().Extract(context.Background(), path)
	assert.Error(t, err)
}

func TestExtractNotAZip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.epub")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o644))

	_, err := New().Extract(context.Background(), path)
	assert.Error(t, err)
}

func TestRenderPagesUnsupported(t *testing.T) {
	_, err := New().RenderPages(context.Background(), "any.epub", 5)
	assert.True(t, errors.Is(err, domain.ErrOCRUnavailable))
}

func TestFindISBN(t *testing.T) {
	tests := []struct {
		name string
		ids  []string
		want string
	}{
		{"isbn13 with dashes", []string{"uid-1", "978-0134190440"}, "978-0134190440"},
		{"urn prefix", []string{"urn:isbn:0134190440"}, "urn:isbn:0134190440"},
		{"no isbn", []string{"uuid:abc", "calibre:42"}, ""},
		{"empty", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, findISBN(tt.ids))
		})
	}
}
