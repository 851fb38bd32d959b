package extract_test

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradedesk/gradedesk/internal/adapter/driven/extract"
	"github.com/gradedesk/gradedesk/internal/domain/port/driven"
)

// writeZip creates a zip file at path with the given entries.
func writeZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestExtractor_PlainText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "essay.txt")
	writeFile(t, path, "The quick brown fox.\nSecond line.")

	text, err := extract.NewExtractor().Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "The quick brown fox.\nSecond line.", text)
}

func TestExtractor_Markdown(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "essay.md")
	writeFile(t, path, "# Title\n\nBody text.")

	text, err := extract.NewExtractor().Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "# Title\n\nBody text.", text)
}

func TestExtractor_HTML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "essay.html")
	writeFile(t, path, `<html><body><h1>Title</h1><p>First &amp; second.</p><p>Third.</p></body></html>`)

	text, err := extract.NewExtractor().Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Title\nFirst & second.\nThird.", text)
}

func TestExtractor_HTML_StripsScripts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "essay.htm")
	writeFile(t, path, `<p>Visible</p><script>alert("nope")</script>`)

	text, err := extract.NewExtractor().Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Visible", text)
}

const wordDocument = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Hello</w:t></w:r><w:r><w:t xml:space="preserve"> world</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second</w:t></w:r><w:r><w:tab/><w:t>col</w:t></w:r></w:p>
  </w:body>
</w:document>`

func TestExtractor_DOCX(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "essay.docx")
	writeZip(t, path, map[string]string{
		"[Content_Types].xml": `<Types/>`,
		"word/document.xml":   wordDocument,
	})

	text, err := extract.NewExtractor().Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Hello world\nSecond\tcol", text)
}

func TestExtractor_DOCX_MissingDocumentXML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "essay.docx")
	writeZip(t, path, map[string]string{"[Content_Types].xml": `<Types/>`})

	_, err := extract.NewExtractor().Extract(context.Background(), path)
	require.Error(t, err)
	assert.ErrorIs(t, err, driven.ErrCorruptDocument)
}

func TestExtractor_DOCX_NotAZip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "essay.docx")
	writeFile(t, path, "this is not a zip archive")

	_, err := extract.NewExtractor().Extract(context.Background(), path)
	require.Error(t, err)
	assert.ErrorIs(t, err, driven.ErrCorruptDocument)
}

const odtContent = `<?xml version="1.0" encoding="UTF-8"?>
<office:document-content
    xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0"
    xmlns:text="urn:oasis:names:tc:opendocument:xmlns:text:1.0">
  <office:body>
    <office:text>
      <text:p>First paragraph</text:p>
      <text:h text:outline-level="1">Heading</text:h>
      <text:p>A<text:tab/>B<text:line-break/>C</text:p>
    </office:text>
  </office:body>
</office:document-content>`

func TestExtractor_ODT(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "essay.odt")
	writeZip(t, path, map[string]string{
		"mimetype":    "application/vnd.oasis.opendocument.text",
		"content.xml": odtContent,
	})

	text, err := extract.NewExtractor().Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "First paragraph\nHeading\nA\tB\nC", text)
}

func TestExtractor_ODT_CorruptXML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "essay.odt")
	writeZip(t, path, map[string]string{
		"content.xml": `<office:document-content><text:p>unclosed`,
	})

	_, err := extract.NewExtractor().Extract(context.Background(), path)
	require.Error(t, err)
	assert.ErrorIs(t, err, driven.ErrCorruptDocument)
}

func TestExtractor_PDF_Corrupt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "essay.pdf")
	writeFile(t, path, "nowhere near a real pdf")

	_, err := extract.NewExtractor().Extract(context.Background(), path)
	require.Error(t, err)
	assert.ErrorIs(t, err, driven.ErrCorruptDocument)
}

func TestExtractor_UnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "slides.pptx")
	writeFile(t, path, "unused")

	_, err := extract.NewExtractor().Extract(context.Background(), path)
	require.Error(t, err)
	assert.ErrorIs(t, err, driven.ErrUnsupportedFormat)
	assert.Contains(t, err.Error(), "slides.pptx")
}

func TestExtractor_ExtensionCaseInsensitive(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ESSAY.TXT")
	writeFile(t, path, "shouted")

	text, err := extract.NewExtractor().Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "shouted", text)
}

func TestExtractor_MissingFile(t *testing.T) {
	dir := t.TempDir()

	_, err := extract.NewExtractor().Extract(context.Background(), filepath.Join(dir, "gone.txt"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, driven.ErrUnsupportedFormat)
}

func TestExtractor_ContextCancelled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "essay.txt")
	writeFile(t, path, "unread")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := extract.NewExtractor().Extract(ctx, path)
	require.ErrorIs(t, err, context.Canceled)
}
