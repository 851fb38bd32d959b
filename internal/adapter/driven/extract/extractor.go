// Package extract converts downloaded submission documents to plain text
// for scoring. Format support is extension-driven: plain text and markdown
// are read as-is, HTML is stripped and unescaped, docx and odt are unpacked
// from their zip containers, and PDFs go through ledongthuc/pdf.
package extract

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/microcosm-cc/bluemonday"

	"github.com/gradedesk/gradedesk/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.TextExtractor = (*Extractor)(nil)

// blockBreaks matches tags whose end implies a line break, so stripped HTML
// keeps its paragraph structure instead of running words together.
var blockBreaks = regexp.MustCompile(`(?i)</(?:p|div|li|h[1-6]|tr|blockquote)>|<br\s*/?>`)

// Extractor converts documents to plain text.
type Extractor struct {
	stripTags *bluemonday.Policy
}

// NewExtractor creates a text extractor.
func NewExtractor() *Extractor {
	return &Extractor{stripTags: bluemonday.StrictPolicy()}
}

// Extract reads the document at path and returns its plain-text content.
// Unsupported extensions return ErrUnsupportedFormat; unreadable container
// or markup structure returns ErrCorruptDocument.
func (e *Extractor) Extract(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		return e.plainText(path)
	case ".html", ".htm":
		return e.htmlText(path)
	case ".docx":
		return e.docxText(path)
	case ".odt":
		return e.odtText(path)
	case ".pdf":
		return e.pdfText(path)
	default:
		return "", fmt.Errorf("%q: %w", filepath.Base(path), driven.ErrUnsupportedFormat)
	}
}

func (e *Extractor) plainText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %q: %w", filepath.Base(path), err)
	}
	return string(data), nil
}

func (e *Extractor) htmlText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %q: %w", filepath.Base(path), err)
	}
	src := blockBreaks.ReplaceAllString(string(data), "\n")
	stripped := e.stripTags.Sanitize(src)
	return strings.TrimSpace(html.UnescapeString(stripped)), nil
}

func (e *Extractor) docxText(path string) (string, error) {
	doc, err := readZipEntry(path, "word/document.xml")
	if err != nil {
		return "", err
	}
	text, err := wordMLText(doc)
	if err != nil {
		return "", fmt.Errorf("parse %q: %v: %w", filepath.Base(path), err, driven.ErrCorruptDocument)
	}
	return text, nil
}

func (e *Extractor) odtText(path string) (string, error) {
	doc, err := readZipEntry(path, "content.xml")
	if err != nil {
		return "", err
	}
	text, err := odfText(doc)
	if err != nil {
		return "", fmt.Errorf("parse %q: %v: %w", filepath.Base(path), err, driven.ErrCorruptDocument)
	}
	return text, nil
}

// pdfText extracts the concatenated plain text of every page. The pdf
// package panics on some malformed cross-reference tables and font
// descriptors, so the recover funnels those into ErrCorruptDocument the
// same as ordinary parse errors.
func (e *Extractor) pdfText(path string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("parse %q: %v: %w", filepath.Base(path), r, driven.ErrCorruptDocument)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %q: %v: %w", filepath.Base(path), err, driven.ErrCorruptDocument)
	}
	defer f.Close()

	content, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("parse %q: %v: %w", filepath.Base(path), err, driven.ErrCorruptDocument)
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return "", fmt.Errorf("parse %q: %v: %w", filepath.Base(path), err, driven.ErrCorruptDocument)
	}
	return strings.TrimSpace(string(data)), nil
}

// readZipEntry returns the named file from a zip container. Both failure
// modes, an unreadable archive and a missing entry, mean the document is
// not what its extension claims.
func readZipEntry(path, name string) ([]byte, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open %q: %v: %w", filepath.Base(path), err, driven.ErrCorruptDocument)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %q in %q: %v: %w", name, filepath.Base(path), err, driven.ErrCorruptDocument)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("read %q in %q: %v: %w", name, filepath.Base(path), err, driven.ErrCorruptDocument)
		}
		return data, nil
	}
	return nil, fmt.Errorf("%q has no %q entry: %w", filepath.Base(path), name, driven.ErrCorruptDocument)
}

// wordMLText walks WordprocessingML, keeping character data inside w:t
// runs, turning w:tab and w:br into whitespace, and ending each w:p with a
// newline. Table cells contain their own paragraphs, so rows fall out with
// line structure intact.
func wordMLText(doc []byte) (string, error) {
	dec := xml.NewDecoder(strings.NewReader(string(doc)))
	var b strings.Builder
	inRun := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inRun = true
			case "tab":
				b.WriteByte('\t')
			case "br":
				b.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inRun = false
			case "p":
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inRun {
				b.Write(t)
			}
		}
	}
	return strings.TrimSpace(b.String()), nil
}

// odfText walks OpenDocument content, keeping character data inside text:p
// and text:h blocks. text:s, text:tab, and text:line-break expand to the
// whitespace they stand for.
func odfText(doc []byte) (string, error) {
	dec := xml.NewDecoder(strings.NewReader(string(doc)))
	var b strings.Builder
	depth := 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p", "h":
				depth++
			case "s":
				if depth > 0 {
					b.WriteByte(' ')
				}
			case "tab":
				if depth > 0 {
					b.WriteByte('\t')
				}
			case "line-break":
				if depth > 0 {
					b.WriteByte('\n')
				}
			}
		case xml.EndElement:
			if t.Name.Local == "p" || t.Name.Local == "h" {
				if depth > 0 {
					depth--
					if depth == 0 {
						b.WriteByte('\n')
					}
				}
			}
		case xml.CharData:
			if depth > 0 {
				b.Write(t)
			}
		}
	}
	return strings.TrimSpace(b.String()), nil
}
