// Package docproc implements the document processing collaborator for
// .docx templates. The parsed snapshot it produces is treated as opaque by
// the orchestration core and only interpreted here.
package docproc

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"os"
	"strings"

	"github.com/docfill/backend/internal/models"
)

const documentEntry = "word/document.xml"

// Paragraph is one block of template text in document order.
type Paragraph struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// DocumentContent is the parsed snapshot of a template document.
type DocumentContent struct {
	Paragraphs []Paragraph `json:"paragraphs"`
}

// Processor parses, previews, and composes .docx documents.
type Processor struct{}

// NewProcessor creates a Processor.
func NewProcessor() *Processor {
	return &Processor{}
}

// ParseDocument reads a .docx file and extracts its paragraph text in
// order. It fails if the container is unreadable or holds no text.
func (p *Processor) ParseDocument(path string) (any, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening document container: %w", err)
	}
	defer zr.Close()

	var docXML []byte
	for _, f := range zr.File {
		if f.Name == documentEntry {
			rc, err := f.Open()
			if err != nil {
				return nil, fmt.Errorf("opening %s: %w", documentEntry, err)
			}
			docXML, err = io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", documentEntry, err)
			}
			break
		}
	}
	if docXML == nil {
		return nil, fmt.Errorf("not a valid document: missing %s", documentEntry)
	}

	paragraphs, err := extractParagraphs(docXML)
	if err != nil {
		return nil, err
	}
	if len(paragraphs) == 0 {
		return nil, fmt.Errorf("document contains no readable text")
	}
	return &DocumentContent{Paragraphs: paragraphs}, nil
}

// extractParagraphs walks the WordprocessingML token stream collecting the
// visible text of each w:p block.
func extractParagraphs(docXML []byte) ([]Paragraph, error) {
	dec := xml.NewDecoder(bytes.NewReader(docXML))

	var paragraphs []Paragraph
	var buf strings.Builder
	depth := 0 // nesting of w:p elements; tables nest paragraphs

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decoding document xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				if depth == 0 {
					buf.Reset()
				}
				depth++
			case "tab":
				if depth > 0 {
					buf.WriteByte(' ')
				}
			case "br":
				if depth > 0 {
					buf.WriteByte(' ')
				}
			}
		case xml.CharData:
			if depth > 0 {
				buf.Write(t)
			}
		case xml.EndElement:
			if t.Name.Local == "p" {
				depth--
				if depth == 0 {
					text := strings.TrimSpace(buf.String())
					if text != "" {
						paragraphs = append(paragraphs, Paragraph{
							Index: len(paragraphs),
							Text:  text,
						})
					}
				}
			}
		}
	}
	return paragraphs, nil
}

// RenderPreview returns an HTML rendering of the document with filled
// values substituted. Pending placeholders are marked, and the placeholder
// at highlight (when non-nil) gets the current-placeholder class.
func (p *Processor) RenderPreview(content any, placeholders []models.Placeholder, filled map[string]string, highlight *int) string {
	doc, ok := content.(*DocumentContent)
	if !ok || doc == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString(`<div class="document-preview">` + "\n")
	for _, par := range doc.Paragraphs {
		text := html.EscapeString(par.Text)
		for i, ph := range placeholders {
			if ph.Location != par.Index {
				continue
			}
			token := html.EscapeString(ph.Original)
			var repl string
			if val, ok := filled[ph.Key]; ok {
				repl = `<span class="filled-value">` + html.EscapeString(val) + `</span>`
			} else if highlight != nil && *highlight == i {
				repl = `<span class="placeholder current-placeholder">` + html.EscapeString(ph.Name) + `</span>`
			} else {
				repl = `<span class="placeholder">` + html.EscapeString(ph.Name) + `</span>`
			}
			text = strings.Replace(text, token, repl, 1)
		}
		b.WriteString("<p>" + text + "</p>\n")
	}
	b.WriteString(`</div>`)
	return b.String()
}

// ComposeFinalDocument writes a copy of the template with every filled
// placeholder's verbatim token replaced by its value. A partial output
// file is removed on failure.
//
// Replacement happens in word/document.xml as a text substitution, which
// requires each token to live inside a single run; templates authored with
// plain bracket tokens satisfy that.
func (p *Processor) ComposeFinalDocument(templatePath, outputPath string, placeholders []models.Placeholder, filled map[string]string) error {
	zr, err := zip.OpenReader(templatePath)
	if err != nil {
		return fmt.Errorf("opening template: %w", err)
	}
	defer zr.Close()

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}

	if err := p.composeInto(out, &zr.Reader, placeholders, filled); err != nil {
		out.Close()
		os.Remove(outputPath)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(outputPath)
		return fmt.Errorf("finalizing output file: %w", err)
	}
	return nil
}

func (p *Processor) composeInto(w io.Writer, zr *zip.Reader, placeholders []models.Placeholder, filled map[string]string) error {
	zw := zip.NewWriter(w)

	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("opening entry %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return fmt.Errorf("reading entry %s: %w", f.Name, err)
		}

		if f.Name == documentEntry {
			data = substituteValues(data, placeholders, filled)
		}

		ew, err := zw.Create(f.Name)
		if err != nil {
			return fmt.Errorf("writing entry %s: %w", f.Name, err)
		}
		if _, err := ew.Write(data); err != nil {
			return fmt.Errorf("writing entry %s: %w", f.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("closing output container: %w", err)
	}
	return nil
}

// substituteValues replaces each placeholder token with its XML-escaped
// value. Tokens are matched both raw and XML-escaped, since Word escapes
// special characters inside run text.
func substituteValues(docXML []byte, placeholders []models.Placeholder, filled map[string]string) []byte {
	text := string(docXML)
	for _, ph := range placeholders {
		val, ok := filled[ph.Key]
		if !ok {
			continue
		}
		escaped := xmlEscape(val)
		text = strings.ReplaceAll(text, ph.Original, escaped)
		if escapedToken := xmlEscape(ph.Original); escapedToken != ph.Original {
			text = strings.ReplaceAll(text, escapedToken, escaped)
		}
	}
	return []byte(text)
}

func xmlEscape(s string) string {
	var b bytes.Buffer
	xml.EscapeText(&b, []byte(s))
	return b.String()
}
