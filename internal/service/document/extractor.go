package document

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/zhouzirui/course-advisor/backend/internal/model/chat"
)

// MaxFileBytes caps how much of one upload is read.
const MaxFileBytes = 8 << 20

var (
	ErrUnsupported = errors.New("unsupported document type")
	ErrTooLarge    = errors.New("document exceeds size limit")
)

// Extractor pulls plain text out of an uploaded file.
type Extractor interface {
	Extract(name string, r io.Reader) (string, error)
}

// NewExtractor returns the extractor used for uploads: PDFs are read page by page, anything else
// goes through TextExtractor.
func NewExtractor() Extractor {
	return ByExtension{
		Handlers: map[string]Extractor{".pdf": PDFExtractor{}},
		Fallback: TextExtractor{},
	}
}

// ByExtension routes a file to the extractor registered for its lower-cased extension.
type ByExtension struct {
	Handlers map[string]Extractor
	Fallback Extractor
}

// Extract implements Extractor.
func (b ByExtension) Extract(name string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if handler, ok := b.Handlers[ext]; ok {
		return handler.Extract(name, r)
	}
	if b.Fallback == nil {
		return "", fmt.Errorf("%w: %s", ErrUnsupported, ext)
	}
	return b.Fallback.Extract(name, r)
}

// PDFExtractor extracts the text layer of a PDF. Each page is trimmed; pages without text are
// dropped and the rest are joined with blank lines.
type PDFExtractor struct{}

// Extract implements Extractor.
func (PDFExtractor) Extract(_ string, r io.Reader) (text string, err error) {
	data, err := readLimited(r)
	if err != nil {
		return "", err
	}

	// ledongthuc/pdf panics on some malformed object graphs
	defer func() {
		if rec := recover(); rec != nil {
			text = ""
			err = fmt.Errorf("malformed pdf: %v", rec)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	fonts := make(map[string]*pdf.Font)
	pages := make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		for _, name := range page.Fonts() {
			if _, ok := fonts[name]; !ok {
				font := page.Font(name)
				fonts[name] = &font
			}
		}
		pageText, err := page.GetPlainText(fonts)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		if pageText = strings.TrimSpace(pageText); pageText != "" {
			pages = append(pages, pageText)
		}
	}
	return strings.Join(pages, "\n\n"), nil
}

// TextExtractor accepts plain text and markdown files.
type TextExtractor struct{}

var textExtensions = map[string]struct{}{
	".txt":      {},
	".text":     {},
	".md":       {},
	".markdown": {},
}

// Extract implements Extractor.
func (TextExtractor) Extract(name string, r io.Reader) (string, error) {
	if _, ok := textExtensions[strings.ToLower(filepath.Ext(name))]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(name))
	}

	data, err := readLimited(r)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: not valid UTF-8 text", ErrUnsupported)
	}
	return strings.TrimSpace(string(data)), nil
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxFileBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxFileBytes {
		return nil, ErrTooLarge
	}
	return data, nil
}

// File is one upload handed to ExtractAll.
type File struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// ExtractAll extracts every file in order. A file that fails becomes a document whose text is
// "[Error reading file <name>: <err>]" so the model sees what is missing; files yielding no text
// are skipped.
func ExtractAll(ext Extractor, files []File) []chat.Document {
	docs := make([]chat.Document, 0, len(files))
	for _, f := range files {
		text, err := extractOne(ext, f)
		if err != nil {
			name := f.Name
			if name == "" {
				name = "uploaded"
			}
			docs = append(docs, chat.Document{Name: name, Text: fmt.Sprintf("[Error reading file %s: %v]", name, err)})
			continue
		}
		if text == "" {
			continue
		}
		docs = append(docs, chat.Document{Name: f.Name, Text: text})
	}
	return docs
}

func extractOne(ext Extractor, f File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()
	return ext.Extract(f.Name, rc)
}

// Join concatenates document texts with blank lines in between.
func Join(docs []chat.Document) string {
	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		if text := strings.TrimSpace(doc.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}
