package extract

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"
)

// MinTextLength is the shortest extraction accepted as a real résumé
const MinTextLength = 50

var (
	ErrUnsupportedType = errors.New("unsupported file type: upload a PDF, .txt or .md file")
	ErrTooLittleText   = errors.New("very little text was extracted; the PDF may be image-based (scanned)")
	ErrUnreadable      = errors.New("could not extract text from this file; it may be corrupted")
)

// Document is the extracted text and detected type of an upload
type Document struct {
	Text     string
	MimeType string
}

// Text pulls plain text out of an uploaded résumé. PDFs are recognized by
// their magic bytes; text and markdown by extension and valid UTF-8.
func Text(fileName string, data []byte) (*Document, error) {
	var (
		doc *Document
		err error
	)

	ext := strings.ToLower(filepath.Ext(fileName))
	switch {
	case bytes.HasPrefix(data, []byte("%PDF")):
		doc, err = pdfText(data)
	case ext == ".pdf":
		return nil, ErrUnreadable
	case ext == ".txt" || ext == ".md" || ext == ".markdown":
		if !utf8.Valid(data) {
			return nil, ErrUnreadable
		}
		mime := "text/plain"
		if ext != ".txt" {
			mime = "text/markdown"
		}
		doc = &Document{Text: string(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))), MimeType: mime}
	default:
		return nil, ErrUnsupportedType
	}
	if err != nil {
		return nil, err
	}

	doc.Text = normalize(doc.Text)
	if utf8.RuneCountInString(doc.Text) < MinTextLength {
		return nil, ErrTooLittleText
	}
	return doc, nil
}

func pdfText(data []byte) (*Document, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		log.Warn().Err(err).Msg("Failed to open PDF")
		return nil, ErrUnreadable
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			log.Warn().Int("page", i).Err(err).Msg("Failed to extract text from PDF page")
			continue
		}

		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(text)
	}
	return &Document{Text: sb.String(), MimeType: "application/pdf"}, nil
}

// normalize trims trailing space on each line and collapses runs of blank lines
func normalize(s string) string {
	s = strings.ToValidUTF8(strings.ReplaceAll(s, "\r\n", "\n"), "")
	s = strings.ReplaceAll(s, "\x00", "")

	var out []string
	blank := 0
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
