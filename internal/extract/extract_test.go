package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const resumeText = "Jane Doe\nSenior Backend Engineer\n\nSkills: Go, PostgreSQL, Kubernetes, gRPC"

func TestText_WhenPlainText_ShouldNormalize(t *testing.T) {
	raw := "\xef\xbb\xbf" + strings.ReplaceAll(resumeText, "\n\n", "\r\n\r\n\r\n\r\n") + "   \n\n"

	doc, err := Text("resume.TXT", []byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "text/plain", doc.MimeType)
	assert.Equal(t, resumeText, doc.Text)
}

func TestText_WhenMarkdown_ShouldDetectMime(t *testing.T) {
	doc, err := Text("cv.md", []byte("# "+resumeText))
	require.NoError(t, err)
	assert.Equal(t, "text/markdown", doc.MimeType)
}

func TestText_WhenTooShort_ShouldReturnErrTooLittleText(t *testing.T) {
	_, err := Text("resume.txt", []byte("Jane Doe\n\n\n"))
	assert.ErrorIs(t, err, ErrTooLittleText)
}

func TestText_WhenUnsupportedType_ShouldFail(t *testing.T) {
	_, err := Text("resume.docx", []byte("PK\x03\x04"+resumeText))
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestText_WhenPDFExtensionWithoutMagic_ShouldBeUnreadable(t *testing.T) {
	_, err := Text("resume.pdf", []byte(resumeText))
	assert.ErrorIs(t, err, ErrUnreadable)
}

func TestText_WhenCorruptPDF_ShouldBeUnreadable(t *testing.T) {
	_, err := Text("resume.pdf", []byte("%PDF-1.4\ngarbage without xref"))
	assert.ErrorIs(t, err, ErrUnreadable)
}

func TestText_WhenInvalidUTF8_ShouldBeUnreadable(t *testing.T) {
	_, err := Text("resume.txt", []byte{0xff, 0xfe, 0xfd})
	assert.ErrorIs(t, err, ErrUnreadable)
}
