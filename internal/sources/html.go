package sources

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// MaxDescriptionBytes caps stored posting descriptions
const MaxDescriptionBytes = 4000

const blockElements = "br, p, div, li, ul, ol, h1, h2, h3, h4, h5, h6, tr, section, article"

// StripHTML turns an HTML fragment into plain text, one line per block element
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return collapseSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return collapseSpace(s)
	}
	doc.Find("script, style").Remove()
	doc.Find(blockElements).Each(func(_ int, sel *goquery.Selection) {
		sel.AfterHtml("\n")
	})
	return collapseSpace(doc.Text())
}

// collapseSpace squeezes runs of spaces within lines and drops blank lines
func collapseSpace(s string) string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// TruncateUTF8 cuts s to at most n bytes without splitting a rune
func TruncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func cleanDescription(s string) string {
	return TruncateUTF8(StripHTML(s), MaxDescriptionBytes)
}
