package llm

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// StripCodeFences removes markdown ```json ... ``` wrappers
func StripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		if idx := strings.Index(text, "\n"); idx != -1 {
			text = text[idx+1:]
		}
		if idx := strings.LastIndex(text, "```"); idx != -1 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	return text
}

// DecodeJSON parses a model answer into v. Fences are stripped and, if the
// model wrapped the object in prose, the outermost {...} block is used.
func DecodeJSON(text string, v any) error {
	text = StripCodeFences(text)
	if err := json.Unmarshal([]byte(text), v); err == nil {
		return nil
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return fmt.Errorf("no JSON object in model output: %s", truncate(text, 200))
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), v); err != nil {
		return fmt.Errorf("parsing model JSON: %w (raw: %s)", err, truncate(text, 200))
	}
	return nil
}

// truncate cuts s to at most n bytes without splitting a rune
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
