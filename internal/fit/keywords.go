package fit

import (
	"sort"
	"strings"
	"unicode"
)

// stopWords filters common words that add noise to keyword matching
var stopWords = map[string]bool{
	"and": true, "the": true, "for": true, "with": true, "you": true,
	"are": true, "have": true, "will": true, "this": true, "that": true,
	"from": true, "our": true, "your": true, "their": true, "they": true,
	"work": true, "team": true, "role": true, "job": true, "join": true,
	"about": true, "which": true, "what": true, "who": true, "how": true,
	"can": true, "not": true, "but": true, "all": true, "also": true,
	"more": true, "than": true, "into": true, "has": true, "its": true,
	"was": true, "were": true, "been": true, "each": true, "new": true,
	"use": true, "using": true, "used": true, "well": true, "high": true,
	"good": true, "able": true, "get": true, "set": true, "such": true,
	"experience": true, "years": true, "year": true, "strong": true,
	"working": true, "including": true, "skills": true, "knowledge": true,
	"ability": true, "must": true, "should": true, "would": true, "other": true,
	"company": true, "position": true, "candidate": true, "looking": true,
	"help": true, "like": true, "across": true, "within": true, "plus": true,
	"benefits": true, "salary": true, "apply": true, "opportunity": true,
}

// keywordCounts tokenizes text into lowercase keywords (3+ runes, no stop
// words) with their frequency. '+', '#' and '.' count as word characters so
// c++, c# and node.js survive.
func keywordCounts(text string) map[string]int {
	kw := make(map[string]int)
	var word strings.Builder
	flush := func() {
		w := strings.TrimRight(word.String(), ".")
		word.Reset()
		if len([]rune(w)) >= 3 && !stopWords[w] {
			kw[w]++
		}
	}
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '+' || r == '#' || r == '.' {
			word.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return kw
}

// topKeywords returns keywords ordered by frequency, then alphabetically
func topKeywords(counts map[string]int, exclude func(string) bool, limit int) []string {
	out := make([]string, 0, len(counts))
	for k := range counts {
		if exclude == nil || !exclude(k) {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if counts[out[i]] != counts[out[j]] {
			return counts[out[i]] > counts[out[j]]
		}
		return out[i] < out[j]
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// mentions reports whether a skill appears in lowercased text as a whole term
func mentions(textLower, skillLower string) bool {
	if skillLower == "" {
		return false
	}
	idx := 0
	for {
		i := strings.Index(textLower[idx:], skillLower)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(skillLower)
		if boundary(textLower, start-1) && boundary(textLower, end) {
			return true
		}
		idx = start + 1
	}
}

func boundary(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return true
	}
	c := rune(s[i])
	return !(unicode.IsLetter(c) || unicode.IsDigit(c) || c == '+' || c == '#')
}
