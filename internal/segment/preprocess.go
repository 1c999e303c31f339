package segment

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	copyrightRe  = regexp.MustCompile(`©.*?\n`)
	newlineRe    = regexp.MustCompile(`\n`)
	spacesRe     = regexp.MustCompile(`\s+`)
	urlRe        = regexp.MustCompile(`https?://\S+|www\.\S+`)
	emailRe      = regexp.MustCompile(`\S*@\S*\s?`)
	htmlTagRe    = regexp.MustCompile(`<[^>]+>`)
	punctRe      = regexp.MustCompile(`[^\w\s.?!]`)
	sentenceEnds = regexp.MustCompile(`([.?!])\s+`)
)

// Preprocess normalizes raw page text before sentence splitting and
// tokenization: strips copyright lines, URLs, emails and HTML tags, removes
// combining accents, drops punctuation other than sentence enders, collapses
// whitespace and lowercases. Token counts are computed on the normalized
// form, so counting happens after this step, never before.
func Preprocess(text string) string {
	text = copyrightRe.ReplaceAllString(text, "")
	text = newlineRe.ReplaceAllString(text, " ")
	text = spacesRe.ReplaceAllString(text, " ")
	text = urlRe.ReplaceAllString(text, "")
	text = emailRe.ReplaceAllString(text, "")
	text = htmlTagRe.ReplaceAllString(text, "")
	text = stripAccents(text)
	text = punctRe.ReplaceAllString(text, "")
	text = spacesRe.ReplaceAllString(text, " ")
	return strings.ToLower(strings.TrimSpace(text))
}

// stripAccents decomposes to NFD and removes combining marks, so "café"
// becomes "cafe".
func stripAccents(text string) string {
	decomposed := norm.NFD.String(text)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SplitSentences breaks normalized text on terminal punctuation followed by
// whitespace. The terminator stays attached to its sentence.
func SplitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	marked := sentenceEnds.ReplaceAllString(text, "$1\x00")
	parts := strings.Split(marked, "\x00")
	sentences := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			sentences = append(sentences, part)
		}
	}
	return sentences
}
