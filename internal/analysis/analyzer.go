// Package analysis provides text tokenisation for the matching engine.
// An Analyzer turns raw field text into a finite sequence of tokens, each
// carrying its term, ordinal position, and byte offsets into the original
// text. The matcher depends only on this contract, not on any particular
// tokenisation algorithm.
package analysis

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Token is a single normalised term with its position and byte offsets in
// the original text.
type Token struct {
	Term     string
	Position int
	Start    int
	End      int
}

// Analyzer tokenises raw text.
type Analyzer interface {
	Analyze(text string) []Token
	Name() string
}

// ForName returns the analyzer registered under name, defaulting to the
// standard analyzer for unknown names.
func ForName(name string) Analyzer {
	switch name {
	case "whitespace":
		return Whitespace{}
	default:
		return Standard{}
	}
}

// Whitespace splits on whitespace and performs no normalisation. Every
// non-blank run of characters becomes a token, so positions and offsets map
// one-to-one onto the source text.
type Whitespace struct{}

func (Whitespace) Name() string { return "whitespace" }

func (Whitespace) Analyze(text string) []Token {
	tokens := make([]Token, 0, 8)
	pos := 0
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				tokens = append(tokens, Token{
					Term:     text[start:i],
					Position: pos,
					Start:    start,
					End:      i,
				})
				pos++
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		tokens = append(tokens, Token{
			Term:     text[start:],
			Position: pos,
			Start:    start,
			End:      len(text),
		})
	}
	return tokens
}

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "he": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {}, "this": {}, "but": {}, "they": {},
	"have": {}, "had": {}, "what": {}, "when": {}, "where": {},
	"who": {}, "which": {}, "their": {}, "if": {}, "each": {},
	"do": {}, "not": {}, "no": {}, "so": {}, "can": {},
}

// Standard lower-cases input, splits on non-alphanumeric boundaries, removes
// stop-words, and applies a simple suffix-based stemmer. Positions are
// assigned after stop-word removal; offsets always span the original word.
type Standard struct{}

func (Standard) Name() string { return "standard" }

func (Standard) Analyze(text string) []Token {
	tokens := make([]Token, 0, 8)
	pos := 0
	start := -1
	emit := func(end int) {
		word := strings.ToLower(text[start:end])
		if len(word) < 2 {
			return
		}
		if _, isStop := stopWords[word]; isStop {
			return
		}
		stemmed := stem(word)
		if stemmed == "" {
			return
		}
		tokens = append(tokens, Token{
			Term:     stemmed,
			Position: pos,
			Start:    start,
			End:      end,
		})
		pos++
	}
	for i, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			emit(i)
			start = -1
		}
	}
	if start >= 0 {
		emit(len(text))
	}
	return tokens
}

// NormalizeTerm runs a single word through the standard analyzer's
// normalisation so that query terms and indexed terms agree.
func NormalizeTerm(word string) string {
	t := Standard{}.Analyze(word)
	if len(t) == 0 {
		return ""
	}
	return t[0].Term
}

// stem applies a simple suffix-stripping stemmer to the given word.
func stem(word string) string {
	suffixes := []struct {
		suffix      string
		replacement string
		minLen      int
	}{
		{"ational", "ate", 2},
		{"tional", "tion", 2},
		{"encies", "ence", 2},
		{"ances", "ance", 2},
		{"ments", "ment", 2},
		{"izing", "ize", 2},
		{"ating", "ate", 2},
		{"iness", "y", 2},
		{"ously", "ous", 2},
		{"ively", "ive", 2},
		{"eness", "ene", 2},
		{"tion", "t", 3},
		{"sion", "s", 3},
		{"ying", "y", 2},
		{"ling", "l", 3},
		{"ies", "y", 2},
		{"ing", "", 3},
		{"ers", "er", 2},
		{"est", "", 3},
		{"ful", "", 3},
		{"ous", "", 3},
		{"ess", "", 3},
		{"ble", "", 3},
		{"ed", "", 3},
		{"er", "", 3},
		{"ly", "", 3},
		{"es", "", 3},
		{"ss", "ss", 2},
		{"s", "", 3},
	}
	for _, rule := range suffixes {
		if strings.HasSuffix(word, rule.suffix) {
			newWord := word[:len(word)-len(rule.suffix)] + rule.replacement
			if utf8.RuneCountInString(newWord) >= rule.minLen {
				return newWord
			}
		}
	}
	return word
}
