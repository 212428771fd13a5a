//-------------------------------------------------------------------------
//
// pgEdge Ticket Router
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package keywords extracts search keywords from French and English
// support tickets without calling a model.
package keywords

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Tokenizer handles text tokenization for keyword extraction.
type Tokenizer struct {
	stopWords map[string]bool
	minLength int
}

// DefaultStopWords contains common French and English stop words, stored
// accent-folded.
var DefaultStopWords = toSet(
	// English
	"a", "an", "and", "are", "as", "at", "be", "by", "for", "from",
	"has", "he", "in", "is", "it", "its", "of", "on", "or", "that",
	"the", "to", "was", "were", "will", "with", "this", "but", "they", "have",
	"had", "what", "when", "where", "who", "which", "why", "how", "all", "each",
	"no", "not", "only", "so", "than", "too", "very", "can", "just", "should",
	"now", "i", "you", "we", "me", "my", "your", "our", "do", "does",
	"hi", "hello", "please", "thanks", "thank", "help", "there", "any", "am", "get",
	// French
	"le", "la", "les", "un", "une", "des", "du", "de", "et", "ou",
	"est", "sont", "ce", "ca", "cet", "cette", "ces", "je", "tu", "il",
	"elle", "nous", "vous", "ils", "elles", "mon", "ma", "mes", "ton", "ta",
	"son", "sa", "ses", "notre", "votre", "leur", "que", "qui", "quoi", "dans",
	"sur", "pour", "par", "avec", "sans", "pas", "ne", "plus", "au", "aux",
	"comment", "pourquoi", "quand", "bonjour", "salut", "merci", "svp", "aide", "ai", "suis",
	"mais", "donc", "car", "si", "on", "me", "moi", "te", "se", "en",
)

func toSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// NewTokenizer creates a new tokenizer with default settings.
func NewTokenizer() *Tokenizer {
	return &Tokenizer{
		stopWords: DefaultStopWords,
		minLength: 3,
	}
}

// NewTokenizerWithStopWords creates a tokenizer with custom stop words.
// Stop words are compared accent-folded.
func NewTokenizerWithStopWords(stopWords map[string]bool) *Tokenizer {
	return &Tokenizer{
		stopWords: stopWords,
		minLength: 3,
	}
}

// Tokenize splits text into lower-cased tokens. Bracketed markers such as
// [EMAIL] are skipped, as are stop words and tokens shorter than three
// characters.
func (t *Tokenizer) Tokenize(text string) []string {
	text = strings.ToLower(text)

	var tokens []string
	var current strings.Builder
	inMarker := false

	flush := func() {
		if current.Len() > 0 {
			token := current.String()
			if t.isValidToken(token) {
				tokens = append(tokens, token)
			}
			current.Reset()
		}
	}

	for _, r := range text {
		switch {
		case r == '[':
			flush()
			inMarker = true
		case r == ']':
			inMarker = false
		case inMarker:
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			current.WriteRune(r)
		default:
			flush()
		}
	}
	if !inMarker {
		flush()
	}

	return tokens
}

// isValidToken checks if a token should be included.
func (t *Tokenizer) isValidToken(token string) bool {
	if utf8.RuneCountInString(token) < t.minLength {
		return false
	}
	if isNumber(token) {
		return false
	}
	if t.stopWords != nil && t.stopWords[Fold(token)] {
		return false
	}
	return true
}

func isNumber(token string) bool {
	for _, r := range token {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// TokenFrequencies returns a map of token to frequency count.
func (t *Tokenizer) TokenFrequencies(text string) map[string]int {
	freqs := make(map[string]int)
	for _, token := range t.Tokenize(text) {
		freqs[token]++
	}
	return freqs
}
