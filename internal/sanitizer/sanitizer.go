//-------------------------------------------------------------------------
//
// pgEdge Ticket Router
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package sanitizer implements the precheck gate every ticket passes
// before any model is called: a language check, a spam check and
// in-place masking of sensitive data. It is deterministic and has no
// side effects.
package sanitizer

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/pgEdge/pgedge-ticket-router/internal/keywords"
)

// Report is the outcome of RunPrecheck.
type Report struct {
	PassedLanguageCheck bool     `json:"passed_language_check"`
	IsSpam              bool     `json:"is_spam"`
	HasSensitiveData    bool     `json:"has_sensitive_data"`
	MaskedContent       string   `json:"masked_content"`
	RejectionReasons    []string `json:"rejection_reasons"`
	Passed              bool     `json:"passed"`
}

// Reason strings. Callers match on these prefixes.
const (
	ReasonSpam      = "Ticket identified as spam."
	ReasonSensitive = "Sensitive data detected and masked."
	reasonLanguage  = "Language is not supported"
)

// RejectionError is the terminal, user-facing failure of the precheck.
type RejectionError struct {
	Reasons []string
}

func (e *RejectionError) Error() string {
	return "ticket rejected: " + strings.Join(e.Reasons, " ")
}

// Config configures a Sanitizer.
type Config struct {
	// AllowedLanguages are ISO 639-1 codes; defaults to fr and en.
	AllowedLanguages []string

	// ExtraSpamKeywords are appended to the built-in list.
	ExtraSpamKeywords []string

	// Detector identifies the language; defaults to whatlanggo.
	Detector LanguageDetector
}

// Sanitizer runs the precheck. It is safe for concurrent use.
type Sanitizer struct {
	allowed      map[string]bool
	allowedNames string
	spam         []string
	detector     LanguageDetector
}

// New creates a Sanitizer.
func New(cfg Config) *Sanitizer {
	langs := cfg.AllowedLanguages
	if len(langs) == 0 {
		langs = []string{"fr", "en"}
	}

	s := &Sanitizer{
		allowed:  make(map[string]bool, len(langs)),
		detector: cfg.Detector,
	}
	names := make([]string, 0, len(langs))
	for _, l := range langs {
		l = strings.ToLower(l)
		s.allowed[l] = true
		names = append(names, languageName(l))
	}
	s.allowedNames = joinNames(names)

	if s.detector == nil {
		s.detector = WhatlangDetector{}
	}

	s.spam = append(s.spam, spamKeywords...)
	for _, k := range cfg.ExtraSpamKeywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			s.spam = append(s.spam, k)
		}
	}

	return s
}

// RunPrecheck evaluates text. Passed is true iff the language is accepted
// and the text is not spam; sensitive data never blocks, it is masked and
// noted.
func (s *Sanitizer) RunPrecheck(text string) Report {
	r := Report{
		PassedLanguageCheck: s.checkLanguage(text),
		IsSpam:              s.isSpam(text),
	}
	r.MaskedContent, r.HasSensitiveData = Mask(text)
	r.Passed = r.PassedLanguageCheck && !r.IsSpam

	if !r.PassedLanguageCheck {
		r.RejectionReasons = append(r.RejectionReasons,
			fmt.Sprintf("%s (only %s are accepted).", reasonLanguage, s.allowedNames))
	}
	if r.IsSpam {
		r.RejectionReasons = append(r.RejectionReasons, ReasonSpam)
	}
	if r.HasSensitiveData {
		r.RejectionReasons = append(r.RejectionReasons, ReasonSensitive)
	}

	return r
}

// Reject returns the RejectionError for a failed report, or nil.
func (r Report) Reject() error {
	if r.Passed {
		return nil
	}
	var reasons []string
	for _, reason := range r.RejectionReasons {
		if reason != ReasonSensitive {
			reasons = append(reasons, reason)
		}
	}
	return &RejectionError{Reasons: reasons}
}

// checkLanguage accepts the detector's verdict or, for short and
// ambiguous input, any allow-listed function word. A detector error
// leaves only the allow-list.
func (s *Sanitizer) checkLanguage(text string) bool {
	if lang, err := s.detector.Detect(text); err == nil && s.allowed[lang] {
		return true
	}
	return hasIndicator(text)
}

// hasIndicator reports whether any space-delimited token of text, once
// stripped of surrounding punctuation and folded, is an allow-listed word.
func hasIndicator(text string) bool {
	for _, field := range strings.Fields(text) {
		word := strings.TrimFunc(field, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if word != "" && languageIndicators[keywords.Fold(word)] {
			return true
		}
	}
	return false
}

func (s *Sanitizer) isSpam(text string) bool {
	lower := strings.ToLower(text)
	for _, k := range s.spam {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

var languageNames = map[string]string{
	"fr": "French",
	"en": "English",
	"de": "German",
	"es": "Spanish",
	"it": "Italian",
	"pt": "Portuguese",
	"nl": "Dutch",
}

func languageName(code string) string {
	if n, ok := languageNames[code]; ok {
		return n
	}
	return code
}

func joinNames(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	default:
		return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
	}
}

// spamKeywords are matched as lower-case substrings.
var spamKeywords = []string{
	// English
	"win money", "free gift", "click here", "subscribe now",
	"lottery", "congratulations", "urgent action required",
	"buy now", "limited time", "cash prize", "earn money",
	"work from home", "no cost", "risk free", "winner",
	"claim now", "exclusive deal", "investment", "crypto", "bitcoin",
	// French
	"gagner de l'argent", "cadeau gratuit", "cliquez ici", "abonnez-vous",
	"loterie", "félicitations", "action urgente", "offre exclusive",
	"investissement", "gagner gros", "promotion", "rabais",
}

// languageIndicators are common French and English function words,
// stored accent-folded.
var languageIndicators = map[string]bool{
	// French
	"ca": true, "pas": true, "le": true, "la": true, "les": true,
	"un": true, "une": true, "est": true, "sont": true, "fait": true,
	"marche": true, "probleme": true, "aide": true, "svp": true,
	"merci": true, "mon": true, "ma": true, "salut": true, "bonjour": true,
	// English
	"hi": true, "hello": true, "the": true, "is": true, "are": true,
	"not": true, "it": true, "works": true, "problem": true, "help": true,
	"please": true, "thanks": true, "my": true,
}
