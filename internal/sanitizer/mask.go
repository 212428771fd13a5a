//-------------------------------------------------------------------------
//
// pgEdge Ticket Router
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package sanitizer

import (
	"regexp"
	"strings"
	"unicode"
)

// Placeholders written in place of sensitive spans.
const (
	PlaceholderSecret = "[REDACTED]"
	PlaceholderEmail  = "[EMAIL]"
	PlaceholderCard   = "[CARD]"
	PlaceholderPhone  = "[PHONE]"
)

var placeholders = map[string]bool{
	PlaceholderSecret: true,
	PlaceholderEmail:  true,
	PlaceholderCard:   true,
	PlaceholderPhone:  true,
}

var (
	// A label, an explicit separator, then the value. The label and
	// separator are kept.
	secretPattern = regexp.MustCompile(
		`(?i)\b(password|passwd|pwd|passcode|mot de passe|mdp|code pin|pin)(\s*[:=]\s*)([^\s,;]+)`)

	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

	// 13 to 19 digits, optionally separated by single spaces or dashes.
	cardPattern = regexp.MustCompile(`\b\d(?:[ \-]?\d){12,18}\b`)

	// 9 to 15 digits with optional single separators and leading +.
	phonePattern = regexp.MustCompile(`(?:\+|\b)\d(?:[ .\-]?\d){8,14}\b`)
)

// Mask replaces sensitive spans with placeholders and reports whether any
// were found. Masking is a fixed point: Mask(Mask(s)) == Mask(s) and the
// second pass reports nothing.
func Mask(text string) (string, bool) {
	found := false

	text = secretPattern.ReplaceAllStringFunc(text, func(m string) string {
		sub := secretPattern.FindStringSubmatch(m)
		if placeholders[strings.TrimRight(sub[3], ".!?)")] {
			return m
		}
		found = true
		return sub[1] + sub[2] + PlaceholderSecret
	})

	replace := func(re *regexp.Regexp, placeholder string, accept func(string) bool) {
		text = re.ReplaceAllStringFunc(text, func(m string) string {
			if accept != nil && !accept(m) {
				return m
			}
			found = true
			return placeholder
		})
	}

	replace(emailPattern, PlaceholderEmail, nil)
	replace(cardPattern, PlaceholderCard, nil)
	replace(phonePattern, PlaceholderPhone, func(m string) bool {
		n := countDigits(m)
		return n >= 9 && n <= 15
	})

	return text, found
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			n++
		}
	}
	return n
}
