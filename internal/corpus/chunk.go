//-------------------------------------------------------------------------
//
// pgEdge Ticket Router
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package corpus

import (
	"strings"
	"unicode/utf8"
)

// SplitParagraphs splits text on blank lines. Consecutive short paragraphs
// are merged while they fit in maxLen runes; a paragraph longer than
// maxLen is cut at word boundaries.
func SplitParagraphs(text string, maxLen int) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var paragraphs []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	if maxLen <= 0 {
		return paragraphs
	}

	var chunks []string
	var current string
	flush := func() {
		if current != "" {
			chunks = append(chunks, current)
			current = ""
		}
	}

	for _, p := range paragraphs {
		if utf8.RuneCountInString(p) > maxLen {
			flush()
			chunks = append(chunks, splitWords(p, maxLen)...)
			continue
		}
		if current == "" {
			current = p
			continue
		}
		if utf8.RuneCountInString(current)+2+utf8.RuneCountInString(p) > maxLen {
			flush()
			current = p
			continue
		}
		current += "\n\n" + p
	}
	flush()

	return chunks
}

func splitWords(p string, maxLen int) []string {
	var out []string
	var b strings.Builder
	n := 0
	for _, w := range strings.Fields(p) {
		wl := utf8.RuneCountInString(w)
		if n > 0 && n+1+wl > maxLen {
			out = append(out, b.String())
			b.Reset()
			n = 0
		}
		if n > 0 {
			b.WriteByte(' ')
			n++
		}
		b.WriteString(w)
		n += wl
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}

// Truncate shortens s to at most maxLen runes, cutting back to the last
// space when one exists in the second half, and appends "...".
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	cut := string(runes[:maxLen])
	if idx := strings.LastIndex(cut, " "); idx > len(cut)/2 {
		cut = cut[:idx]
	}
	return strings.TrimSpace(cut) + "..."
}
