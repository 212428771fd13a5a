//-------------------------------------------------------------------------
//
// pgEdge Ticket Router
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package keywords

import "sort"

// Extract returns up to n distinct keywords from text, most frequent
// first; ties keep the order of first appearance.
func (t *Tokenizer) Extract(text string, n int) []string {
	tokens := t.Tokenize(text)
	if len(tokens) == 0 || n <= 0 {
		return nil
	}

	freqs := make(map[string]int, len(tokens))
	var order []string
	for _, tok := range tokens {
		if freqs[tok] == 0 {
			order = append(order, tok)
		}
		freqs[tok]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return freqs[order[i]] > freqs[order[j]]
	})

	if len(order) > n {
		order = order[:n]
	}
	return order
}

// Extract uses the default tokenizer.
func Extract(text string, n int) []string {
	return NewTokenizer().Extract(text, n)
}
