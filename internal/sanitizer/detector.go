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
	"errors"
	"strings"

	"github.com/abadojack/whatlanggo"
)

// ErrUndetermined is returned when no language can be identified.
var ErrUndetermined = errors.New("language could not be determined")

// LanguageDetector identifies the language of a text as an ISO 639-1 code.
type LanguageDetector interface {
	Detect(text string) (string, error)
}

// WhatlangDetector is the default trigram-based detector. Detections
// below the library's reliability threshold count as undetermined, which
// leaves short or mixed text to the function-word allow-list.
type WhatlangDetector struct {
	detect func(text string) whatlanggo.Info
}

// Detect implements LanguageDetector.
func (d WhatlangDetector) Detect(text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrUndetermined
	}
	detect := d.detect
	if detect == nil {
		detect = whatlanggo.Detect
	}
	info := detect(text)
	if info.Lang < 0 || !info.IsReliable() {
		return "", ErrUndetermined
	}
	code := info.Lang.Iso6391()
	if code == "" {
		return "", ErrUndetermined
	}
	return code, nil
}

// DetectorFunc adapts a function to LanguageDetector.
type DetectorFunc func(text string) (string, error)

// Detect implements LanguageDetector.
func (f DetectorFunc) Detect(text string) (string, error) {
	return f(text)
}
