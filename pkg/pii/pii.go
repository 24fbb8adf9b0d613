// Package pii replaces personally identifiable information with typed,
// numbered placeholders and restores it afterwards.
//
// A placeholder has the form [TYPE_n], where n counts occurrences of TYPE
// within a single Redact call, starting at 1. The mapping returned by Redact
// is the only way back: placeholders are never reused across calls.
//
// Known limitation: Reidentify assumes original values never contain
// [TYPE_n]-shaped text themselves. When one does, a second Reidentify over
// the output expands that text again, so the operation is not idempotent in
// that case.
package pii

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
)

// Built-in entity classes
const (
	TypeEmail = "EMAIL"
	TypePhone = "PHONE"
	TypeCard  = "CARD"
)

// Span is one detected entity, as byte offsets into the scanned text.
type Span struct {
	Start int
	End   int
	Type  string
}

// Recognizer is a pluggable entity detector, typically an NER model.
// Spans it returns take precedence over the regex classes when they start
// at the same offset.
type Recognizer interface {
	Recognize(text string) ([]Span, error)
}

// RecognizerFunc adapts a function to the Recognizer interface
type RecognizerFunc func(text string) ([]Span, error)

// Recognize calls f(text)
func (f RecognizerFunc) Recognize(text string) ([]Span, error) {
	return f(text)
}

type pattern struct {
	re      *regexp.Regexp
	piiType string
}

// The card pattern is listed before phone so that a card number, which the
// phone pattern also partially matches, wins as the longer span.
var defaultPatterns = []pattern{
	{re: regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`), piiType: TypeEmail},
	{re: regexp.MustCompile(`\b(?:\d[ -]*?){13,16}\b`), piiType: TypeCard},
	{re: regexp.MustCompile(`(?:(?:\+?\d{1,3}[ -]?)?(?:\(\d{2,4}\)[ -]?)?\d{2,4}[ -]?\d{2,4}[ -]?\d{3,4})`), piiType: TypePhone},
}

// Redactor detects PII with the built-in patterns plus an optional recognizer
type Redactor struct {
	patterns   []pattern
	recognizer Recognizer
	logger     *slog.Logger
}

// Option configures a Redactor
type Option func(*Redactor)

// WithRecognizer adds an entity recognizer on top of the regex classes
func WithRecognizer(r Recognizer) Option {
	return func(rd *Redactor) {
		rd.recognizer = r
	}
}

// WithLogger sets the logger used to report recognizer failures
func WithLogger(logger *slog.Logger) Option {
	return func(rd *Redactor) {
		rd.logger = logger
	}
}

// New creates a Redactor
func New(opts ...Option) *Redactor {
	r := &Redactor{
		patterns: defaultPatterns,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Redact replaces every detected entity in text with a placeholder and
// returns the redacted text with its placeholder to original mapping.
// It never fails: if the recognizer errors, only the regex classes apply.
func (r *Redactor) Redact(text string) (string, map[string]string) {
	mapping := map[string]string{}
	if text == "" {
		return "", mapping
	}

	spans := r.detect(text)
	if len(spans) == 0 {
		return text, mapping
	}

	counters := map[string]int{}
	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, s := range spans {
		counters[s.Type]++
		placeholder := fmt.Sprintf("[%s_%d]", s.Type, counters[s.Type])
		mapping[placeholder] = text[s.Start:s.End]

		b.WriteString(text[last:s.Start])
		b.WriteString(placeholder)
		last = s.End
	}
	b.WriteString(text[last:])

	return b.String(), mapping
}

// detect collects candidate spans from every detector and returns a
// non-overlapping subset ordered by position. Candidates are ranked by start
// offset, then length, then detector priority (recognizer first).
func (r *Redactor) detect(text string) []Span {
	type candidate struct {
		Span
		priority int
	}

	var candidates []candidate
	if r.recognizer != nil {
		found, err := r.recognizer.Recognize(text)
		if err != nil {
			r.logger.Warn("entity recognizer failed, using regex classes only", "error", err)
		}
		for _, s := range found {
			if s.Start < 0 || s.End > len(text) || s.Start >= s.End {
				continue
			}
			tag := NormalizeType(s.Type)
			if tag == "" {
				continue
			}
			candidates = append(candidates, candidate{Span{s.Start, s.End, tag}, 0})
		}
	}

	for i, p := range r.patterns {
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			if loc[0] == loc[1] {
				continue
			}
			candidates = append(candidates, candidate{Span{loc[0], loc[1], p.piiType}, i + 1})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if la, lb := a.End-a.Start, b.End-b.Start; la != lb {
			return la > lb
		}
		return a.priority < b.priority
	})

	spans := make([]Span, 0, len(candidates))
	end := 0
	for _, c := range candidates {
		if c.Start < end {
			continue
		}
		spans = append(spans, c.Span)
		end = c.End
	}
	return spans
}

// NormalizeType turns a recognizer label into a placeholder tag: upper case,
// with every character outside [A-Z0-9] replaced by an underscore.
func NormalizeType(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return ""
	}
	var b strings.Builder
	for _, c := range strings.ToUpper(label) {
		if (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			b.WriteRune(c)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

// Reidentify restores original values. Every placeholder key found in text is
// replaced literally in a single left-to-right pass; placeholders missing
// from the mapping are left as they are.
func Reidentify(text string, mapping map[string]string) string {
	if len(mapping) == 0 || text == "" {
		return text
	}

	keys := make([]string, 0, len(mapping))
	for k := range mapping {
		if k != "" {
			keys = append(keys, k)
		}
	}
	// Longest first keeps the replacer deterministic for keys sharing a prefix
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	pairs := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		pairs = append(pairs, k, mapping[k])
	}
	return strings.NewReplacer(pairs...).Replace(text)
}
