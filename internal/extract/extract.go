// Package extract recovers a JSON payload from a free-form model reply.
//
// Replies may wrap the payload in a ```json fence, surround it with prose, or
// carry spurious escaping and raw newlines. Extraction tries an ordered list
// of strategies, repairs the first candidate found and parses it.
package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

var (
	ErrNoPayload        = errors.New("no payload found")
	ErrMalformedPayload = errors.New("malformed payload")
)

// ExtractionError carries the raw reply and the repaired candidate so a
// failed parse can be diagnosed.
type ExtractionError struct {
	Kind      error
	Raw       string
	Candidate string
	Err       error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction failed: %v: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("extraction failed: %v", e.Kind)
}

func (e *ExtractionError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// IsExtractionError reports whether err wraps an ExtractionError.
func IsExtractionError(err error) bool {
	var ee *ExtractionError
	return errors.As(err, &ee)
}

// Strategy locates a candidate payload in raw text.
type Strategy interface {
	Name() string
	Find(raw string) (string, bool)
}

type fencedStrategy struct{}

var fenceOpen = regexp.MustCompile("```json\\b[ \\t]*\\r?\\n?")

const fence = "```"

func (fencedStrategy) Name() string { return "fenced" }

// Find returns the body of the first ```json block. A payload may itself
// carry fences inside its strings, so each later fence is tried as the close
// and the first body that parses after repair wins; otherwise the nearest
// fence closes the block.
func (fencedStrategy) Find(raw string) (string, bool) {
	loc := fenceOpen.FindStringIndex(raw)
	if loc == nil {
		return "", false
	}
	body := raw[loc[1]:]

	first := -1
	for off := 0; ; {
		i := strings.Index(body[off:], fence)
		if i == -1 {
			break
		}
		end := off + i
		if first == -1 {
			first = end
		}
		if json.Valid([]byte(Repair(body[:end]))) {
			return body[:end], true
		}
		off = end + len(fence)
	}
	if first == -1 {
		return "", false
	}
	return body[:first], true
}

type braceStrategy struct{}

func (braceStrategy) Name() string { return "brace" }

func (braceStrategy) Find(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end <= start {
		return "", false
	}
	return raw[start : end+1], true
}

// FencedStrategy matches a ```json fenced block.
func FencedStrategy() Strategy { return fencedStrategy{} }

// BraceStrategy matches from the first '{' to the last '}'.
func BraceStrategy() Strategy { return braceStrategy{} }

// Extractor runs strategies in order; the first match wins.
type Extractor struct {
	strategies []Strategy
	logger     *slog.Logger
}

type Option func(*Extractor)

// WithStrategies replaces the default strategy list.
func WithStrategies(strategies ...Strategy) Option {
	return func(e *Extractor) {
		e.strategies = strategies
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// New returns an extractor using the fenced then brace strategies.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		strategies: []Strategy{fencedStrategy{}, braceStrategy{}},
		logger:     slog.Default().With("component", "extractor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultExtractor = New()

// Extract parses the payload of raw with the default extractor.
func Extract(raw string) (any, error) {
	return defaultExtractor.Extract(raw)
}

// Decode extracts the payload of raw into v with the default extractor.
func Decode(raw string, v any) error {
	return defaultExtractor.Decode(raw, v)
}

// Extract returns the parsed payload as generic JSON values.
func (e *Extractor) Extract(raw string) (any, error) {
	var out any
	if err := e.Decode(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Decode finds, repairs and unmarshals the payload of raw into v.
func (e *Extractor) Decode(raw string, v any) error {
	candidate, strategy, ok := e.find(raw)
	if !ok {
		e.logger.Debug("no payload found in reply",
			"reply_length", len(raw))
		return &ExtractionError{Kind: ErrNoPayload, Raw: raw}
	}

	repaired := Repair(candidate)
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		e.logger.Warn("payload failed to parse",
			"strategy", strategy,
			"candidate_length", len(repaired),
			"error", err)
		return &ExtractionError{
			Kind:      ErrMalformedPayload,
			Raw:       raw,
			Candidate: repaired,
			Err:       err,
		}
	}

	e.logger.Debug("payload extracted",
		"strategy", strategy,
		"candidate_length", len(repaired))
	return nil
}

func (e *Extractor) find(raw string) (string, string, bool) {
	for _, s := range e.strategies {
		if candidate, ok := s.Find(raw); ok {
			return candidate, s.Name(), true
		}
	}
	return "", "", false
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// Repair applies the cleanup passes in order: control whitespace becomes a
// space, whitespace runs collapse, and backslashes that do not start a valid
// JSON escape are dropped.
func Repair(candidate string) string {
	s := strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", "\t", " ").Replace(candidate)
	s = whitespaceRun.ReplaceAllString(s, " ")
	return stripInvalidEscapes(s)
}

func isEscapeTarget(c byte) bool {
	switch c {
	case '"', '\\', '/', 'b', 'f', 'n', 'r', 't', 'u':
		return true
	}
	return false
}

func stripInvalidEscapes(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' {
			b.WriteByte(s[i])
			continue
		}
		if i+1 < len(s) && isEscapeTarget(s[i+1]) {
			// keep the pair so an escaped backslash is not re-read
			b.WriteByte(s[i])
			b.WriteByte(s[i+1])
			i++
		}
	}
	return b.String()
}
