// Package signal implements marker detection over tracked text: a catalog of
// bracketed 2-letter signal patterns, a TTL+frequency result cache, a per-path
// debounce registry, and the detection engine that composes them.
package signal

import (
	"fmt"
	"time"
)

// Origin tags where a pattern definition came from.
type Origin string

const (
	// OriginBuiltin marks patterns from the compiled-in catalog.
	OriginBuiltin Origin = "builtin"
	// OriginCustom marks patterns registered at runtime or loaded from a pattern pack.
	OriginCustom Origin = "custom"
)

// Priority bounds for patterns and signals.
const (
	MinPriority = 1
	MaxPriority = 10

	// DefaultPriority is assigned to marker codes absent from the catalog.
	DefaultPriority = 3
)

// Position locates a signal inside its source text.
type Position struct {
	Line   int `json:"line"`   // 1-based
	Column int `json:"column"` // 1-based, in bytes
}

// Signal is a structured event derived from a bracketed marker found in
// monitored text. Immutable after creation; Resolved may be flipped later by
// an external consumer, never by this package.
type Signal struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"` // 2-letter code, e.g. "bb"
	Priority  int               `json:"priority"`
	Source    string            `json:"source"` // path the content came from
	Timestamp time.Time         `json:"timestamp"`
	Position  Position          `json:"position"`
	RawText   string            `json:"raw_text"` // the matched marker, e.g. "[bb]"
	Context   string            `json:"context"`  // surrounding text window
	Resolved  bool              `json:"resolved"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// PatternDef is the user-facing shape for registering a custom pattern.
// All fields are validated at registration; invalid definitions are rejected,
// never silently corrected.
type PatternDef struct {
	Code     string `json:"code" yaml:"code"`         // 2-letter marker code
	Name     string `json:"name" yaml:"name"`         // human-readable name
	Regex    string `json:"regex" yaml:"regex"`       // optional; defaults to the literal marker
	Category string `json:"category" yaml:"category"` // e.g. "development", "qa"
	Priority int    `json:"priority" yaml:"priority"` // 1-10
	Disabled bool   `json:"disabled" yaml:"disabled"`
}

// ValidationError reports a rejected pattern definition.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid pattern definition: %s: %s", e.Field, e.Reason)
}

// ClampPriority forces a priority into [MinPriority, MaxPriority].
func ClampPriority(p int) int {
	if p < MinPriority {
		return MinPriority
	}
	if p > MaxPriority {
		return MaxPriority
	}
	return p
}
