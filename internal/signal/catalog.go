package signal

import (
	"regexp"
	"strings"
	"sync"

	"roboswarm/internal/logging"
)

// Pattern is a compiled, registered signal definition.
type Pattern struct {
	Code     string
	Name     string
	Regex    *regexp.Regexp
	Category string
	Priority int
	Enabled  bool
	Origin   Origin
}

// markerRegex matches any bracketed 2-letter lowercase code. It backs the
// catch-all scan that gives unknown codes DefaultPriority.
var markerRegex = regexp.MustCompile(`\[([a-z]{2})\]`)

// builtinDef is one row of the compiled-in catalog.
type builtinDef struct {
	code     string
	name     string
	category string
	priority int
}

// builtinCatalog is the ordered compiled-in signal set. Codes defined twice
// (da, dp) resolve last-wins: the later row replaces the earlier one at the
// earlier's position. That collision behavior is intentional and tested.
var builtinCatalog = []builtinDef{
	// development
	{"bb", "Blocked By", "development", 9},
	{"dp", "Development Progress", "development", 3},
	{"cr", "Code Review Needed", "development", 6},
	{"mg", "Merge Ready", "development", 5},
	{"hf", "Hotfix Required", "development", 10},
	// qa
	{"tp", "Tests Passing", "qa", 4},
	{"tf", "Tests Failing", "qa", 8},
	{"qa", "QA Review Requested", "qa", 6},
	{"rg", "Regression Detected", "qa", 9},
	// analysis
	{"da", "Done Assessment", "analysis", 4},
	{"pr", "PRP Ready", "analysis", 5},
	{"sc", "Scope Change", "analysis", 7},
	{"rq", "Requirements Question", "analysis", 6},
	// infrastructure
	{"ci", "CI Broken", "infrastructure", 9},
	{"dg", "Deploy Gate", "infrastructure", 7},
	{"ir", "Incident Response", "infrastructure", 10},
	{"mo", "Monitoring Alert", "infrastructure", 8},
	// design
	{"ux", "UX Review Needed", "design", 5},
	{"da", "Design Assets Delivered", "design", 3},
	{"dp", "Design Prototype Ready", "design", 2},
	{"ac", "Accessibility Concern", "design", 6},
}

// Catalog holds the immutable builtin pattern list plus an explicitly-owned
// collection of validated custom patterns. Builtins are loaded once at
// construction; customs are appended via AddPattern and removed only by
// explicit Unregister.
type Catalog struct {
	mu       sync.RWMutex
	builtins []*Pattern          // ordered, fixed after construction
	customs  []*Pattern          // ordered by registration
	byCode   map[string]*Pattern // code -> winning pattern (last registration wins)
}

// NewCatalog builds a catalog from the compiled-in definitions.
func NewCatalog() *Catalog {
	c := &Catalog{
		byCode: make(map[string]*Pattern),
	}
	for _, def := range builtinCatalog {
		p := &Pattern{
			Code:     def.code,
			Name:     def.name,
			Regex:    regexp.MustCompile(`\[` + def.code + `\]`),
			Category: def.category,
			Priority: ClampPriority(def.priority),
			Enabled:  true,
			Origin:   OriginBuiltin,
		}
		if prev, ok := c.byCode[def.code]; ok {
			// Collision: later registration replaces the earlier definition
			// in place, keeping the earlier's position in the scan order.
			*prev = *p
			c.byCode[def.code] = prev
			continue
		}
		c.builtins = append(c.builtins, p)
		c.byCode[def.code] = p
	}
	return c
}

// AddPattern validates and registers a custom pattern. Returns a
// *ValidationError if the definition is malformed; nothing is registered
// partially.
func (c *Catalog) AddPattern(def PatternDef) error {
	if strings.TrimSpace(def.Name) == "" {
		return &ValidationError{Field: "name", Reason: "required"}
	}
	if strings.TrimSpace(def.Category) == "" {
		return &ValidationError{Field: "category", Reason: "required"}
	}
	if def.Priority < MinPriority || def.Priority > MaxPriority {
		return &ValidationError{Field: "priority", Reason: "must be between 1 and 10"}
	}
	code := strings.TrimSpace(def.Code)
	if len(code) != 2 || strings.ToLower(code) != code {
		return &ValidationError{Field: "code", Reason: "must be a 2-letter lowercase code"}
	}

	expr := def.Regex
	if expr == "" {
		expr = `\[` + regexp.QuoteMeta(code) + `\]`
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return &ValidationError{Field: "regex", Reason: err.Error()}
	}

	p := &Pattern{
		Code:     code,
		Name:     def.Name,
		Regex:    re,
		Category: def.Category,
		Priority: def.Priority,
		Enabled:  !def.Disabled,
		Origin:   OriginCustom,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.customs = append(c.customs, p)
	c.byCode[code] = p // custom registration also wins the priority table
	logging.Detect("catalog: registered custom pattern %s (%s, priority=%d)", code, def.Name, p.Priority)
	return nil
}

// Unregister removes a custom pattern by code. Builtins cannot be removed.
// Returns true if a pattern was removed.
func (c *Catalog) Unregister(code string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, p := range c.customs {
		if p.Code == code {
			c.customs = append(c.customs[:i], c.customs[i+1:]...)
			// Restore the builtin as the table winner if one exists.
			delete(c.byCode, code)
			for _, b := range c.builtins {
				if b.Code == code {
					c.byCode[code] = b
					break
				}
			}
			return true
		}
	}
	return false
}

// Enabled returns the enabled patterns in scan order: builtins first, then
// customs by registration order.
func (c *Catalog) Enabled() []*Pattern {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Pattern, 0, len(c.builtins)+len(c.customs))
	for _, p := range c.builtins {
		if p.Enabled {
			out = append(out, p)
		}
	}
	for _, p := range c.customs {
		if p.Enabled {
			out = append(out, p)
		}
	}
	return out
}

// PriorityFor resolves a marker code to its catalog priority, or
// DefaultPriority for unknown codes.
func (c *Catalog) PriorityFor(code string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if p, ok := c.byCode[code]; ok {
		return p.Priority
	}
	return DefaultPriority
}

// Lookup returns the winning pattern for a code, if any.
func (c *Catalog) Lookup(code string) (*Pattern, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.byCode[code]
	return p, ok
}

// Codes returns every registered code (builtin and custom), in scan order,
// without duplicates.
func (c *Catalog) Codes() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	seen := make(map[string]bool)
	var out []string
	for _, p := range c.builtins {
		if !seen[p.Code] {
			seen[p.Code] = true
			out = append(out, p.Code)
		}
	}
	for _, p := range c.customs {
		if !seen[p.Code] {
			seen[p.Code] = true
			out = append(out, p.Code)
		}
	}
	return out
}
