// Package registry owns the mapping from tool names to their schemas,
// validators, and handlers, and answers the gateway's discovery and
// execution requests.
//
// The registry has a two-phase lifecycle: a single-threaded registration
// phase during process startup, then a sealed read-only phase for the rest
// of the process lifetime. Seal is the boundary: after it, Register fails
// and concurrent reads need no coordination because nothing mutates.
package registry

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
)

// Handler performs a tool's actual work. It receives only fully validated,
// typed arguments and returns a JSON-serializable result or a descriptive
// failure.
type Handler func(ctx context.Context, args Args) (any, error)

// entry binds one tool's schema, validation contract, and handler under the
// tool's unique name.
type entry struct {
	schema    Schema
	validator *Validator
	handler   Handler
}

// Registry is the central tool index.
type Registry struct {
	mu      sync.Mutex // guards Register/Seal during the startup phase only
	sealed  bool
	entries map[string]entry
}

// New creates an empty, unsealed registry.
func New() *Registry {
	return &Registry{
		entries: make(map[string]entry),
	}
}

// Register adds one tool. It fails with DuplicateToolError if the name is
// taken, InvalidSchemaError if the schema is structurally broken, and
// ErrSealed after Seal. Callers treat any failure as fatal: a malformed
// registry is a programming error, not a runtime condition.
func (r *Registry) Register(schema Schema, handler Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return ErrSealed
	}
	if handler == nil {
		return &InvalidSchemaError{Name: schema.Name, Reason: "handler cannot be nil"}
	}
	if err := checkSchema(schema); err != nil {
		return err
	}
	if _, exists := r.entries[schema.Name]; exists {
		return &DuplicateToolError{Name: schema.Name}
	}

	r.entries[schema.Name] = entry{
		schema:    schema,
		validator: NewValidator(schema),
		handler:   handler,
	}
	return nil
}

// Seal closes the registration phase. After Seal the registry is read-only
// and safe for concurrent use without locking.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

// Sealed reports whether registration is closed.
func (r *Registry) Sealed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sealed
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Names returns all registered tool names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ListCategories returns one summary per category that has at least one
// registered tool, ordered by category name. An empty registry yields an
// empty slice.
func (r *Registry) ListCategories() []CategorySummary {
	counts := make(map[string]int)
	for _, e := range r.entries {
		counts[e.schema.Category]++
	}

	summaries := make([]CategorySummary, 0, len(counts))
	for category, count := range counts {
		summaries = append(summaries, CategorySummary{
			Category:    category,
			ToolCount:   count,
			Description: categoryDescriptions[category],
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Category < summaries[j].Category
	})
	return summaries
}

// ListTools returns full-fidelity schemas, ordered by (category, name).
// With an empty category it returns every tool; with a category that has no
// registered tools it fails with UnknownCategoryError carrying the categories
// that do.
func (r *Registry) ListTools(category string) ([]Schema, error) {
	schemas := make([]Schema, 0, len(r.entries))
	for _, e := range r.entries {
		if category == "" || e.schema.Category == category {
			schemas = append(schemas, e.schema)
		}
	}
	if category != "" && len(schemas) == 0 {
		return nil, &UnknownCategoryError{
			Category:  category,
			Available: r.activeCategories(),
		}
	}
	sort.Slice(schemas, func(i, j int) bool {
		if schemas[i].Category != schemas[j].Category {
			return schemas[i].Category < schemas[j].Category
		}
		return schemas[i].Name < schemas[j].Name
	})
	return schemas, nil
}

// Execute runs one tool call: lookup, a single validation pass, then the
// handler. The handler is never invoked with unvalidated or partially typed
// arguments.
func (r *Registry) Execute(ctx context.Context, name string, raw map[string]any) (any, error) {
	e, exists := r.entries[name]
	if !exists {
		return nil, &UnknownToolError{Name: name, Suggestions: r.suggest(name)}
	}

	args, invalid := e.validator.Validate(raw)
	if invalid != nil {
		return nil, invalid
	}

	result, err := e.handler(ctx, args)
	if err != nil {
		return nil, &HandlerError{Tool: name, Cause: err}
	}
	return result, nil
}

func (r *Registry) activeCategories() []string {
	seen := make(map[string]struct{})
	for _, e := range r.entries {
		seen[e.schema.Category] = struct{}{}
	}
	categories := make([]string, 0, len(seen))
	for category := range seen {
		categories = append(categories, category)
	}
	slices.Sort(categories)
	return categories
}

// suggest returns registered names within a small edit distance of the
// requested one, or sharing an underscore-separated token with it. The
// gateway never silently substitutes a suggestion; they only make the error
// message actionable.
func (r *Registry) suggest(name string) []string {
	requestedTokens := tokenSet(name)
	var matches []string
	for candidate := range r.entries {
		if editDistance(name, candidate) <= 2 {
			matches = append(matches, candidate)
			continue
		}
		for token := range requestedTokens {
			if _, shared := tokenSet(candidate)[token]; shared {
				matches = append(matches, candidate)
				break
			}
		}
	}
	slices.Sort(matches)
	return matches
}

func tokenSet(name string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, token := range strings.Split(name, "_") {
		if token != "" {
			tokens[token] = struct{}{}
		}
	}
	return tokens
}

// editDistance computes the Levenshtein distance between two names.
func editDistance(a, b string) int {
	if a == b {
		return 0
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
