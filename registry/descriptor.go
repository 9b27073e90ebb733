package registry

// Kind is the declared type tag for a tool parameter.
type Kind string

const (
	KindString     Kind = "string"
	KindInteger    Kind = "integer"
	KindBoolean    Kind = "boolean"
	KindStringList Kind = "list[str]"
)

// IsValid reports whether the kind is one of the supported parameter types.
func (k Kind) IsValid() bool {
	switch k {
	case KindString, KindInteger, KindBoolean, KindStringList:
		return true
	default:
		return false
	}
}

// Parameter describes one argument of a registered tool. Parameters are
// created at registration time and never mutated afterwards.
type Parameter struct {
	Name        string `json:"name"`
	Type        Kind   `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Default     any    `json:"default,omitempty"`
}

// Schema is the complete descriptor for one tool: its unique name, a
// human-readable description, the category it is discovered under, and the
// ordered parameter list a caller needs to construct a valid call.
type Schema struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Category    string      `json:"category"`
	Parameters  []Parameter `json:"parameters"`
}

// CategorySummary is one row of the discovery index returned by ListCategories.
type CategorySummary struct {
	Category    string `json:"category"`
	ToolCount   int    `json:"operationCount"`
	Description string `json:"description"`
}

// categoryDescriptions is the fixed set of categories tools may register under.
var categoryDescriptions = map[string]string{
	"cloudwatch":    "CloudWatch Logs tools for querying and analyzing AWS logs",
	"stepfunctions": "Step Functions tools for debugging state machine executions",
	"langsmith":     "LangSmith tools for tracing and debugging LLM applications",
	"jira":          "Jira tools for searching and viewing tickets",
}

// KnownCategory reports whether tools may register under the given category.
func KnownCategory(category string) bool {
	_, ok := categoryDescriptions[category]
	return ok
}
