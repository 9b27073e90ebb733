package langsmith

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
)

const maxListedKeys = 20

// runMemory keeps fetched runs in memory so large traces can be inspected
// field by field instead of being re-sent whole on every tool call.
type runMemory struct {
	mu   sync.Mutex
	runs map[string]storedRun
}

type storedRun struct {
	raw      []byte
	summary  map[string]any
	storedAt time.Time
}

func newRunMemory() *runMemory {
	return &runMemory{runs: map[string]storedRun{}}
}

func (m *runMemory) store(referenceID string, details any, summary map[string]any) error {
	raw, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to store run %s: %w", referenceID, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[referenceID] = storedRun{raw: raw, summary: summary, storedAt: time.Now().UTC()}
	return nil
}

func (m *runMemory) get(referenceID string) (storedRun, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[referenceID]
	return run, ok
}

func (m *runMemory) references() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	refs := make([]string, 0, len(m.runs))
	for ref := range m.runs {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}

// getField resolves a dot-notation path ("outputs.chat_history.0.content")
// inside a stored run. A miss reports the keys available at the parent path
// so the caller can correct the path without re-fetching the run.
func (m *runMemory) getField(referenceID, fieldPath string) (map[string]any, error) {
	stored, ok := m.get(referenceID)
	if !ok {
		return nil, fmt.Errorf("no stored run %q; fetch it with get_langsmith_run_details first (stored: %s)",
			referenceID, joinOrNone(m.references()))
	}

	value := gjson.GetBytes(stored.raw, fieldPath)
	if !value.Exists() {
		parent, keys := parentKeys(stored.raw, fieldPath)
		return nil, fmt.Errorf("field %q not found in run %s; keys under %q: %s; use dot notation like outputs.chat_history.0.content",
			fieldPath, referenceID, parent, joinOrNone(keys))
	}

	return map[string]any{
		"reference_id": referenceID,
		"field_path":   fieldPath,
		"value":        decodeField(value),
		"size_info":    fieldSizeInfo(value),
	}, nil
}

// searchKeyword walks every string value in a stored run and returns the
// paths whose text contains the query, case-insensitively.
func (m *runMemory) searchKeyword(referenceID, query string, maxResults int) (map[string]any, error) {
	stored, ok := m.get(referenceID)
	if !ok {
		return nil, fmt.Errorf("no stored run %q; fetch it with get_langsmith_run_details first (stored: %s)",
			referenceID, joinOrNone(m.references()))
	}

	needle := strings.ToLower(query)
	matches := []map[string]any{}
	walkStrings(gjson.ParseBytes(stored.raw), "", func(path, text string) bool {
		if !strings.Contains(strings.ToLower(text), needle) {
			return true
		}
		matches = append(matches, map[string]any{
			"field_path": path,
			"snippet":    matchSnippet(text, needle),
		})
		return len(matches) < maxResults
	})

	return map[string]any{
		"reference_id":  referenceID,
		"query":         query,
		"method_used":   "keyword",
		"total_matches": len(matches),
		"matches":       matches,
	}, nil
}

// walkStrings visits every string leaf depth-first. The visitor returns
// false to stop the walk.
func walkStrings(value gjson.Result, path string, visit func(path, text string) bool) bool {
	switch value.Type {
	case gjson.String:
		return visit(path, value.String())
	case gjson.JSON:
		keepGoing := true
		index := 0
		value.ForEach(func(key, child gjson.Result) bool {
			childPath := key.String()
			if !value.IsObject() {
				childPath = fmt.Sprintf("%d", index)
				index++
			}
			if path != "" {
				childPath = path + "." + childPath
			}
			keepGoing = walkStrings(child, childPath, visit)
			return keepGoing
		})
		return keepGoing
	default:
		return true
	}
}

func parentKeys(raw []byte, fieldPath string) (parent string, keys []string) {
	if idx := strings.LastIndex(fieldPath, "."); idx >= 0 {
		parent = fieldPath[:idx]
	}

	node := gjson.ParseBytes(raw)
	if parent != "" {
		node = node.Get(parent)
	}
	if !node.IsObject() {
		return parent, nil
	}
	node.ForEach(func(key, _ gjson.Result) bool {
		keys = append(keys, key.String())
		return len(keys) < maxListedKeys
	})
	sort.Strings(keys)
	return parent, keys
}

func fieldSizeInfo(value gjson.Result) map[string]any {
	switch {
	case value.Type == gjson.String:
		text := value.String()
		return map[string]any{
			"type":       "string",
			"length":     len(text),
			"word_count": len(strings.Fields(text)),
		}
	case value.IsArray():
		return map[string]any{
			"type":   "list",
			"length": len(value.Array()),
		}
	case value.IsObject():
		keys := []string{}
		value.ForEach(func(key, _ gjson.Result) bool {
			keys = append(keys, key.String())
			return len(keys) < maxListedKeys
		})
		sort.Strings(keys)
		return map[string]any{
			"type": "dict",
			"keys": keys,
		}
	case value.Type == gjson.Number:
		return map[string]any{"type": "number"}
	case value.Type == gjson.True, value.Type == gjson.False:
		return map[string]any{"type": "boolean"}
	default:
		return map[string]any{"type": "null"}
	}
}

func joinOrNone(values []string) string {
	if len(values) == 0 {
		return "none"
	}
	return strings.Join(values, ", ")
}
