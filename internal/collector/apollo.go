package collector

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// stateMarker is the inline-script assignment pcmap pages embed their
// normalized Apollo cache under.
const stateMarker = "window.__APOLLO_STATE__"

// listSummaryTag identifies refs pointing at ranked place summaries inside
// a ROOT_QUERY items array.
const listSummaryTag = "RestaurantListSummary"

// extractState pulls the __APOLLO_STATE__ JSON object out of a pcmap page.
// It scans forward from the marker, matching braces until the object
// closes, and parses that span. The state is a flat map of opaque ref keys
// to entity objects; everything beyond the handful of fields we read is
// left untyped. Returns false when the marker is missing, the braces never
// balance, or the span is not valid JSON — all expected conditions when
// Naver changes its markup.
func extractState(page string) (map[string]any, bool) {
	idx := strings.Index(page, stateMarker)
	if idx < 0 {
		return nil, false
	}
	rest := page[idx+len(stateMarker):]

	start := strings.IndexByte(rest, '{')
	if start < 0 {
		return nil, false
	}

	depth := 0
	for i := start; i < len(rest); i++ {
		switch rest[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				var state map[string]any
				if err := json.Unmarshal([]byte(rest[start:i+1]), &state); err != nil {
					return nil, false
				}
				return state, true
			}
		}
	}
	return nil, false
}

// rankedRefs returns the ordered ref list of the ranked place results under
// ROOT_QUERY, or nil when the page holds no such list (different listing
// type, or zero results). Empty refs are kept so the list length matches
// the reported total; they resolve to nothing and get skipped later.
func rankedRefs(state map[string]any) []string {
	root, _ := state["ROOT_QUERY"].(map[string]any)

	keys := make([]string, 0, len(root))
	for k := range root {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		node, ok := root[k].(map[string]any)
		if !ok {
			continue
		}
		items, ok := node["items"].([]any)
		if !ok || len(items) == 0 {
			continue
		}
		first, ok := items[0].(map[string]any)
		if !ok || !strings.Contains(asString(first["__ref"]), listSummaryTag) {
			continue
		}

		refs := make([]string, 0, len(items))
		for _, item := range items {
			if m, ok := item.(map[string]any); ok {
				refs = append(refs, asString(m["__ref"]))
			}
		}
		return refs
	}
	return nil
}

// asInt coerces an untrusted JSON value to an int, returning nil for
// anything that is not integer-shaped. Never fails.
func asInt(v any) *int {
	switch n := v.(type) {
	case float64:
		i := int(n)
		return &i
	case int:
		i := n
		return &i
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return nil
		}
		return &i
	default:
		return nil
	}
}

// asString stringifies JSON scalar values; non-scalars become "".
func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	default:
		return ""
	}
}
