package collector

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractState_WellFormed(t *testing.T) {
	t.Parallel()

	page := `<html><head><script>var x = 1;
window.__APOLLO_STATE__ = {"ROOT_QUERY":{"a":1},"Entity:1":{"id":"1","name":"성수상점"}};
</script></head><body></body></html>`

	state, ok := extractState(page)
	require.True(t, ok)

	// Extraction must equal parsing the object directly.
	var want map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{"ROOT_QUERY":{"a":1},"Entity:1":{"id":"1","name":"성수상점"}}`), &want))
	assert.Equal(t, want, state)
}

func TestExtractState_NestedBraces(t *testing.T) {
	t.Parallel()

	page := `window.__APOLLO_STATE__={"a":{"b":{"c":"}{"}}};function noise(){return {};}`

	state, ok := extractState(page)
	require.True(t, ok)
	assert.Contains(t, state, "a")
}

func TestExtractState_NoMarker(t *testing.T) {
	t.Parallel()

	_, ok := extractState(`<html><body>no state here</body></html>`)
	assert.False(t, ok)
}

func TestExtractState_UnbalancedBraces(t *testing.T) {
	t.Parallel()

	_, ok := extractState(`window.__APOLLO_STATE__ = {"a":{"b":1}`)
	assert.False(t, ok)
}

func TestExtractState_InvalidJSON(t *testing.T) {
	t.Parallel()

	_, ok := extractState(`window.__APOLLO_STATE__ = {a:1}`)
	assert.False(t, ok)
}

func TestExtractState_NoObjectAfterMarker(t *testing.T) {
	t.Parallel()

	_, ok := extractState(`window.__APOLLO_STATE__ = null;`)
	assert.False(t, ok)
}

func TestRankedRefs_OrderedList(t *testing.T) {
	t.Parallel()

	state, ok := extractState(`window.__APOLLO_STATE__ = {
		"ROOT_QUERY": {
			"restaurants({\"query\":\"커피\"})": {
				"items": [
					{"__ref": "RestaurantListSummary:101"},
					{"__ref": "RestaurantListSummary:102"},
					{"__ref": "RestaurantListSummary:103"}
				]
			}
		}
	}`)
	require.True(t, ok)

	refs := rankedRefs(state)
	assert.Equal(t, []string{
		"RestaurantListSummary:101",
		"RestaurantListSummary:102",
		"RestaurantListSummary:103",
	}, refs)
}

func TestRankedRefs_NoMatchingList(t *testing.T) {
	t.Parallel()

	// Hotel-type results carry a different summary ref and must not match.
	state, ok := extractState(`window.__APOLLO_STATE__ = {
		"ROOT_QUERY": {
			"hotels": {"items": [{"__ref": "HotelListSummary:7"}]},
			"other": 3
		}
	}`)
	require.True(t, ok)
	assert.Nil(t, rankedRefs(state))
}

func TestRankedRefs_MissingRootQuery(t *testing.T) {
	t.Parallel()

	assert.Nil(t, rankedRefs(map[string]any{"Entity:1": map[string]any{}}))
}

func TestAsInt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   any
		want *int
	}{
		{"float", float64(42), intPtr(42)},
		{"numeric string", "37", intPtr(37)},
		{"padded string", " 8 ", intPtr(8)},
		{"garbage string", "many", nil},
		{"nil", nil, nil},
		{"bool", true, nil},
		{"object", map[string]any{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, asInt(tt.in))
		})
	}
}

func TestAsString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "abc", asString("abc"))
	assert.Equal(t, "1129849959", asString(float64(1129849959)))
	assert.Equal(t, "", asString(nil))
	assert.Equal(t, "", asString([]any{"x"}))
}

func intPtr(i int) *int { return &i }
