package extract

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestFindRecordArrayPrefersContainerKeys(t *testing.T) {
	// "aaa" sorts before "news", but container keys are checked first
	payload := []byte(`{
		"aaa": {"zz": [{"title": "wrong"}]},
		"news": [{"title": "right", "id": "1"}]
	}`)

	records, ok := FromJSON(payload)
	require.True(t, ok)
	require.Equal(t, "right", records[0]["title"])
}

func TestFindRecordArrayDeterministic(t *testing.T) {
	payload := []byte(`{
		"b": {"x": [{"name": "beta"}]},
		"a": {"x": [{"name": "alpha"}]}
	}`)

	first, ok := FromJSON(payload)
	require.True(t, ok)
	require.Equal(t, "alpha", first[0]["name"])

	second, _ := FromJSON(payload)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatal(diff)
	}
}

func TestRecordsFromArray(t *testing.T) {
	_, ok := recordsFromArray(nil)
	require.False(t, ok)

	_, ok = recordsFromArray([]any{map[string]any{"unrelated": 1}})
	require.False(t, ok)

	records, ok := recordsFromArray([]any{
		map[string]any{"title": "a"},
		"stray string",
		map[string]any{"title": "b"},
	})
	require.True(t, ok)
	require.Len(t, records, 2)
}

func TestLooksLikeDetail(t *testing.T) {
	require.True(t, looksLikeDetail(map[string]any{"id": "1", "title": "t", "publishedAt": "x"}))
	require.False(t, looksLikeDetail(map[string]any{"id": "1", "title": "t"}))
	require.False(t, looksLikeDetail(map[string]any{"title": "t", "description": "d"}))
}

func TestFindDetailRecordNestedNews(t *testing.T) {
	payload := map[string]any{
		"pageProps": map[string]any{
			"news": map[string]any{"id": "8", "title": "t", "description": "d"},
		},
	}

	record, ok := findDetailRecord(payload)
	require.True(t, ok)
	require.Equal(t, "8", record["id"])
}
