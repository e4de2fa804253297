package extract

import (
	"encoding/json"
	"sort"
)

// Record is one loosely-typed recovered record. No fixed schema exists
// beyond "looks like a domain entity", see the policy tables below.
type Record = map[string]any

// ContainerKeys is the prioritized list of property names under which the
// portal has been observed to nest its record arrays. Checked in order at
// every object before generic recursion.
var ContainerKeys = []string{
	"news",
	"announcements",
	"data",
	"items",
	"list",
	"content",
	"notifications",
	"posts",
	"feed",
	"results",
}

// EntityFields is the set of property names whose presence marks an object
// as a domain record.
var EntityFields = []string{
	"title",
	"name",
	"content",
	"publishedAt",
	"menuName",
	"createdAt",
	"updatedAt",
	"id",
}

// DetailRequiredFields must all resolve for an object to count as a
// single-record detail view: "id", "title" and one of DetailMarkerFields.
var DetailMarkerFields = []string{"publishedAt", "description", "menuName"}

func looksLikeEntity(v any) bool {
	obj, ok := v.(map[string]any)
	if !ok {
		return false
	}
	for _, field := range EntityFields {
		if _, present := obj[field]; present {
			return true
		}
	}
	return false
}

// recordsFromArray accepts an array as a record set iff it is non-empty
// and its first element is entity-shaped. Non-object elements are dropped.
func recordsFromArray(arr []any) ([]Record, bool) {
	if len(arr) == 0 || !looksLikeEntity(arr[0]) {
		return nil, false
	}
	records := make([]Record, 0, len(arr))
	for _, item := range arr {
		if obj, ok := item.(map[string]any); ok {
			records = append(records, obj)
		}
	}
	if len(records) == 0 {
		return nil, false
	}
	return records, true
}

func sortedKeys(obj map[string]any) []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// findRecordArray searches arbitrary parsed JSON for the first array of
// entity-shaped records. Container keys are tried in priority order at
// each object; remaining recursion is key-sorted so the search result is
// deterministic for a given input.
func findRecordArray(v any) ([]Record, bool) {
	switch val := v.(type) {
	case []any:
		if records, ok := recordsFromArray(val); ok {
			return records, true
		}
		for _, item := range val {
			if records, ok := findRecordArray(item); ok {
				return records, true
			}
		}
	case map[string]any:
		for _, key := range ContainerKeys {
			child, present := val[key]
			if !present {
				continue
			}
			if arr, ok := child.([]any); ok {
				if records, ok := recordsFromArray(arr); ok {
					return records, true
				}
			}
			if records, ok := findRecordArray(child); ok {
				return records, true
			}
		}
		for _, key := range sortedKeys(val) {
			if records, ok := findRecordArray(val[key]); ok {
				return records, true
			}
		}
	}
	return nil, false
}

// FromJSON applies the entity-shape search to a raw JSON payload.
// Procedure results arrive as JSON rather than rendered HTML, but the
// record shapes inside drift just the same.
func FromJSON(raw []byte) ([]Record, bool) {
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, false
	}
	return findRecordArray(parsed)
}

func looksLikeDetail(obj map[string]any) bool {
	if _, ok := obj["id"]; !ok {
		return false
	}
	if _, ok := obj["title"]; !ok {
		return false
	}
	for _, field := range DetailMarkerFields {
		if _, ok := obj[field]; ok {
			return true
		}
	}
	return false
}

// findDetailRecord searches parsed JSON for a single detail-shaped object,
// or an object carrying one under a "news" sub-property.
func findDetailRecord(v any) (Record, bool) {
	switch val := v.(type) {
	case []any:
		for _, item := range val {
			if record, ok := findDetailRecord(item); ok {
				return record, true
			}
		}
	case map[string]any:
		if looksLikeDetail(val) {
			return val, true
		}
		if nested, ok := val["news"].(map[string]any); ok && looksLikeDetail(nested) {
			return nested, true
		}
		for _, key := range sortedKeys(val) {
			if record, ok := findDetailRecord(val[key]); ok {
				return record, true
			}
		}
	}
	return nil, false
}
