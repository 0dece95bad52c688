package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
)

// volatileFields differ between two independent backends for the same record.
var volatileFields = map[string]struct{}{
	"_id":          {},
	"id":           {},
	"timestamp":    {},
	"createdAt":    {},
	"updatedAt":    {},
	"archivedAt":   {},
	"submittedAt":  {},
	"actedAt":      {},
	"dueDate":      {},
	"approvalDate": {},
	"resolvedAt":   {},
	"requestId":    {},
}

// bodiesEqual compares two response bodies. Only the data member of an
// envelope is compared, volatile fields are dropped and arrays are compared
// as multisets.
func bodiesEqual(a, b []byte) bool {
	if bytes.Equal(bytes.TrimSpace(a), bytes.TrimSpace(b)) {
		return true
	}

	var aj, bj interface{}
	if err := json.Unmarshal(a, &aj); err != nil {
		return false
	}
	if err := json.Unmarshal(b, &bj); err != nil {
		return false
	}
	return reflect.DeepEqual(normalize(payload(aj)), normalize(payload(bj)))
}

func payload(v interface{}) interface{} {
	if m, ok := v.(map[string]interface{}); ok {
		if data, ok := m["data"]; ok {
			return data
		}
	}
	return v
}

func normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, child := range val {
			if _, skip := volatileFields[k]; skip {
				continue
			}
			out[k] = normalize(child)
		}
		return out
	case []interface{}:
		items := make([]interface{}, len(val))
		keys := make([]string, len(val))
		for i, child := range val {
			items[i] = normalize(child)
			raw, _ := json.Marshal(items[i])
			keys[i] = string(raw)
		}
		sort.Sort(byKey{items: items, keys: keys})
		return items
	case float64:
		if val == float64(int64(val)) {
			return int64(val)
		}
		return val
	case nil:
		return nil
	default:
		return fmt.Sprint(val)
	}
}

type byKey struct {
	items []interface{}
	keys  []string
}

func (s byKey) Len() int           { return len(s.items) }
func (s byKey) Less(i, j int) bool { return s.keys[i] < s.keys[j] }
func (s byKey) Swap(i, j int) {
	s.items[i], s.items[j] = s.items[j], s.items[i]
	s.keys[i], s.keys[j] = s.keys[j], s.keys[i]
}
