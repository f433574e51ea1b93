package models

import (
	"bytes"
	"encoding/json"
	"maps"
	"slices"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Variables is an insertion-ordered bag of named values. Keys are unique and
// a later Set or Merge overwrites an earlier value in place.
type Variables struct {
	values *orderedmap.OrderedMap[string, any]
}

func NewVariables() *Variables {
	return &Variables{values: orderedmap.New[string, any]()}
}

// VariablesFrom builds Variables from a plain map. Map iteration has no order,
// so keys are inserted sorted.
func VariablesFrom(values map[string]any) *Variables {
	v := NewVariables()
	for _, key := range slices.Sorted(maps.Keys(values)) {
		v.Set(key, values[key])
	}

	return v
}

func (v *Variables) init() {
	if v.values == nil {
		v.values = orderedmap.New[string, any]()
	}
}

func (v *Variables) Get(key string) (any, bool) {
	if v == nil || v.values == nil {
		return nil, false
	}

	return v.values.Get(key)
}

func (v *Variables) Has(key string) bool {
	_, ok := v.Get(key)

	return ok
}

func (v *Variables) Set(key string, value any) {
	v.init()
	v.values.Set(key, value)
}

func (v *Variables) Delete(key string) {
	if v == nil || v.values == nil {
		return
	}

	v.values.Delete(key)
}

func (v *Variables) Len() int {
	if v == nil || v.values == nil {
		return 0
	}

	return v.values.Len()
}

// Keys returns the keys in insertion order.
func (v *Variables) Keys() []string {
	keys := make([]string, 0, v.Len())
	if v.Len() == 0 {
		return keys
	}

	for pair := v.values.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}

	return keys
}

// Merge copies every entry of other into v, last write wins.
func (v *Variables) Merge(other *Variables) {
	if other.Len() == 0 {
		return
	}

	v.init()

	for pair := other.values.Oldest(); pair != nil; pair = pair.Next() {
		v.values.Set(pair.Key, cloneValue(pair.Value))
	}
}

// Clone returns a deep copy; nested maps and slices are copied too.
func (v *Variables) Clone() *Variables {
	clone := NewVariables()
	clone.Merge(v)

	return clone
}

// ToMap returns a plain map, used as the data root for evaluators.
func (v *Variables) ToMap() map[string]any {
	out := make(map[string]any, v.Len())
	if v.Len() == 0 {
		return out
	}

	for pair := v.values.Oldest(); pair != nil; pair = pair.Next() {
		out[pair.Key] = pair.Value
	}

	return out
}

func (v *Variables) MarshalJSON() ([]byte, error) {
	if v.Len() == 0 {
		return []byte("{}"), nil
	}

	return v.values.MarshalJSON()
}

func (v *Variables) UnmarshalJSON(data []byte) error {
	v.values = orderedmap.New[string, any]()
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	return v.values.UnmarshalJSON(data)
}

// cloneValue copies the container types produced by JSON decoding.
func cloneValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for k, item := range typed {
			out[k] = cloneValue(item)
		}

		return out
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = cloneValue(item)
		}

		return out
	case *Variables:
		return typed.Clone()
	case json.RawMessage:
		return slices.Clone(typed)
	default:
		return value
	}
}
