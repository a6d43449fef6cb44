// internal/store/value.go
package store

import (
	"bytes"
	"encoding/json"
	"sort"
)

// decodeValue parses raw JSON into maps, slices and json.Number so integers
// survive a round trip untouched.
func decodeValue(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	return v
}

// toValue converts an arbitrary Go value to its generic JSON form.
func toValue(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return decodeValue(raw), nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return decodeValue(raw), nil
}

func getIn(v any, segs []string) (any, bool) {
	cur := v
	for _, s := range segs {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[s]
		if !ok {
			return nil, false
		}
	}
	return cur, cur != nil
}

// setIn returns v with x stored at segs, copying the maps along the path.
// A nil x deletes the leaf.
func setIn(v any, segs []string, x any) any {
	if len(segs) == 0 {
		return x
	}
	src, _ := v.(map[string]any)
	if src == nil && x == nil {
		return v
	}
	m := make(map[string]any, len(src)+1)
	for k, val := range src {
		m[k] = val
	}
	child := setIn(m[segs[0]], segs[1:], x)
	if child == nil {
		delete(m, segs[0])
	} else {
		m[segs[0]] = child
	}
	return m
}

func parseIndex(raw []byte) []string {
	var ids []string
	if len(raw) == 0 {
		return nil
	}
	_ = json.Unmarshal(raw, &ids)
	return ids
}

func marshalIndex(ids []string) []byte {
	if ids == nil {
		ids = []string{}
	}
	sort.Strings(ids)
	raw, _ := json.Marshal(ids)
	return raw
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k, v := range m {
		if v == nil {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
