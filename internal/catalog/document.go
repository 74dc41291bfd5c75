package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ParseMapping validates an import document. The root must be a JSON object
// whose values are all arrays of strings; anything else (array, null,
// scalar, nested objects, non-string members) rejects the whole document.
func ParseMapping(data []byte) (map[string][]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var root any
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after document", ErrInvalidImport)
	}

	obj, ok := root.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: root must be an object, got %s", ErrInvalidImport, describe(root))
	}

	out := make(map[string][]string, len(obj))
	for key, value := range obj {
		arr, ok := value.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: %q must be an array, got %s", ErrInvalidImport, key, describe(value))
		}
		list := make([]string, 0, len(arr))
		for i, item := range arr {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %q[%d] must be a string, got %s", ErrInvalidImport, key, i, describe(item))
			}
			list = append(list, s)
		}
		out[key] = list
	}
	return out, nil
}

func describe(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// normalizeTags trims, drops empties, removes case-insensitive duplicates
// (first spelling wins) and sorts.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || indexFold(out, tag) >= 0 {
			continue
		}
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

func indexFold(list []string, s string) int {
	for i, v := range list {
		if strings.EqualFold(v, s) {
			return i
		}
	}
	return -1
}

func dedupeSorted(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
