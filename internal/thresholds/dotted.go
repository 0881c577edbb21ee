package thresholds

import "strings"

// deepCopyMap makes a recursive copy of a YAML-decoded document so
// migration never mutates the caller's map.
func deepCopyMap(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return deepCopyMap(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = deepCopyValue(e)
		}
		return out
	default:
		return v
	}
}

// popDotted removes and returns the value at a dotted path (e.g.
// "a.b.c"), pruning now-empty intermediate maps.
func popDotted(doc map[string]interface{}, path string) (interface{}, bool) {
	parts := strings.Split(path, ".")
	return popParts(doc, parts)
}

func popParts(m map[string]interface{}, parts []string) (interface{}, bool) {
	if len(parts) == 1 {
		v, ok := m[parts[0]]
		if ok {
			delete(m, parts[0])
		}
		return v, ok
	}

	child, ok := m[parts[0]].(map[string]interface{})
	if !ok {
		return nil, false
	}
	v, found := popParts(child, parts[1:])
	if len(child) == 0 {
		delete(m, parts[0])
	}
	return v, found
}

// setDotted writes v at a dotted path, creating intermediate maps as
// needed.
func setDotted(doc map[string]interface{}, path string, v interface{}) {
	parts := strings.Split(path, ".")
	cur := doc
	for i, p := range parts {
		if i == len(parts)-1 {
			cur[p] = v
			return
		}
		next, ok := cur[p].(map[string]interface{})
		if !ok {
			next = make(map[string]interface{})
			cur[p] = next
		}
		cur = next
	}
}
