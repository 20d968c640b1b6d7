package ast

import "reflect"

// Equal reports whether two nodes are structurally equal, ignoring
// source spans (spec §2 "Token" equality semantics extend to nodes:
// structural equality is about shape and values, not where in the source
// text a node came from). Implemented by comparing the debug-rendering
// maps with "span" keys stripped, which is simpler and less error-prone
// than a hand-written recursive comparator per node kind.
func Equal(a, b Node) bool {
	return reflect.DeepEqual(stripSpans(NodeToMap(a)), stripSpans(NodeToMap(b)))
}

func stripSpans(v interface{}) interface{} {
	switch x := v.(type) {
	case map[string]interface{}:
		result := make(map[string]interface{}, len(x))
		for k, val := range x {
			if k == "span" {
				continue
			}
			result[k] = stripSpans(val)
		}
		return result
	case []interface{}:
		result := make([]interface{}, len(x))
		for i, val := range x {
			result[i] = stripSpans(val)
		}
		return result
	default:
		return v
	}
}
