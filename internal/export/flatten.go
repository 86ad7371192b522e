package export

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Flatten turns a decoded JSON document into dotted paths: {"a":{"b":[1]}} -> "a.b[0]": 1.
// Keys are returned in a stable order: object keys sorted, array items by index.
func Flatten(v any) ([]string, map[string]any) {
	out := map[string]any{}
	var keys []string
	var walk func(prefix string, v any)
	walk = func(prefix string, v any) {
		switch t := v.(type) {
		case map[string]any:
			if len(t) == 0 && prefix != "" {
				keys = append(keys, prefix)
				out[prefix] = ""
				return
			}
			names := make([]string, 0, len(t))
			for k := range t {
				names = append(names, k)
			}
			sort.Strings(names)
			for _, k := range names {
				p := k
				if prefix != "" {
					p = prefix + "." + k
				}
				walk(p, t[k])
			}
		case []any:
			if len(t) == 0 {
				keys = append(keys, prefix)
				out[prefix] = ""
				return
			}
			for i, item := range t {
				walk(prefix+"["+strconv.Itoa(i)+"]", item)
			}
		default:
			if prefix == "" {
				prefix = "value"
			}
			keys = append(keys, prefix)
			out[prefix] = cellValue(t)
		}
	}
	walk("", v)
	return keys, out
}

// FlattenJSON decodes doc and flattens it. Text that is not JSON lands under "data".
func FlattenJSON(doc string) ([]string, map[string]any) {
	var v any
	if err := json.Unmarshal([]byte(doc), &v); err != nil {
		return []string{"data"}, map[string]any{"data": doc}
	}
	return Flatten(v)
}

func cellValue(v any) any {
	switch t := v.(type) {
	case nil:
		return ""
	case string, bool, float64:
		return t
	default:
		return fmt.Sprint(t)
	}
}
