package predicate

import (
	"encoding/json"
	"strconv"
	"strings"
)

// jsonPathExtract implements the minimal JSONPath dialect a jsonpath.selector
// predicate option needs: a leading "$" is optional, "." separates object
// keys, "[n]" indexes an array, "[*]" takes the first element, and "[:n]" is
// accepted as an alias for "[n]" (mountebank's own dialect does the same,
// and the pack's test fixtures rely on it — this is not a generic JSONPath
// implementation). Any failure to navigate — wrong shape, out of range,
// invalid JSON body — yields "" rather than an error, matching Eval's
// never-fail contract.
func jsonPathExtract(body, selector string) string {
	var root interface{}
	if err := json.Unmarshal([]byte(body), &root); err != nil {
		return ""
	}
	cur := root
	for _, tok := range parseJSONPathTokens(selector) {
		next, ok := stepJSONPath(cur, tok)
		if !ok {
			return ""
		}
		cur = next
	}
	return stringifyJSONValue(cur)
}

type jsonPathToken struct {
	kind  string // key, index, wildcard
	key   string
	index int
}

func parseJSONPathTokens(selector string) []jsonPathToken {
	selector = strings.TrimPrefix(strings.TrimSpace(selector), "$")
	var tokens []jsonPathToken
	i := 0
	for i < len(selector) {
		switch selector[i] {
		case '.':
			i++
		case '[':
			end := strings.IndexByte(selector[i:], ']')
			if end < 0 {
				return tokens
			}
			inner := selector[i+1 : i+end]
			i += end + 1
			inner = strings.TrimPrefix(inner, ":")
			if inner == "*" {
				tokens = append(tokens, jsonPathToken{kind: "wildcard"})
				continue
			}
			n, err := strconv.Atoi(inner)
			if err != nil {
				return tokens
			}
			tokens = append(tokens, jsonPathToken{kind: "index", index: n})
		default:
			j := i
			for j < len(selector) && selector[j] != '.' && selector[j] != '[' {
				j++
			}
			if key := selector[i:j]; key != "" {
				tokens = append(tokens, jsonPathToken{kind: "key", key: key})
			}
			i = j
		}
	}
	return tokens
}

func stepJSONPath(cur interface{}, tok jsonPathToken) (interface{}, bool) {
	switch tok.kind {
	case "key":
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		v, ok := m[tok.key]
		return v, ok
	case "index":
		arr, ok := cur.([]interface{})
		if !ok {
			return nil, false
		}
		idx := tok.index
		if idx < 0 {
			idx += len(arr)
		}
		if idx < 0 || idx >= len(arr) {
			return nil, false
		}
		return arr[idx], true
	case "wildcard":
		arr, ok := cur.([]interface{})
		if !ok || len(arr) == 0 {
			return nil, false
		}
		return arr[0], true
	default:
		return nil, false
	}
}

func stringifyJSONValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		if val {
			return "true"
		}
		return "false"
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
