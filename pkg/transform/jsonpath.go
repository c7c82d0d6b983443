package transform

import (
	"strconv"
	"strings"

	"github.com/dshills/nodeflow/pkg/value"
	"github.com/tidwall/gjson"
)

// Query selects path from the JSON document doc. path is either gjson syntax
// ("users.0.name", "users.#.name") or a JSONPath subset ("$.users[0].name",
// "$.users[*].name", "$.users[-1]"). An empty path or "$" selects the whole
// document. found is false when nothing matches.
func Query(doc, path string) (value.Value, bool, error) {
	if !gjson.Valid(doc) {
		return value.Null, false, ErrInvalidJSON
	}
	if err := validateBrackets(path); err != nil {
		return value.Null, false, err
	}

	if hasNegativeIndex(path) {
		return queryNegativeIndex(doc, path)
	}

	queryPath := convertJSONPathToGJSON(path)
	if queryPath == "" {
		return value.FromResult(gjson.Parse(doc)), true, nil
	}

	result := gjson.Get(doc, queryPath)
	if !result.Exists() {
		return value.Null, false, nil
	}
	return value.FromResult(result), true, nil
}

// convertJSONPathToGJSON converts JSONPath syntax to gjson syntax. gjson
// paths pass through unchanged.
func convertJSONPathToGJSON(path string) string {
	result := strings.TrimPrefix(path, "$")
	result = strings.TrimPrefix(result, ".")
	result = strings.ReplaceAll(result, ".length()", ".#")
	result = strings.ReplaceAll(result, "[*]", ".#")
	result = replaceArrayIndexes(result)
	return strings.TrimPrefix(result, ".")
}

// replaceArrayIndexes converts [n] to .n for gjson
func replaceArrayIndexes(path string) string {
	var b strings.Builder
	for i := 0; i < len(path); {
		if path[i] != '[' {
			b.WriteByte(path[i])
			i++
			continue
		}
		closing := strings.IndexByte(path[i:], ']')
		if closing == -1 {
			b.WriteString(path[i:])
			break
		}
		closing += i
		content := path[i+1 : closing]
		if isSimpleNumber(content) {
			b.WriteString("." + content)
		} else {
			b.WriteString("[" + content + "]")
		}
		i = closing + 1
	}
	return b.String()
}

// isSimpleNumber checks if a string is a simple integer (positive or negative)
func isSimpleNumber(s string) bool {
	if s == "" {
		return false
	}
	if s[0] == '-' {
		s = s[1:]
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}

// validateBrackets checks if all brackets are properly matched
func validateBrackets(path string) error {
	depth := 0
	for _, ch := range path {
		switch ch {
		case '[':
			depth++
			if depth > 1 {
				return ErrInvalidJSONPath
			}
		case ']':
			depth--
			if depth < 0 {
				return ErrInvalidJSONPath
			}
		}
	}
	if depth != 0 {
		return ErrInvalidJSONPath
	}
	return nil
}

// hasNegativeIndex checks if the path contains negative array indexing
func hasNegativeIndex(path string) bool {
	return strings.Contains(path, "[-")
}

// queryNegativeIndex handles paths like $.users[-1].email by counting from
// the end of the array.
func queryNegativeIndex(doc, path string) (value.Value, bool, error) {
	start := strings.Index(path, "[-")
	end := strings.IndexByte(path[start:], ']')
	if end == -1 {
		return value.Null, false, ErrInvalidJSONPath
	}
	end += start

	index, err := strconv.Atoi(path[start+1 : end])
	if err != nil {
		return value.Null, false, ErrInvalidJSONPath
	}

	arrayPath := convertJSONPathToGJSON(path[:start])
	array := gjson.Parse(doc)
	if arrayPath != "" {
		array = gjson.Get(doc, arrayPath)
	}
	if !array.IsArray() {
		return value.Null, false, ErrTypeMismatch
	}

	elems := array.Array()
	pos := len(elems) + index
	if pos < 0 || pos >= len(elems) {
		return value.Null, false, nil
	}
	element := elems[pos]

	if rest := convertJSONPathToGJSON(path[end+1:]); rest != "" {
		element = element.Get(rest)
		if !element.Exists() {
			return value.Null, false, nil
		}
	}
	return value.FromResult(element), true, nil
}
