package merge

import (
	"bytes"
	"encoding/json"

	"github.com/pithecene-io/tagrelay/types"
)

// DecodeBody decodes the body of a response fragment into the fields to merge.
//
//   - absent or null: no fields
//   - a JSON string: the string is parsed as a JSON object; text that is not
//     an object is wrapped as {"body": text}
//   - an object: its keys
//   - anything else: wrapped as {"body": value}
//
// The boolean result is false when a string body failed to parse.
func DecodeBody(raw json.RawMessage) (map[string]any, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, true
	}

	var v any
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return map[string]any{types.FieldBody: string(raw)}, false
	}

	switch body := v.(type) {
	case map[string]any:
		return body, true
	case string:
		return ParseJSONResponse(body)
	default:
		return map[string]any{types.FieldBody: body}, true
	}
}

// ParseJSONResponse parses text as a JSON object. Text that is empty, invalid,
// or not an object is wrapped as {"body": text} and ok is false.
func ParseJSONResponse(text string) (fields map[string]any, ok bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil || obj == nil {
		return map[string]any{types.FieldBody: text}, false
	}
	return obj, true
}
