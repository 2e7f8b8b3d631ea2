package tools

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StringArg extracts a string argument from a tool call. Models send either
// a JSON object ({"query": "..."}) or, occasionally, the bare value.
func StringArg(input, key string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", fmt.Errorf("%w: missing %q", ErrInvalidInput, key)
	}
	if !strings.HasPrefix(trimmed, "{") {
		var s string
		if err := json.Unmarshal([]byte(trimmed), &s); err == nil {
			return s, nil
		}
		return trimmed, nil
	}
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(trimmed), &obj); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	for _, k := range []string{key, "input"} {
		if v, ok := obj[k]; ok {
			switch t := v.(type) {
			case string:
				return t, nil
			case nil:
			default:
				b, _ := json.Marshal(t)
				return string(b), nil
			}
		}
	}
	return "", fmt.Errorf("%w: missing %q", ErrInvalidInput, key)
}

// DecodeArgs unmarshals a JSON argument object into v.
func DecodeArgs(input string, v interface{}) error {
	if strings.TrimSpace(input) == "" {
		input = "{}"
	}
	if err := json.Unmarshal([]byte(input), v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}
