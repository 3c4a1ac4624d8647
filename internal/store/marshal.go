package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// marshalJSON encodes v as compact JSON TEXT without HTML escaping, so that
// SPARQL text stored in progress values stays readable.
func marshalJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// marshalList stores a nil list as [] rather than null.
func marshalList[T any](list []T) (string, error) {
	if list == nil {
		list = []T{}
	}
	return marshalJSON(list)
}

func unmarshalList[T any](text string) ([]T, error) {
	var out []T
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}
