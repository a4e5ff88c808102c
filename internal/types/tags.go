package types

import (
	"encoding/json"
	"fmt"
)

// EncodeTags serializes a tag-weight mapping to its text blob form.
// json.Marshal emits map keys in sorted order, so the encoding is
// deterministic. Nil and empty maps encode to the empty string.
func EncodeTags(tags map[string]int) (string, error) {
	if len(tags) == 0 {
		return "", nil
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("failed to encode tags: %w", err)
	}
	return string(b), nil
}

// DecodeTags parses the text blob back into a tag-weight mapping.
// The empty string decodes to nil.
func DecodeTags(s string) (map[string]int, error) {
	if s == "" {
		return nil, nil
	}
	var tags map[string]int
	if err := json.Unmarshal([]byte(s), &tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}
	return tags, nil
}
