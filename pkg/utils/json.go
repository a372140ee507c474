package utils

import (
	"encoding/json"
	"fmt"
)

// MarshalJSONString marshals data to a single-line JSON string, the
// shape one newline-delimited log record needs.
func MarshalJSONString(data interface{}) (string, error) {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("utils: marshal JSON: %w", err)
	}
	return string(jsonBytes), nil
}
