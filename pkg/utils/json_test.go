package utils

import (
	"strings"
	"testing"
)

type jsonTestRecord struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

func TestMarshalJSONString(t *testing.T) {
	rec := jsonTestRecord{Name: "marshal_test", Value: 999}

	jsonStr, err := MarshalJSONString(rec)
	if err != nil {
		t.Fatalf("MarshalJSONString failed: %v", err)
	}

	if !strings.Contains(jsonStr, `"name":"marshal_test"`) {
		t.Errorf("expected JSON to contain the name field, got %q", jsonStr)
	}
	if strings.Contains(jsonStr, "\n") {
		t.Error("expected a single-line JSON string")
	}
}
