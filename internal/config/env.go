package config

import (
	"fmt"
	"os"
)

// resolveEnv looks up varName in the process environment. An empty
// varName means "not configured" and resolves to "". A non-empty
// varName that is not set in the environment fails configuration load
// — git-actions never silently treats a missing secret as empty.
func resolveEnv(varName string) (string, error) {
	if varName == "" {
		return "", nil
	}
	v, ok := os.LookupEnv(varName)
	if !ok {
		return "", fmt.Errorf("config: environment variable %q referenced by configuration is not set", varName)
	}
	return v, nil
}
