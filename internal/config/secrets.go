package config

import (
	"fmt"
	"os"
	"strings"
)

// ResolveSecret returns the secret named envName. When envName_FILE is
// set the secret is read from that file, trimmed, and takes precedence
// over envName itself. An unset secret is "".
func ResolveSecret(envName string) (string, error) {
	fileEnv := envName + "_FILE"
	path := os.Getenv(fileEnv)
	if path == "" {
		return os.Getenv(envName), nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		// The path is safe to log; the content never is.
		return "", fmt.Errorf("failed to read secret from %s=%s: %w", fileEnv, path, err)
	}
	return strings.TrimSpace(string(content)), nil
}
