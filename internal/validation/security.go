// Package validation provides the checks that keep external commands,
// route values, and file reads inside the boundaries the pipeline expects.
package validation

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidateArgument validates a command line argument to prevent injection attacks
func ValidateArgument(arg string) error {
	dangerous := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\\", "\"", "'", "\n", "\r"}
	for _, char := range dangerous {
		if strings.Contains(arg, char) {
			return fmt.Errorf("contains dangerous character: %q", char)
		}
	}

	if strings.Contains(arg, "..") {
		return fmt.Errorf("contains path traversal: %s", arg)
	}

	// Arguments are resolved against the project root by the caller.
	if filepath.IsAbs(arg) {
		return fmt.Errorf("absolute path not allowed: %s", arg)
	}

	return nil
}

// ValidateCommand validates a command name against an allowlist
func ValidateCommand(command string, allowedCommands map[string]bool) error {
	if command == "" {
		return fmt.Errorf("command cannot be empty")
	}

	if !allowedCommands[command] {
		return fmt.Errorf("command '%s' is not allowed", command)
	}

	if err := ValidateArgument(command); err != nil {
		return fmt.Errorf("invalid command '%s': %w", command, err)
	}

	return nil
}

// WithinRoot resolves rel against root and returns the joined path. It fails
// if the result would land outside root.
func WithinRoot(root, rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("path cannot be empty")
	}
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("absolute path not allowed: %s", rel)
	}

	joined := filepath.Join(root, rel)
	back, err := filepath.Rel(root, joined)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", rel, err)
	}
	if back == ".." || strings.HasPrefix(back, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes root: %s", rel)
	}

	return joined, nil
}

// ValidateRouteValue checks a route table value before it is spliced into a
// generated script literal.
func ValidateRouteValue(key, value string) error {
	if value == "" {
		return fmt.Errorf("route %q cannot be empty", key)
	}

	for _, r := range value {
		switch {
		case r == '\'' || r == '"' || r == '\\' || r == '`':
			return fmt.Errorf("route %q contains quote or escape character %q", key, r)
		case r <= ' ' || r == 0x7f:
			return fmt.Errorf("route %q contains whitespace or control character", key)
		}
	}

	if strings.Contains(value, "..") {
		return fmt.Errorf("route %q contains path traversal: %s", key, value)
	}

	return nil
}
