package core

import (
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// ParseEnv translates repeated KEY=VALUE arguments into a mapping. A bare KEY
// takes its value from lookup, or the empty string when unset. Later
// occurrences of a key win.
func ParseEnv(items []string, lookup func(string) (string, bool)) map[string]string {
	env := make(map[string]string, len(items))
	for _, item := range items {
		key, value, ok := strings.Cut(item, "=")
		if !ok {
			value, _ = lookup(key)
		}
		env[key] = value
	}
	return env
}

// MergeEnv overlays reserved on top of user and returns a new mapping.
// Reserved keys always win.
func MergeEnv(user, reserved map[string]string) map[string]string {
	merged := make(map[string]string, len(user)+len(reserved))
	for k, v := range user {
		merged[k] = v
	}
	for k, v := range reserved {
		merged[k] = v
	}
	return merged
}

// FormatEnv renders key/value pairs as POSIX shell assignments, one per
// line, optionally prefixed with export. Values are quoted only when needed.
func FormatEnv(vars [][2]string, export bool) (string, error) {
	prefix := ""
	if export {
		prefix = "export "
	}
	lines := make([]string, 0, len(vars))
	for _, kv := range vars {
		if !syntax.ValidName(kv[0]) {
			return "", fmt.Errorf("invalid variable name %q", kv[0])
		}
		value, err := syntax.Quote(kv[1], syntax.LangPOSIX)
		if err != nil {
			return "", fmt.Errorf("quote value of %s: %w", kv[0], err)
		}
		lines = append(lines, prefix+kv[0]+"="+value)
	}
	return strings.Join(lines, "\n"), nil
}
