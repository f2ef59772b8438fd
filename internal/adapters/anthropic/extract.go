package anthropic

import "strings"

// extractJSONArray returns the first array-like span of the reply: from the
// first '[' to the last ']'. The planner is asked for a bare array, but may
// wrap it in prose.
func extractJSONArray(s string) (string, bool) {
	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// extractJSONObject returns the outermost object span of the reply: from the
// first '{' to the last '}'.
func extractJSONObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}
