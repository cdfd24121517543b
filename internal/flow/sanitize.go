// Package flow implements the conversation routing state machine and the
// task workflows behind it.
//
// This file holds the oracle-output sanitizers. Oracle text is always
// untrusted: it may arrive wrapped in code fences or surrounded by prose, so
// every structural parse goes through these helpers first.
package flow

import "strings"

// StripCodeFences removes a surrounding markdown code fence from s, including
// an optional language tag on the opening fence.
func StripCodeFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	// Drop a language tag like "json" on the opening fence line.
	if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
		firstLine := strings.TrimSpace(trimmed[:idx])
		if firstLine != "" && !strings.ContainsAny(firstLine, "{}[]") {
			trimmed = trimmed[idx+1:]
		}
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// ExtractJSONObject returns the first balanced brace-delimited object in s,
// or "" when none exists. Braces inside JSON strings are ignored.
func ExtractJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// SanitizeJSON strips code fences and extracts the first balanced JSON object
// from raw oracle output. Returns "" when no object can be located.
func SanitizeJSON(raw string) string {
	return ExtractJSONObject(StripCodeFences(raw))
}
