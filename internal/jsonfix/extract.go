// Package jsonfix locates and repairs JSON payloads embedded in free-text LLM responses.
package jsonfix

import (
	"regexp"
	"strings"
)

var (
	jsonFence = regexp.MustCompile("(?is)```json\\s*(.*?)```")
	anyFence  = regexp.MustCompile("(?s)```[a-zA-Z0-9_-]*\\s*(.*?)```")
)

// Extract returns the best candidate JSON string found in text. It never fails: when
// nothing resembling JSON is found the trimmed input is returned for the caller to parse.
func Extract(text string) string {
	trimmed := strings.TrimSpace(text)

	if m := jsonFence.FindStringSubmatch(trimmed); m != nil {
		if body := strings.TrimSpace(m[1]); body != "" {
			return body
		}
	}
	if m := anyFence.FindStringSubmatch(trimmed); m != nil {
		if body := strings.TrimSpace(m[1]); body != "" {
			return body
		}
	}

	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		return trimmed
	}
	if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
		return trimmed
	}

	start := strings.IndexAny(trimmed, "{[")
	if start == -1 {
		return trimmed
	}
	if end := matchingClose(trimmed, start); end != -1 {
		return trimmed[start : end+1]
	}
	// Unbalanced: most likely truncated output, hand the tail to the repairer.
	return trimmed[start:]
}

// matchingClose walks forward from the opening bracket at start and returns the index of
// its balanced closer, ignoring brackets that appear inside string literals.
func matchingClose(s string, start int) int {
	open := s[start]
	closer := byte('}')
	if open == '[' {
		closer = ']'
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
		case open:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
