package jsonfix

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Repairer rewrites a malformed JSON string into something more likely to parse.
type Repairer interface {
	Repair(s string) string
}

// HeuristicRepairer fixes the malformations LLMs produce most often: trailing commas,
// stray control characters and output truncated before its closing brackets.
// It is not a JSON5 parser.
type HeuristicRepairer struct{}

var trailingComma = regexp.MustCompile(`,\s*([}\]])`)

func (HeuristicRepairer) Repair(s string) string {
	s = stripControlChars(s)
	s = trailingComma.ReplaceAllString(s, "$1")
	s = balance(s)
	return trailingComma.ReplaceAllString(s, "$1")
}

// Repair applies the default HeuristicRepairer.
func Repair(s string) string {
	return HeuristicRepairer{}.Repair(s)
}

// SafeParse unmarshals s into v, retrying once on the repaired string.
func SafeParse(s string, v any) error {
	return SafeParseWith(HeuristicRepairer{}, s, v)
}

// SafeParseWith is SafeParse with a caller-supplied repairer. When both attempts fail the
// error from the original parse is returned since it points at the real defect.
func SafeParseWith(r Repairer, s string, v any) error {
	origErr := json.Unmarshal([]byte(s), v)
	if origErr == nil {
		return nil
	}
	if r == nil {
		return origErr
	}
	if err := json.Unmarshal([]byte(r.Repair(s)), v); err != nil {
		return origErr
	}
	return nil
}

func stripControlChars(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		if r == 0x7f {
			return -1
		}
		return r
	}, s)
}

// balance drops closers that match nothing and appends the closers still owed, in
// nesting order. An unterminated string literal is closed first.
func balance(s string) string {
	var out strings.Builder
	out.Grow(len(s) + 8)

	var stack []byte
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
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
			out.WriteByte(c)
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			want := byte('{')
			if c == ']' {
				want = '['
			}
			if len(stack) == 0 || stack[len(stack)-1] != want {
				continue
			}
			stack = stack[:len(stack)-1]
		}
		out.WriteByte(c)
	}

	if inString {
		if escaped {
			out.WriteByte('\\')
		}
		out.WriteByte('"')
	}
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			out.WriteByte('}')
		} else {
			out.WriteByte(']')
		}
	}
	return out.String()
}
