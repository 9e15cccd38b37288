package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoJSON is returned when no strategy yields a decodable document
var ErrNoJSON = errors.New("no JSON document found")

var (
	fencedJSON    = regexp.MustCompile("(?s)```(?:json)?\\s*(.+?)\\s*```")
	trailingComma = regexp.MustCompile(`,\s*([}\]])`)
	bareKey       = regexp.MustCompile(`([{,]\s*)([A-Za-z_]\w*)(\s*:)`)
	controlChars  = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F]`)
)

// DecodeModelJSON decodes a JSON object produced by a language model into
// target. Tool-call arguments usually arrive as clean JSON, but some models
// wrap them in a markdown fence, surround them with prose, or emit trailing
// commas and unquoted keys. Each repair is tried in turn.
func DecodeModelJSON(input string, target any) error {
	input = strings.TrimSpace(strings.TrimPrefix(input, "\ufeff"))
	if input == "" {
		return fmt.Errorf("%w: empty input", ErrNoJSON)
	}

	candidates := []string{input}
	if m := fencedJSON.FindStringSubmatch(input); len(m) > 1 {
		candidates = append(candidates, m[1])
	}
	if obj := firstObject(input); obj != "" {
		candidates = append(candidates, obj, repair(obj))
	}
	candidates = append(candidates, repair(input))

	for _, c := range candidates {
		if err := json.Unmarshal([]byte(c), target); err == nil {
			return nil
		}
	}
	return fmt.Errorf("%w in %q", ErrNoJSON, truncateString(input, 100))
}

// firstObject returns the first brace-balanced object in s, ignoring braces
// inside string literals
func firstObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString, escape := false, false
	for i := start; i < len(s); i++ {
		ch := s[i]
		switch {
		case escape:
			escape = false
		case ch == '\\':
			escape = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// repair fixes the mistakes models make most often
func repair(s string) string {
	s = controlChars.ReplaceAllString(s, "")
	s = trailingComma.ReplaceAllString(s, "$1")
	s = bareKey.ReplaceAllString(s, `$1"$2"$3`)
	return singleToDoubleQuotes(s)
}

// singleToDoubleQuotes swaps single-quoted strings for double-quoted ones
// outside existing double-quoted strings. Apostrophes inside words are kept.
func singleToDoubleQuotes(s string) string {
	var b strings.Builder
	inDouble, inSingle, escape := false, false, false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if escape {
			b.WriteByte(ch)
			escape = false
			continue
		}
		switch {
		case ch == '\\':
			escape = true
		case ch == '"' && !inSingle:
			inDouble = !inDouble
		case ch == '\'' && !inDouble:
			if inSingle || opensString(s, i) {
				inSingle = !inSingle
				b.WriteByte('"')
				continue
			}
		}
		b.WriteByte(ch)
	}
	return b.String()
}

func opensString(s string, i int) bool {
	j := i - 1
	for j >= 0 && (s[j] == ' ' || s[j] == '\t' || s[j] == '\n') {
		j--
	}
	return j < 0 || strings.IndexByte(":,[{", s[j]) >= 0
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
