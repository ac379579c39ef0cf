// Package jsonrepair recovers structured data from the malformed JSON that
// LLMs routinely emit: markdown fences, prose around the object, trailing
// commas, missing commas between array elements, stray control characters.
// Each tier is a pure function so the repair pipeline is testable in isolation.
package jsonrepair

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
)

// StripFences removes a surrounding markdown code fence, if any.
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	for _, fence := range []string{"```json", "```"} {
		if strings.HasPrefix(text, fence) {
			text = strings.TrimPrefix(text, fence)
			if idx := strings.LastIndex(text, "```"); idx >= 0 {
				text = text[:idx]
			}
			break
		}
	}
	return strings.TrimSpace(text)
}

// ExtractObject returns the first balanced {...} span in text. Brace counting
// is string-aware so braces inside JSON string values do not unbalance the
// scan. Returns "" when no balanced object exists.
func ExtractObject(text string) string {
	start := strings.Index(text, "{")
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
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
				return text[start : i+1]
			}
		}
	}
	return ""
}

var (
	trailingComma = regexp.MustCompile(`,\s*([}\]])`)
	adjacentObjs  = regexp.MustCompile(`}\s*{`)
)

// Repair applies the mechanical heuristics that fix the most common LLM JSON
// defects: trailing commas before a closing bracket, missing commas between
// adjacent object literals in an array, and control characters inside the
// payload.
func Repair(s string) string {
	s = trailingComma.ReplaceAllString(s, "$1")
	s = adjacentObjs.ReplaceAllString(s, "},{")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 && r != '\n' && r != '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Unmarshal runs the full tier chain (fence strip, balanced extract, repair,
// parse) and decodes into v. It fails only when every tier fails; callers are
// expected to fall back to regex pair extraction on error.
func Unmarshal(text string, v any) error {
	cleaned := ExtractObject(StripFences(text))
	if cleaned == "" {
		return eris.New("jsonrepair: no JSON object found")
	}
	if err := json.Unmarshal([]byte(cleaned), v); err == nil {
		return nil
	}
	if err := json.Unmarshal([]byte(Repair(cleaned)), v); err != nil {
		return eris.Wrap(err, "jsonrepair: unmarshal after repair")
	}
	return nil
}

// FieldMatch is one regex-recovered string field occurrence.
type FieldMatch struct {
	Value  string
	Offset int
}

// StringFieldValues scans text for `"key": "value"` occurrences and returns
// the values with their byte offsets, so a caller can pair fields from
// different keys positionally. This recovers partial results from truncated
// or decorated JSON that no repair tier could parse.
func StringFieldValues(text, key string) []FieldMatch {
	re := regexp.MustCompile(`"` + regexp.QuoteMeta(key) + `"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	var out []FieldMatch
	for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
		raw := text[m[2]:m[3]]
		var val string
		if err := json.Unmarshal([]byte(`"`+raw+`"`), &val); err != nil {
			val = raw
		}
		out = append(out, FieldMatch{Value: val, Offset: m[0]})
	}
	return out
}
