// normalizer.go - Tolerant parsing of near-JSON model output

package processor

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// NormalizeError reports model output that no repair rule could recover.
// RawText keeps the offending response for diagnostics.
type NormalizeError struct {
	RawText string
	Err     error
}

func (e *NormalizeError) Error() string {
	return fmt.Sprintf("unable to normalize model response: %v", e.Err)
}

func (e *NormalizeError) Unwrap() error {
	return e.Err
}

// repairRule is one named transformation of the raw response text. Rules are
// applied cumulatively in order; parsing is retried after each one so a rule
// never runs on text an earlier rule already made valid.
type repairRule struct {
	name  string
	apply func(string) string
}

// Rule order matters: structural recovery (fences, span) comes before
// character-level fixes, and the riskiest rewrites (quote swapping) come last.
var repairRules = []repairRule{
	{"strip_code_fences", stripCodeFences},
	{"extract_json_span", extractJSONSpan},
	{"escape_control_chars", escapeControlChars},
	{"remove_trailing_commas", removeTrailingCommas},
	{"quote_unquoted_keys", quoteUnquotedKeys},
	{"single_to_double_quotes", singleToDoubleQuotes},
}

// Normalize converts raw model output into a JSON array or object. It first
// tries the text as-is, then applies each repair rule in turn, re-parsing
// after every rule. Returns a NormalizeError when nothing recovers a
// structure.
func Normalize(raw string) (interface{}, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, &NormalizeError{RawText: raw, Err: fmt.Errorf("empty response")}
	}

	if value, err := parseStructure(text); err == nil {
		return value, nil
	}

	var lastErr error
	for _, rule := range repairRules {
		text = rule.apply(text)

		value, err := parseStructure(text)
		if err == nil {
			return value, nil
		}
		lastErr = fmt.Errorf("after rule %q: %w", rule.name, err)
	}

	return nil, &NormalizeError{RawText: raw, Err: lastErr}
}

// parseStructure unmarshals text and accepts only arrays and objects.
// Bare scalars are valid JSON but carry no line items.
func parseStructure(text string) (interface{}, error) {
	var value interface{}
	if err := json.Unmarshal([]byte(text), &value); err != nil {
		return nil, err
	}

	switch value.(type) {
	case []interface{}, map[string]interface{}:
		return value, nil
	default:
		return nil, fmt.Errorf("parsed value is not an array or object")
	}
}

// stripCodeFences removes markdown code fences and any prose around them.
// When a fenced block exists, only its contents survive.
func stripCodeFences(text string) string {
	start := strings.Index(text, "```")
	if start < 0 {
		return text
	}

	inner := text[start+3:]
	// Drop a language tag like "json" on the fence line
	if newline := strings.IndexByte(inner, '\n'); newline >= 0 {
		tag := strings.TrimSpace(inner[:newline])
		if tag == "json" || tag == "JSON" || tag == "" {
			inner = inner[newline+1:]
		}
	}

	if end := strings.Index(inner, "```"); end >= 0 {
		inner = inner[:end]
	}

	return strings.TrimSpace(inner)
}

// extractJSONSpan cuts the text down to the outermost bracketed span,
// discarding prose before and after it. Arrays win over objects when the
// array opens first.
func extractJSONSpan(text string) string {
	arrStart := strings.IndexByte(text, '[')
	objStart := strings.IndexByte(text, '{')

	var closer byte
	start := -1

	switch {
	case arrStart >= 0 && (objStart < 0 || arrStart < objStart):
		closer, start = ']', arrStart
	case objStart >= 0:
		closer, start = '}', objStart
	default:
		return text
	}

	end := strings.LastIndexByte(text, closer)
	if end <= start {
		return text
	}

	return text[start : end+1]
}

var stringValuePattern = regexp.MustCompile(`"([^"]*(?:\\.[^"]*)*)"`)

// escapeControlChars escapes literal control characters inside JSON string
// values. Models sometimes emit real newlines or tabs inside strings, which
// the JSON grammar forbids.
func escapeControlChars(text string) string {
	return stringValuePattern.ReplaceAllStringFunc(text, func(match string) string {
		if len(match) < 2 {
			return match
		}

		content := match[1 : len(match)-1]

		// Invalid escape like "\ " (backslash then space)
		content = strings.ReplaceAll(content, "\\ ", "\\\\ ")

		content = strings.ReplaceAll(content, "\n", "\\n")
		content = strings.ReplaceAll(content, "\r", "\\r")
		content = strings.ReplaceAll(content, "\t", "\\t")
		content = strings.ReplaceAll(content, "\f", "\\f")
		content = strings.ReplaceAll(content, "\b", "\\b")

		var builder strings.Builder
		for _, ch := range content {
			if ch < 0x20 {
				builder.WriteString(fmt.Sprintf("\\u%04x", ch))
			} else {
				builder.WriteRune(ch)
			}
		}

		return `"` + builder.String() + `"`
	})
}

var trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)

// removeTrailingCommas drops commas that directly precede a closing bracket
func removeTrailingCommas(text string) string {
	return trailingCommaPattern.ReplaceAllString(text, "$1")
}

var unquotedKeyPattern = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)

// quoteUnquotedKeys wraps bare object keys in double quotes
func quoteUnquotedKeys(text string) string {
	return unquotedKeyPattern.ReplaceAllString(text, `$1"$2":`)
}

// singleToDoubleQuotes swaps single-quoted strings for double-quoted ones.
// Last resort: it cannot distinguish apostrophes from delimiters, which is
// why every earlier parse attempt runs first.
func singleToDoubleQuotes(text string) string {
	if strings.Contains(text, `"`) {
		return text
	}
	return strings.ReplaceAll(text, "'", `"`)
}
