package apperr

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

const maxDetailRunes = 300

// Keys the backend uses for error payloads, in lookup order.
var errorKeys = []string{"error", "detail", "message", "non_field_errors"}

// Describe extracts a diagnostic from an error response body. structured is
// true only when the body was a JSON object carrying a known error field.
func Describe(body []byte, contentType string) (msg string, structured bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return "", false
	}

	if trimmed[0] == '{' {
		if msg, ok := describeJSON(trimmed); ok {
			return msg, true
		}
	}

	if strings.Contains(strings.ToLower(contentType), "html") || trimmed[0] == '<' {
		if msg := describeHTML(trimmed); msg != "" {
			return msg, false
		}
	}

	return truncate(string(trimmed)), false
}

func describeJSON(body []byte) (string, bool) {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", false
	}
	for _, key := range errorKeys {
		v, ok := payload[key]
		if !ok {
			continue
		}
		if msg := flatten(v); msg != "" {
			return truncate(msg), true
		}
	}

	// Field validation errors: {"username": ["already exists."]}.
	fields := make([]string, 0, len(payload))
	for key := range payload {
		fields = append(fields, key)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, key := range fields {
		list, ok := payload[key].([]any)
		if !ok {
			continue
		}
		if msg := flatten(list); msg != "" {
			parts = append(parts, key+": "+msg)
		}
	}
	if len(parts) == 0 {
		return "", false
	}
	return truncate(strings.Join(parts, "; ")), true
}

func flatten(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := flatten(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "; ")
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

// describeHTML reduces an HTML error page (a proxy or framework debug page) to
// its title or first heading.
func describeHTML(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return truncate(collapse(title))
	}
	return truncate(collapse(doc.Find("h1").First().Text()))
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string) string {
	if utf8.RuneCountInString(s) <= maxDetailRunes {
		return s
	}
	r := []rune(s)
	return string(r[:maxDetailRunes]) + "..."
}
