// Package parser recovers and validates plan documents from the free-form
// text returned by a generation service.
package parser

import (
	"strings"

	"github.com/starford/vitalplan/internal/apperr"
)

const fence = "```"

// Unwrap strips the Markdown code fence a generation service may wrap its
// JSON in and returns the candidate document. Text without a fence is
// returned trimmed and otherwise unchanged. An opening fence without a
// closing one is a MalformedEnvelope; no attempt is made to guess where the
// document ends.
func Unwrap(raw string) (string, error) {
	text := strings.TrimSpace(raw)

	start := -1
	switch {
	case strings.HasPrefix(text, fence):
		start = 0
	case strings.HasPrefix(text, "{"), strings.HasPrefix(text, "["):
		return text, nil
	default:
		// Leading prose such as "Here is your plan:" before the fence.
		start = strings.Index(text, fence)
	}
	if start < 0 {
		return text, nil
	}

	body := text[start+len(fence):]
	body = body[languageTagLen(body):]

	end := strings.LastIndex(body, fence)
	if end < 0 {
		return "", &apperr.GenerationError{
			Kind:    apperr.KindMalformedEnvelope,
			Reason:  "opening code fence has no closing fence",
			Index:   -1,
			Excerpt: excerpt(text, 0),
		}
	}

	candidate := strings.TrimSpace(body[:end])
	if candidate == "" {
		return "", &apperr.GenerationError{
			Kind:   apperr.KindMalformedEnvelope,
			Reason: "code fence is empty",
			Index:  -1,
		}
	}
	return candidate, nil
}

// languageTagLen returns the length of the info string ("json", "JSON5",
// "c++") directly after an opening fence.
func languageTagLen(s string) int {
	n := 0
	for n < len(s) {
		c := s[n]
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' || c == '+' || c == '-' {
			n++
			continue
		}
		break
	}
	return n
}
