package grading

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoJSON indicates no parseable JSON object could be recovered from the
// model's text response.
var ErrNoJSON = errors.New("no JSON object found in model response")

var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// ExtractJSON recovers a JSON object from a possibly prose-wrapped or
// code-fenced model response. Strategies are tried in order: fence stripping,
// regex span extraction, first-brace-to-last-brace slicing. The first
// strategy producing valid JSON wins.
func ExtractJSON(raw string) ([]byte, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, ErrNoJSON
	}

	if candidate := stripCodeFences(trimmed); json.Valid([]byte(candidate)) {
		return []byte(candidate), nil
	}

	if match := jsonObjectPattern.FindString(trimmed); match != "" && json.Valid([]byte(match)) {
		return []byte(match), nil
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end > start {
		slice := trimmed[start : end+1]
		if json.Valid([]byte(slice)) {
			return []byte(slice), nil
		}
	}

	return nil, ErrNoJSON
}

// DecodeResponse extracts and unmarshals the model payload.
func DecodeResponse(raw string) (*ModelResponse, error) {
	payload, err := ExtractJSON(raw)
	if err != nil {
		return nil, err
	}

	var response ModelResponse
	if err := json.Unmarshal(payload, &response); err != nil {
		return nil, fmt.Errorf("decode model response: %w", err)
	}

	return &response, nil
}

func stripCodeFences(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}

	text = strings.TrimPrefix(text, "```")
	// Drop an optional language tag on the opening fence.
	if idx := strings.Index(text, "\n"); idx >= 0 {
		first := strings.TrimSpace(text[:idx])
		if first == "json" || first == "" {
			text = text[idx+1:]
		}
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")

	return strings.TrimSpace(text)
}
