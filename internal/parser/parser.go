// Package parser turns free-text oracle completions into strict structured
// values. It fails closed: anything that does not decode cleanly is reported
// as ErrParse and the caller decides whether a fallback applies.
package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrParse is returned for any completion that is not valid JSON of the
// expected shape.
var ErrParse = errors.New("unparsable oracle response")

const fence = "```"

// StripFences removes a surrounding Markdown code fence (with or without a
// language tag) and trims whitespace.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, fence) {
		return s
	}
	s = strings.TrimPrefix(s, fence)
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// Opening line may carry a language tag such as "json".
		if tag := strings.TrimSpace(s[:nl]); tag == "" || isFenceTag(tag) {
			s = s[nl+1:]
		}
	} else {
		s = strings.TrimPrefix(strings.TrimPrefix(s, "json"), "JSON")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, fence)
	return strings.TrimSpace(s)
}

func isFenceTag(tag string) bool {
	for _, r := range tag {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '-' && r != '_' {
			return false
		}
	}
	return true
}

// Parse strips fences and strictly decodes the remaining text. Objects decode
// to map[string]any, arrays to []any and numbers to float64.
func Parse(raw string) (any, error) {
	var v any
	if err := ParseInto(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// ParseInto strips fences and strictly decodes the remaining text into v.
// Trailing content after the first JSON value is rejected.
func ParseInto(raw string, v any) error {
	body := StripFences(raw)
	if body == "" {
		return fmt.Errorf("%w: empty completion", ErrParse)
	}
	dec := json.NewDecoder(strings.NewReader(body))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrParse, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data after JSON value", ErrParse)
	}
	return nil
}

// rawArray decodes raw into a list of raw JSON elements. A single object is
// normalized into a one-element list.
func rawArray(raw string) ([]json.RawMessage, error) {
	var msg json.RawMessage
	if err := ParseInto(raw, &msg); err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(msg)
	switch {
	case len(trimmed) > 0 && trimmed[0] == '{':
		return []json.RawMessage{trimmed}, nil
	case len(trimmed) > 0 && trimmed[0] == '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
		return items, nil
	}
	return nil, fmt.Errorf("%w: expected a JSON array or object", ErrParse)
}
