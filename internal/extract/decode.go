package extract

import (
	"encoding/json"
	"fmt"
	"strings"
)

// eventPayload is the structured object requested from the inference
// service. Only factual fields: who/what/where/when. No interpretive
// fields are requested and none are accepted.
type eventPayload struct {
	EventType  string   `json:"event_type"`
	Headline   string   `json:"headline"`
	Summary    string   `json:"summary"`
	Date       string   `json:"date"`
	Location   string   `json:"location"`
	Actors     []string `json:"actors"`
	Sectors    []string `json:"sectors"`
	Confidence int      `json:"confidence"` // 0-100, data quality
}

// decodeEventPayload parses the inference output into an eventPayload.
// Strict parsing is attempted first; when the model wraps the object in
// surrounding prose, the first JSON object is recovered by bracket
// matching before giving up.
func decodeEventPayload(content string) (*eventPayload, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("empty inference output")
	}

	var payload eventPayload
	if err := json.Unmarshal([]byte(content), &payload); err == nil {
		return &payload, nil
	}

	candidate := firstJSONObject(content)
	if candidate == "" {
		return nil, fmt.Errorf("inference output contains no JSON object")
	}
	if err := json.Unmarshal([]byte(candidate), &payload); err != nil {
		return nil, fmt.Errorf("decode inference output: %w", err)
	}
	return &payload, nil
}

// firstJSONObject returns the first balanced {...} object in s, or ""
// when none exists. Braces inside string literals are skipped.
func firstJSONObject(s string) string {
	start := strings.Index(s, "{")
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
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
