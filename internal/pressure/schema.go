// Package pressure converts Signals into strictly validated
// PressureFeatures records. Structured output from the inference
// service is validated against the schema; a single bounded repair
// retry is allowed, after which the stage returns nothing rather than
// an invalid record.
package pressure

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// PressureFeatures describes one pressure/risk dimension of a Signal.
// All fields are validated with go-playground/validator tags; a record
// is only produced after validation succeeds.
type PressureFeatures struct {
	System               string   `json:"system" validate:"required,oneof=Security Maritime Energy Industrial Monetary"`
	PressureVector       string   `json:"pressure_vector" validate:"required,max=120"`
	ImpactOrder          int      `json:"impact_order" validate:"min=1,max=3"`
	TimeHorizonDays      int      `json:"time_horizon_days" validate:"min=1,max=365"`
	EvidenceStrength     float64  `json:"evidence_strength" validate:"gte=0,lte=1"`
	Novelty              float64  `json:"novelty" validate:"gte=0,lte=1"`
	TransmissionChannels []string `json:"transmission_channels" validate:"required,min=1,max=5,dive,required"`
	ExposedEntities      []string `json:"exposed_entities" validate:"max=10"`
	Uncertainties        []string `json:"uncertainties" validate:"required,min=1,max=3,dive,required"`
	Citations            []string `json:"citations"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the record against the schema, returning one line per
// violated constraint (field path plus message) so a repair prompt can
// enumerate them.
func (p *PressureFeatures) Validate() []string {
	err := validate.Struct(p)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []string{err.Error()}
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q constraint (got %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return msgs
}

// wrapperKeys are common keys models wrap structured output in.
var wrapperKeys = []string{"pressure_features", "features", "data", "result", "output"}

// decodeFeatures parses inference output into a PressureFeatures
// record, unwrapping common wrapper keys when the top-level object does
// not carry the expected "system" discriminator. The result is NOT yet
// validated.
func decodeFeatures(content string) (*PressureFeatures, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("empty inference output")
	}

	raw := firstJSONObject(content)
	if raw == "" {
		return nil, fmt.Errorf("inference output contains no JSON object")
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &top); err != nil {
		return nil, fmt.Errorf("decode inference output: %w", err)
	}

	payload := json.RawMessage(raw)
	if _, ok := top["system"]; !ok {
		for _, key := range wrapperKeys {
			if inner, ok := top[key]; ok {
				payload = inner
				break
			}
		}
	}

	var features PressureFeatures
	if err := json.Unmarshal(payload, &features); err != nil {
		return nil, fmt.Errorf("decode pressure features: %w", err)
	}
	return &features, nil
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
