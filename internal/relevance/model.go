// Package relevance scores event/user pairs for ranking. Prediction
// tries a registered model first and degrades to a deterministic
// weighted-sum rule when no model is active or inference fails. The
// rule path never touches an inference service.
package relevance

import (
	"context"

	"github.com/meridianlabs/meridian/internal/features"
)

// Model scores a pair feature vector. Implementations may call out to
// a serving backend; the predictor treats any error as a signal to use
// the rule-based fallback.
type Model interface {
	Name() string
	Version() string
	Predict(ctx context.Context, f features.EventUserPairFeatures) (float64, error)
}

// Prediction is the result of a relevance query.
type Prediction struct {
	EventID        string   `json:"event_id"`
	UserID         string   `json:"user_id"`
	RelevanceScore float64  `json:"relevance_score"` // 0-1
	Confidence     float64  `json:"confidence"`      // 0-1, provenance not certainty
	ModelVersion   string   `json:"model_version"`
	FeaturesUsed   []string `json:"features_used"`
	Reasoning      string   `json:"reasoning"`
}

// Confidence reflects which path produced the score, not statistical
// certainty.
const (
	modelConfidence = 0.8
	ruleConfidence  = 0.6
)

// RuleVersion identifies the deterministic fallback scorer.
const RuleVersion = "rule-v1"

// Fixed weights for the rule-based score. Match weights dominate;
// history weights are capped; similarity placeholders contribute least.
const (
	weightSectorMatch    = 0.30
	weightRegionMatch    = 0.20
	weightEventTypeMatch = 0.15
	weightInteractions   = 0.15 // scaled by min(count/50, 1)
	weightEngagement     = 0.10 // scaled by engagement rate
	weightContentSim     = 0.05
	weightCollaborative  = 0.05
)
