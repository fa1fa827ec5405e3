package relevance

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/meridianlabs/meridian/internal/features"
	"github.com/meridianlabs/meridian/internal/record"
)

func seededPredictor(t *testing.T) (*Predictor, *record.Event) {
	t.Helper()
	p := NewPredictor(features.NewMemoryStore())

	ev := record.NewEvent()
	ev.EventType = "sanction"
	ev.Location = "Europe"
	ev.Sectors = []string{"Energy"}
	ev.SourceCount = 3
	p.AddEvent(*ev, 0.8, 0.7)

	p.AddUser(UserProfile{
		UserID:           "u1",
		Sectors:          []string{"Energy"},
		Regions:          []string{"Europe"},
		EventTypes:       []string{"sanction"},
		InteractionCount: 25,
		EngagementRate:   0.5,
	})
	return p, ev
}

func TestRuleFallbackConfidence(t *testing.T) {
	p, ev := seededPredictor(t)

	pred, err := p.PredictRelevance(context.Background(), ev.ID, "u1", false)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if pred.Confidence != 0.6 {
		t.Errorf("rule path must report confidence 0.6, got %v", pred.Confidence)
	}
	if pred.ModelVersion != RuleVersion {
		t.Errorf("expected model version %q, got %q", RuleVersion, pred.ModelVersion)
	}

	// All three matches plus capped history terms:
	// 0.30 + 0.20 + 0.15 + 0.15*(25/50) + 0.10*0.5 = 0.775
	want := 0.775
	if math.Abs(pred.RelevanceScore-want) > 1e-9 {
		t.Errorf("expected score %v, got %v", want, pred.RelevanceScore)
	}
	if pred.Reasoning == "" || len(pred.FeaturesUsed) == 0 {
		t.Error("prediction must carry reasoning and the features used")
	}
}

func TestRuleScoreNoMatches(t *testing.T) {
	score, reasons := ruleScore(features.EventUserPairFeatures{})
	if score != 0 {
		t.Errorf("expected 0 score with no features, got %v", score)
	}
	if len(reasons) != 1 || reasons[0] != "no matching features" {
		t.Errorf("unexpected reasons: %v", reasons)
	}
}

func TestInteractionWeightIsCapped(t *testing.T) {
	score, _ := ruleScore(features.EventUserPairFeatures{UserInteractionCount: 5000})
	if math.Abs(score-weightInteractions) > 1e-9 {
		t.Errorf("interaction term must cap at %v, got %v", weightInteractions, score)
	}
}

type fixedModel struct {
	score float64
	err   error
	calls int
}

func (m *fixedModel) Name() string    { return "fixed" }
func (m *fixedModel) Version() string { return "fixed-v2" }

func (m *fixedModel) Predict(_ context.Context, _ features.EventUserPairFeatures) (float64, error) {
	m.calls++
	return m.score, m.err
}

func TestModelPathConfidence(t *testing.T) {
	p, ev := seededPredictor(t)
	p.RegisterModel(&fixedModel{score: 0.91})

	pred, err := p.PredictRelevance(context.Background(), ev.ID, "u1", false)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if pred.Confidence != 0.8 {
		t.Errorf("model path must report confidence 0.8, got %v", pred.Confidence)
	}
	if pred.ModelVersion != "fixed-v2" {
		t.Errorf("expected model version fixed-v2, got %q", pred.ModelVersion)
	}
	if pred.RelevanceScore != 0.91 {
		t.Errorf("expected model score 0.91, got %v", pred.RelevanceScore)
	}
}

func TestModelFailureFallsBackToRule(t *testing.T) {
	p, ev := seededPredictor(t)
	p.RegisterModel(&fixedModel{err: fmt.Errorf("serving down")})

	pred, err := p.PredictRelevance(context.Background(), ev.ID, "u1", false)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if pred.Confidence != 0.6 {
		t.Errorf("fallback must report confidence 0.6, got %v", pred.Confidence)
	}
	if pred.ModelVersion != RuleVersion {
		t.Errorf("fallback must report the rule version, got %q", pred.ModelVersion)
	}
}

func TestPairFeatureCaching(t *testing.T) {
	store := features.NewMemoryStore()
	p := NewPredictor(store)

	ev := record.NewEvent()
	ev.EventType = "strike"
	ev.Sectors = []string{"Maritime"}
	p.AddEvent(*ev, 0.6, 0.6)
	p.AddUser(UserProfile{UserID: "u2", Sectors: []string{"Maritime"}})

	if _, err := p.PredictRelevance(context.Background(), ev.ID, "u2", true); err != nil {
		t.Fatalf("predict: %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("expected one cached pair record, got %d", store.Len())
	}

	// A second cached call works even with an empty registry, proving
	// the store was consulted instead of recomputation.
	p2 := NewPredictor(store)
	pred, err := p2.PredictRelevance(context.Background(), ev.ID, "u2", true)
	if err != nil {
		t.Fatalf("cached predict: %v", err)
	}
	if pred.RelevanceScore <= 0 {
		t.Error("cached pair features should still score the sector match")
	}

	// Without the cache the empty registry fails.
	if _, err := p2.PredictRelevance(context.Background(), ev.ID, "u2", false); err == nil {
		t.Error("expected failure without cache on an empty registry")
	}
}

func TestExtractQueryFeatures(t *testing.T) {
	p := NewPredictor(nil)
	f := p.ExtractQueryFeatures("  Breaking energy sanctions in Europe  ")
	if f.TokenCount != 5 {
		t.Errorf("expected 5 tokens, got %d", f.TokenCount)
	}
	if !f.HasSectorTerm {
		t.Error("expected a sector term")
	}
	if !f.HasRegionTerm {
		t.Error("expected a region term")
	}
	if !f.HasUrgencyTerm {
		t.Error("expected an urgency term")
	}
}

func TestBatchPredictionReportsPerItem(t *testing.T) {
	p, ev := seededPredictor(t)

	pairs := []PairRequest{
		{EventID: ev.ID, UserID: "u1"},
		{EventID: "missing", UserID: "u1"},
		{EventID: ev.ID, UserID: "nobody"},
	}
	results := p.PredictBatch(context.Background(), pairs, false)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Err != nil {
		t.Errorf("first pair should succeed: %v", results[0].Err)
	}
	if results[1].Err == nil {
		t.Error("unknown event must fail its slot")
	}
	if results[2].Err == nil {
		t.Error("unknown user must fail its slot")
	}
}

func TestBatchLargerThanWindow(t *testing.T) {
	p, ev := seededPredictor(t)

	pairs := make([]PairRequest, BatchWindow*2+3)
	for i := range pairs {
		pairs[i] = PairRequest{EventID: ev.ID, UserID: "u1"}
	}
	results := p.PredictBatch(context.Background(), pairs, false)
	if len(results) != len(pairs) {
		t.Fatalf("expected %d results, got %d", len(pairs), len(results))
	}
	for i, r := range results {
		if r.Err != nil {
			t.Fatalf("pair %d failed: %v", i, r.Err)
		}
	}
}
