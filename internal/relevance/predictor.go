package relevance

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/meridianlabs/meridian/internal/features"
	"github.com/meridianlabs/meridian/internal/logging"
	"github.com/meridianlabs/meridian/internal/record"
)

// UserProfile is the interest profile relevance scoring reads. Profiles
// are registered by the caller; the predictor never fetches them.
type UserProfile struct {
	UserID           string
	Sectors          []string
	Regions          []string
	EventTypes       []string
	InteractionCount int
	EngagementRate   float64 // 0-1
}

// knownEvent pairs an Event with the interpretive scores a Signal
// derived for it. The Event itself stays untouched.
type knownEvent struct {
	event      record.Event
	impact     float64 // 0-1
	confidence float64 // 0-1
}

// Predictor extracts entity features and scores event/user pairs.
// Feature extraction is pure over registered entities; only
// PredictRelevance touches the feature store.
type Predictor struct {
	mu     sync.RWMutex
	events map[string]knownEvent
	users  map[string]UserProfile
	model  Model

	store features.Store
	now   func() time.Time
}

// BatchWindow bounds how many pair predictions run concurrently.
const BatchWindow = 10

func NewPredictor(store features.Store) *Predictor {
	return &Predictor{
		events: make(map[string]knownEvent),
		users:  make(map[string]UserProfile),
		store:  store,
		now:    time.Now,
	}
}

// RegisterModel sets the active scoring model. Passing nil reverts to
// the rule-based fallback.
func (p *Predictor) RegisterModel(m Model) {
	p.mu.Lock()
	p.model = m
	p.mu.Unlock()
}

// AddEvent registers an event together with the 0-1 impact and
// confidence scores derived for it downstream.
func (p *Predictor) AddEvent(ev record.Event, impact, confidence float64) {
	p.mu.Lock()
	p.events[ev.ID] = knownEvent{
		event:      ev,
		impact:     record.Clamp01(impact),
		confidence: record.Clamp01(confidence),
	}
	p.mu.Unlock()
}

// AddUser registers a user profile, replacing any previous one.
func (p *Predictor) AddUser(profile UserProfile) {
	p.mu.Lock()
	p.users[profile.UserID] = profile
	p.mu.Unlock()
}

// ExtractEventFeatures computes features for a registered event.
func (p *Predictor) ExtractEventFeatures(eventID string) (features.EventFeatures, error) {
	p.mu.RLock()
	ke, ok := p.events[eventID]
	p.mu.RUnlock()
	if !ok {
		return features.EventFeatures{}, fmt.Errorf("unknown event %q", eventID)
	}

	ev := ke.event
	region := record.UnknownKey
	if ev.Location != "" {
		region = ev.Location
	}
	age := p.now().Sub(ev.LastUpdated).Hours()
	if age < 0 {
		age = 0
	}
	return features.EventFeatures{
		EventID:         ev.ID,
		Sector:          ev.PrimarySector(),
		Region:          region,
		EventType:       ev.EventType,
		ImpactScore:     ke.impact,
		ConfidenceScore: ke.confidence,
		SourceCount:     ev.SourceCount,
		AgeHours:        age,
	}, nil
}

// ExtractUserFeatures computes features for a registered user.
func (p *Predictor) ExtractUserFeatures(userID string) (features.UserFeatures, error) {
	p.mu.RLock()
	u, ok := p.users[userID]
	p.mu.RUnlock()
	if !ok {
		return features.UserFeatures{}, fmt.Errorf("unknown user %q", userID)
	}

	primarySector := record.UnknownKey
	if len(u.Sectors) > 0 {
		primarySector = u.Sectors[0]
	}
	primaryRegion := record.UnknownKey
	if len(u.Regions) > 0 {
		primaryRegion = u.Regions[0]
	}
	return features.UserFeatures{
		UserID:           u.UserID,
		PrimarySector:    primarySector,
		PrimaryRegion:    primaryRegion,
		SectorCount:      len(u.Sectors),
		RegionCount:      len(u.Regions),
		InteractionCount: u.InteractionCount,
		EngagementRate:   record.Clamp01(u.EngagementRate),
	}, nil
}

// ExtractEventUserPairFeatures computes pair features for a registered
// event and user. Pure; the feature store is not consulted.
func (p *Predictor) ExtractEventUserPairFeatures(eventID, userID string) (features.EventUserPairFeatures, error) {
	ef, err := p.ExtractEventFeatures(eventID)
	if err != nil {
		return features.EventUserPairFeatures{}, err
	}
	p.mu.RLock()
	u, ok := p.users[userID]
	p.mu.RUnlock()
	if !ok {
		return features.EventUserPairFeatures{}, fmt.Errorf("unknown user %q", userID)
	}

	return features.EventUserPairFeatures{
		EventID:              eventID,
		UserID:               userID,
		SectorMatch:          containsFold(u.Sectors, ef.Sector),
		RegionMatch:          containsFold(u.Regions, ef.Region),
		EventTypeMatch:       containsFold(u.EventTypes, ef.EventType),
		UserInteractionCount: u.InteractionCount,
		UserEngagementRate:   record.Clamp01(u.EngagementRate),
		// Content and collaborative similarity are placeholders until a
		// trained backend supplies them.
		ContentSimilarity:  0,
		CollaborativeScore: 0,
	}, nil
}

// ExtractQueryFeatures computes features for a free-text query.
func (p *Predictor) ExtractQueryFeatures(query string) features.QueryFeatures {
	trimmed := strings.TrimSpace(query)
	tokens := strings.Fields(trimmed)
	lower := strings.ToLower(trimmed)
	return features.QueryFeatures{
		Query:          trimmed,
		TokenCount:     len(tokens),
		CharLength:     len(trimmed),
		HasSectorTerm:  containsAny(lower, "energy", "security", "maritime", "industrial", "monetary", "technology", "finance"),
		HasRegionTerm:  containsAny(lower, "europe", "asia", "africa", "america", "middle east", "pacific"),
		HasUrgencyTerm: containsAny(lower, "urgent", "breaking", "critical", "now", "today"),
	}
}

// PredictRelevance scores an event/user pair. With useCache, cached
// pair features are read from the store first; on miss the features are
// recomputed and written back.
func (p *Predictor) PredictRelevance(ctx context.Context, eventID, userID string, useCache bool) (Prediction, error) {
	pair, cached, err := p.pairFeatures(ctx, eventID, userID, useCache)
	if err != nil {
		return Prediction{}, err
	}

	p.mu.RLock()
	model := p.model
	p.mu.RUnlock()

	if model != nil {
		score, merr := model.Predict(ctx, pair)
		if merr == nil {
			return Prediction{
				EventID:        eventID,
				UserID:         userID,
				RelevanceScore: record.Clamp01(score),
				Confidence:     modelConfidence,
				ModelVersion:   model.Version(),
				FeaturesUsed:   featureNames(pair),
				Reasoning:      fmt.Sprintf("model %s scored the pair (features cached: %t)", model.Name(), cached),
			}, nil
		}
		logging.Warn("relevance model failed, using rule fallback", "model", model.Name(), "error", merr)
	}

	score, reasons := ruleScore(pair)
	return Prediction{
		EventID:        eventID,
		UserID:         userID,
		RelevanceScore: score,
		Confidence:     ruleConfidence,
		ModelVersion:   RuleVersion,
		FeaturesUsed:   featureNames(pair),
		Reasoning:      "rule-based weighted sum: " + strings.Join(reasons, ", "),
	}, nil
}

// PairRequest names one pair for batch prediction.
type PairRequest struct {
	EventID string
	UserID  string
}

// PairResult carries a batch item's prediction or its error.
type PairResult struct {
	Request    PairRequest
	Prediction Prediction
	Err        error
}

// PredictBatch scores pairs in windows of BatchWindow concurrent
// predictions. A failing pair is reported in its slot; it does not
// abort the batch.
func (p *Predictor) PredictBatch(ctx context.Context, pairs []PairRequest, useCache bool) []PairResult {
	results := make([]PairResult, len(pairs))
	for start := 0; start < len(pairs); start += BatchWindow {
		end := start + BatchWindow
		if end > len(pairs) {
			end = len(pairs)
		}
		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				pred, err := p.PredictRelevance(ctx, pairs[i].EventID, pairs[i].UserID, useCache)
				results[i] = PairResult{Request: pairs[i], Prediction: pred, Err: err}
			}(i)
		}
		wg.Wait()
	}
	return results
}

func (p *Predictor) pairFeatures(ctx context.Context, eventID, userID string, useCache bool) (features.EventUserPairFeatures, bool, error) {
	cacheID := eventID + ":" + userID

	if useCache && p.store != nil {
		rec, err := p.store.Get(ctx, features.EntityEventUserPair, cacheID, features.FeatureSetVersion)
		if err == nil {
			var pair features.EventUserPairFeatures
			if jerr := json.Unmarshal(rec.Payload, &pair); jerr == nil {
				return pair, true, nil
			}
			logging.Warn("discarding undecodable cached pair features", "entity_id", cacheID)
		}
	}

	pair, err := p.ExtractEventUserPairFeatures(eventID, userID)
	if err != nil {
		return features.EventUserPairFeatures{}, false, err
	}

	if p.store != nil {
		payload, jerr := json.Marshal(pair)
		if jerr == nil {
			if serr := p.store.Upsert(ctx, features.Record{
				EntityType: features.EntityEventUserPair,
				EntityID:   cacheID,
				Version:    features.FeatureSetVersion,
				Payload:    payload,
			}); serr != nil {
				logging.Warn("pair feature cache write failed", "entity_id", cacheID, "error", serr)
			}
		}
	}
	return pair, false, nil
}

// ruleScore is the deterministic fallback. Weights are fixed and the
// history terms are capped so no single feature can dominate.
func ruleScore(f features.EventUserPairFeatures) (float64, []string) {
	score := 0.0
	var reasons []string

	if f.SectorMatch {
		score += weightSectorMatch
		reasons = append(reasons, "sector match")
	}
	if f.RegionMatch {
		score += weightRegionMatch
		reasons = append(reasons, "region match")
	}
	if f.EventTypeMatch {
		score += weightEventTypeMatch
		reasons = append(reasons, "event type match")
	}

	interactions := float64(f.UserInteractionCount) / 50.0
	if interactions > 1 {
		interactions = 1
	}
	if interactions > 0 {
		score += weightInteractions * interactions
		reasons = append(reasons, fmt.Sprintf("interaction history %.2f", interactions))
	}
	if f.UserEngagementRate > 0 {
		score += weightEngagement * record.Clamp01(f.UserEngagementRate)
		reasons = append(reasons, fmt.Sprintf("engagement %.2f", f.UserEngagementRate))
	}
	if f.ContentSimilarity > 0 {
		score += weightContentSim * record.Clamp01(f.ContentSimilarity)
		reasons = append(reasons, "content similarity")
	}
	if f.CollaborativeScore > 0 {
		score += weightCollaborative * record.Clamp01(f.CollaborativeScore)
		reasons = append(reasons, "collaborative score")
	}

	if len(reasons) == 0 {
		reasons = append(reasons, "no matching features")
	}
	return record.Clamp01(score), reasons
}

func featureNames(f features.EventUserPairFeatures) []string {
	return []string{
		"sector_match", "region_match", "event_type_match",
		"user_interaction_count", "user_engagement_rate",
		"content_similarity", "collaborative_score",
	}
}

func containsFold(haystack []string, needle string) bool {
	for _, h := range haystack {
		if strings.EqualFold(h, needle) {
			return true
		}
	}
	return false
}

func containsAny(s string, terms ...string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
