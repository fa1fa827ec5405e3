// Package synthesis groups extracted Events and synthesizes them into
// scored Signal records. The stage is pure transformation over
// already-extracted facts: it never issues outbound calls to retrieval
// or inference services, and treating it otherwise is a correctness
// bug, not a feature.
package synthesis

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/meridianlabs/meridian/internal/envelope"
	"github.com/meridianlabs/meridian/internal/logging"
	"github.com/meridianlabs/meridian/internal/record"
)

// Assessment attaches interpretive scores to an Event without mutating
// it. Impact and Confidence are on the 0-1 input scale; Horizon is the
// causal-chain horizon label ("hours", "days", "weeks", ...).
type Assessment struct {
	Event        *record.Event
	Impact       float64 // 0-1
	Confidence   float64 // 0-1
	Horizon      string
	WhyItMatters string
}

// Preferences filter synthesized Signals by user-supplied minimums,
// expressed on the 0-1 scale and compared against the 0-100 Signal
// scores.
type Preferences struct {
	MinImpact     float64
	MinConfidence float64
}

// Thresholds for promoting a single-event group to a Signal, on the
// 0-1 input scale.
const (
	singletonMinImpact     = 0.7
	singletonMinConfidence = 0.7
)

// Synthesizer builds Signals from assessed Events.
type Synthesizer struct{}

// New creates a Synthesizer.
func New() *Synthesizer {
	return &Synthesizer{}
}

// groupKey is the composite similarity key. Missing fields use the
// "unknown" sentinel so ungrouped events still form a bucket.
type groupKey struct {
	Sector    string
	Region    string
	EventType string
}

func keyFor(a Assessment) groupKey {
	return groupKey{
		Sector:    orUnknown(a.Event.PrimarySector()),
		Region:    orUnknown(a.Event.Location),
		EventType: orUnknown(a.Event.EventType),
	}
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return record.UnknownKey
	}
	return s
}

// Synthesize groups assessments by (sector, region, event_type) and
// produces Signals. Groups of two or more always synthesize; singletons
// are promoted only when both scores clear the promotion thresholds.
// Empty input returns an empty slice with no error.
func (s *Synthesizer) Synthesize(assessments []Assessment, prefs *Preferences) envelope.Response[[]record.Signal] {
	timer := envelope.StartTimer()

	if len(assessments) == 0 {
		return envelope.OK([]record.Signal{}, timer.Meta())
	}

	// Group while preserving first-encounter order so the final sort
	// stays stable with respect to input order.
	groups := make(map[groupKey][]Assessment)
	var order []groupKey
	for _, a := range assessments {
		if a.Event == nil {
			continue
		}
		k := keyFor(a)
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], a)
	}

	var signals []record.Signal
	for _, k := range order {
		members := groups[k]
		if len(members) == 1 {
			m := members[0]
			if m.Impact < singletonMinImpact || m.Confidence < singletonMinConfidence {
				continue
			}
		}
		signals = append(signals, s.buildSignal(k, members))
	}

	if prefs != nil {
		signals = applyPreferences(signals, *prefs)
	}

	sort.SliceStable(signals, func(i, j int) bool {
		return signals[i].ImpactScore*signals[i].ConfidenceScore >
			signals[j].ImpactScore*signals[j].ConfidenceScore
	})

	if signals == nil {
		signals = []record.Signal{}
	}

	logging.Debug("synthesis completed",
		"events", len(assessments),
		"groups", len(order),
		"signals", len(signals))

	return envelope.OK(signals, timer.Meta())
}

// buildSignal synthesizes one Signal from a group's members. Scores are
// the arithmetic mean of member scores, scaled to 0-100.
func (s *Synthesizer) buildSignal(k groupKey, members []Assessment) record.Signal {
	var impactSum, confSum float64
	ids := make([]string, 0, len(members))
	sourceCount := 0
	for _, m := range members {
		impactSum += record.Clamp01(m.Impact)
		confSum += record.Clamp01(m.Confidence)
		ids = append(ids, m.Event.ID)
		sourceCount += m.Event.SourceCount
	}
	n := float64(len(members))

	primary := members[0]

	sig := record.NewSignal()
	sig.Scope = scopeFor(k)
	sig.ImpactScore = record.ClampScore(int(math.Round(impactSum / n * 100)))
	sig.ConfidenceScore = record.ClampScore(int(math.Round(confSum / n * 100)))
	sig.TimeHorizon = mapHorizon(primary.Horizon)
	sig.SourceCount = sourceCount
	sig.RelatedEventIDs = ids
	sig.Title = buildTitle(k)
	sig.Summary = record.Truncate(
		fmt.Sprintf("%d related event(s). %s", len(members), primary.WhyItMatters),
		record.MaxSummaryLen)
	sig.WhyItMatters = primary.WhyItMatters
	return *sig
}

func buildTitle(k groupKey) string {
	sector := k.Sector
	if sector == record.UnknownKey {
		sector = "Cross-sector"
	}
	eventType := strings.ReplaceAll(k.EventType, "_", " ")
	if k.EventType == record.UnknownKey {
		eventType = "activity"
	}
	return fmt.Sprintf("%s: %s", capitalize(sector), eventType)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// scopeFor derives the Signal scope from the grouping key.
func scopeFor(k groupKey) record.Scope {
	switch {
	case k.Region != record.UnknownKey && k.Sector != record.UnknownKey:
		return record.ScopeRegional
	case k.Region != record.UnknownKey:
		return record.ScopeRegional
	case k.Sector != record.UnknownKey:
		return record.ScopeSectorial
	default:
		return record.ScopeGlobal
	}
}

// mapHorizon maps a causal-chain horizon label onto the ordinal scale.
func mapHorizon(label string) record.TimeHorizon {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "hours":
		return record.HorizonImmediate
	case "days":
		return record.HorizonShort
	case "weeks":
		return record.HorizonMedium
	default:
		return record.HorizonLong
	}
}

// applyPreferences drops Signals whose scores fall below the
// user-supplied minimums (0-1 inputs compared against 0-100 scores).
func applyPreferences(signals []record.Signal, prefs Preferences) []record.Signal {
	var kept []record.Signal
	for _, sig := range signals {
		if float64(sig.ImpactScore) < prefs.MinImpact*100 {
			continue
		}
		if float64(sig.ConfidenceScore) < prefs.MinConfidence*100 {
			continue
		}
		kept = append(kept, sig)
	}
	return kept
}
