// Package record defines the typed records produced by the synthesis
// pipeline: Events (factual, non-interpretive), Signals (scored,
// synthesized insights), and Alerts (triggered notifications).
package record

import (
	"time"

	"github.com/google/uuid"
)

// SourceRef points at a source that corroborates a record.
type SourceRef struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Event is a factual record extracted from raw content.
//
// Impact and Horizon are always nil at creation. Extraction never sets
// them; a downstream Signal derives values from member events without
// mutating the Event itself. Confidence measures data quality only,
// never business importance.
type Event struct {
	ID          string      `json:"id"`
	Type        string      `json:"type"` // always "event"
	Headline    string      `json:"headline"`
	Description string      `json:"description"`
	Date        string      `json:"date"`
	Location    string      `json:"location"`
	Actors      []string    `json:"actors"`
	Sectors     []string    `json:"sectors"`
	EventType   string      `json:"event_type"`
	Sources     []SourceRef `json:"sources"`
	Impact      *float64    `json:"impact"`
	Horizon     *string     `json:"horizon"`
	Confidence  int         `json:"confidence"` // 0-100
	SourceCount int         `json:"source_count"`
	LastUpdated time.Time   `json:"last_updated"`
}

// NewEvent returns an Event with identity and timestamps assigned.
// Impact and Horizon start nil and stay nil for the Event's lifetime.
func NewEvent() *Event {
	return &Event{
		ID:          uuid.NewString(),
		Type:        "event",
		LastUpdated: time.Now().UTC(),
	}
}

// PrimarySector returns the first sector, or "unknown" when none is set.
func (e *Event) PrimarySector() string {
	if len(e.Sectors) > 0 && e.Sectors[0] != "" {
		return e.Sectors[0]
	}
	return UnknownKey
}

// UnknownKey is the documented sentinel used when a grouping field is
// missing, so ungrouped events still form a bucket.
const UnknownKey = "unknown"

// Scope describes the blast radius of a Signal.
type Scope string

const (
	ScopeGlobal    Scope = "global"
	ScopeRegional  Scope = "regional"
	ScopeSectorial Scope = "sectorial"
	ScopeAsset     Scope = "asset"
	ScopeActor     Scope = "actor"
)

// TimeHorizon is the ordinal time scale attached to Signals.
type TimeHorizon string

const (
	HorizonImmediate TimeHorizon = "immediate"
	HorizonShort     TimeHorizon = "short"
	HorizonMedium    TimeHorizon = "medium"
	HorizonLong      TimeHorizon = "long"
)

// Signal is a scored insight synthesized from one or more Events.
// Signals are never mutated after creation; a re-run produces a new ID.
type Signal struct {
	ID              string      `json:"id"`
	Type            string      `json:"type"` // always "signal"
	Scope           Scope       `json:"scope"`
	ImpactScore     int         `json:"impact_score"`     // 0-100
	ConfidenceScore int         `json:"confidence_score"` // 0-100
	TimeHorizon     TimeHorizon `json:"time_horizon"`
	SourceCount     int         `json:"source_count"`
	RelatedEventIDs []string    `json:"related_event_ids"` // non-empty, must resolve
	Title           string      `json:"title"`
	Summary         string      `json:"summary"` // <= 300 chars
	WhyItMatters    string      `json:"why_it_matters"`
	CreatedAt       time.Time   `json:"created_at"`
}

// NewSignal returns a Signal with identity and timestamps assigned.
func NewSignal() *Signal {
	return &Signal{
		ID:        uuid.NewString(),
		Type:      "signal",
		CreatedAt: time.Now().UTC(),
	}
}

// Severity classifies alert urgency.
type Severity string

const (
	SeverityModerate Severity = "moderate"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Alert is a stateless triggered notification, one per evaluation.
type Alert struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	TriggerReason     string    `json:"trigger_reason"`
	ThresholdExceeded string    `json:"threshold_exceeded"`
	Severity          Severity  `json:"severity"`
	Impact            int       `json:"impact"`     // 0-100
	Confidence        int       `json:"confidence"` // 0-100
	RelatedSignalIDs  []string  `json:"related_signal_ids"`
	RelatedEventIDs   []string  `json:"related_event_ids"`
	LastUpdated       time.Time `json:"last_updated"`
}

// NewAlert returns an Alert with identity and timestamps assigned.
func NewAlert() *Alert {
	return &Alert{
		ID:          uuid.NewString(),
		LastUpdated: time.Now().UTC(),
	}
}

// ClampScore constrains a 0-100 integer score to its documented range.
func ClampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Clamp01 constrains a unit-interval value to [0, 1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// MaxSummaryLen bounds Signal summaries.
const MaxSummaryLen = 300

// Truncate shortens s to at most maxLen runes, appending "..." when cut.
func Truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
