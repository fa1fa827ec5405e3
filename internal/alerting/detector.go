// Package alerting evaluates Signals and Events against thresholds and
// produces Alerts with natural-language explanations. The stage always
// degrades gracefully: inference failures fall back to generic
// explanation text, and a best-effort Alert is returned rather than an
// error in every case.
package alerting

import (
	"context"
	"fmt"

	"github.com/meridianlabs/meridian/internal/brain"
	"github.com/meridianlabs/meridian/internal/logging"
	"github.com/meridianlabs/meridian/internal/record"
)

// AlertType indicates how an alert triggers
type AlertType string

const (
	// AlertSignalThreshold fires when a Signal's impact or confidence
	// crosses a configured bound.
	AlertSignalThreshold AlertType = "signal_threshold"

	// AlertCriticalEvent fires when a single Event's assessed impact
	// exceeds a bound.
	AlertCriticalEvent AlertType = "critical_event"

	// AlertTrajectoryChange fires when a Signal's score moves far from
	// a previous snapshot.
	AlertTrajectoryChange AlertType = "trajectory_change"
)

// Thresholds configure alert triggering, all on the 0-100 scale.
type Thresholds struct {
	SignalImpact        int
	SignalConfidence    int
	CriticalEventImpact int
	TrajectoryDelta     int
}

// DefaultThresholds returns the stage defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		SignalImpact:        75,
		SignalConfidence:    70,
		CriticalEventImpact: 85,
		TrajectoryDelta:     15,
	}
}

// Snapshot is a previous score state for trajectory comparison.
type Snapshot struct {
	ImpactScore     int
	ConfidenceScore int
}

// Request describes one alert evaluation.
type Request struct {
	Type   AlertType
	Signal *record.Signal

	// Event and its assessed impact (0-100), for critical_event.
	Event       *record.Event
	EventImpact int

	// Previous score state, for trajectory_change.
	Previous *Snapshot

	// Thresholds override the defaults when non-nil.
	Thresholds *Thresholds
}

// Result is the outcome of one evaluation.
type Result struct {
	Alert             *record.Alert
	Explanation       string
	Context           string
	RecommendedAction string
	Triggered         bool
}

const (
	fallbackExplanation = "Threshold exceeded; detailed explanation unavailable."
	fallbackContext     = "No additional context available."
)

// Detector evaluates alert requests.
type Detector struct {
	providers *brain.ProviderManager
}

// New creates a Detector.
func New(providers *brain.ProviderManager) *Detector {
	return &Detector{providers: providers}
}

// Generate evaluates one request. It never returns an error: on any
// failure it returns a best-effort Result with fallback text so that
// alerting cannot crash the caller.
func (d *Detector) Generate(ctx context.Context, req Request) Result {
	th := DefaultThresholds()
	if req.Thresholds != nil {
		th = *req.Thresholds
	}

	switch req.Type {
	case AlertSignalThreshold:
		return d.signalThreshold(ctx, req, th)
	case AlertCriticalEvent:
		return d.criticalEvent(ctx, req, th)
	case AlertTrajectoryChange:
		return d.trajectoryChange(ctx, req, th)
	default:
		logging.Warn("unknown alert type", "type", req.Type)
		return Result{}
	}
}

func (d *Detector) signalThreshold(ctx context.Context, req Request, th Thresholds) Result {
	sig := req.Signal
	if sig == nil {
		return Result{}
	}

	impactHit := sig.ImpactScore >= th.SignalImpact
	confHit := sig.ConfidenceScore >= th.SignalConfidence
	if !impactHit || !confHit {
		return Result{}
	}

	alert := record.NewAlert()
	alert.Title = fmt.Sprintf("Signal threshold: %s", sig.Title)
	alert.TriggerReason = "signal impact and confidence crossed configured bounds"
	alert.ThresholdExceeded = fmt.Sprintf("impact %d >= %d and confidence %d >= %d",
		sig.ImpactScore, th.SignalImpact, sig.ConfidenceScore, th.SignalConfidence)
	alert.Severity = ClassifySeverity(sig.ImpactScore, sig.ConfidenceScore)
	alert.Impact = sig.ImpactScore
	alert.Confidence = sig.ConfidenceScore
	alert.RelatedSignalIDs = []string{sig.ID}
	alert.RelatedEventIDs = append([]string(nil), sig.RelatedEventIDs...)

	prompt := fmt.Sprintf(
		"A monitored signal crossed its alert thresholds.\nTitle: %s\nSummary: %s\nImpact: %d/100, Confidence: %d/100.",
		sig.Title, sig.Summary, sig.ImpactScore, sig.ConfidenceScore)

	return d.finish(ctx, alert, prompt)
}

func (d *Detector) criticalEvent(ctx context.Context, req Request, th Thresholds) Result {
	ev := req.Event
	if ev == nil {
		return Result{}
	}

	impact := record.ClampScore(req.EventImpact)
	if impact < th.CriticalEventImpact {
		return Result{}
	}

	alert := record.NewAlert()
	alert.Title = fmt.Sprintf("Critical event: %s", ev.Headline)
	alert.TriggerReason = "single event assessed above the critical impact bound"
	alert.ThresholdExceeded = fmt.Sprintf("event impact %d >= %d", impact, th.CriticalEventImpact)
	alert.Severity = ClassifySeverity(impact, ev.Confidence)
	alert.Impact = impact
	alert.Confidence = ev.Confidence
	alert.RelatedEventIDs = []string{ev.ID}

	prompt := fmt.Sprintf(
		"A single event was assessed as critical.\nHeadline: %s\nWhat happened: %s\nLocation: %s\nAssessed impact: %d/100.",
		ev.Headline, ev.Description, ev.Location, impact)

	return d.finish(ctx, alert, prompt)
}

func (d *Detector) trajectoryChange(ctx context.Context, req Request, th Thresholds) Result {
	sig := req.Signal
	if sig == nil || req.Previous == nil {
		return Result{}
	}

	delta := sig.ImpactScore - req.Previous.ImpactScore
	if delta < 0 {
		delta = -delta
	}
	if delta < th.TrajectoryDelta {
		return Result{}
	}

	alert := record.NewAlert()
	alert.Title = fmt.Sprintf("Trajectory change: %s", sig.Title)
	alert.TriggerReason = "signal impact moved sharply from its previous state"
	alert.ThresholdExceeded = fmt.Sprintf("impact moved %d -> %d (|delta| %d >= %d)",
		req.Previous.ImpactScore, sig.ImpactScore, delta, th.TrajectoryDelta)
	alert.Severity = ClassifySeverity(sig.ImpactScore, sig.ConfidenceScore)
	alert.Impact = sig.ImpactScore
	alert.Confidence = sig.ConfidenceScore
	alert.RelatedSignalIDs = []string{sig.ID}
	alert.RelatedEventIDs = append([]string(nil), sig.RelatedEventIDs...)

	prompt := fmt.Sprintf(
		"A monitored signal changed trajectory.\nTitle: %s\nImpact moved from %d to %d.\nConfidence: %d/100.",
		sig.Title, req.Previous.ImpactScore, sig.ImpactScore, sig.ConfidenceScore)

	return d.finish(ctx, alert, prompt)
}

// finish requests explanation and context as two independent inference
// calls; a failure in one does not block the other and both degrade to
// generic fallback strings.
func (d *Detector) finish(ctx context.Context, alert *record.Alert, prompt string) Result {
	explanation := d.generate(ctx, prompt+"\n\nIn at most 100 words, explain why this alert fired and what it means.", fallbackExplanation)
	background := d.generate(ctx, prompt+"\n\nIn at most 80 words, give additional background context for this alert.", fallbackContext)

	return Result{
		Alert:             alert,
		Explanation:       explanation,
		Context:           background,
		RecommendedAction: recommendedAction(alert.Severity),
		Triggered:         true,
	}
}

func (d *Detector) generate(ctx context.Context, prompt, fallback string) string {
	if d.providers == nil {
		return fallback
	}
	provider := d.providers.GetAvailable()
	if provider == nil {
		return fallback
	}
	resp, err := provider.Generate(ctx, brain.Request{
		UserPrompt:  prompt,
		MaxTokens:   256,
		Temperature: 0.3,
	})
	if err != nil || resp.Content == "" {
		logging.Warn("alert explanation inference failed, using fallback", "error", err)
		return fallback
	}
	return resp.Content
}

// ClassifySeverity is rule-based and computed locally, never by the
// inference service, so severity stays deterministic and auditable.
func ClassifySeverity(impact, confidence int) record.Severity {
	switch {
	case impact >= 90 || confidence >= 90:
		return record.SeverityCritical
	case impact >= 80 || confidence >= 80:
		return record.SeverityHigh
	default:
		return record.SeverityModerate
	}
}

func recommendedAction(sev record.Severity) string {
	switch sev {
	case record.SeverityCritical:
		return "Escalate immediately and review exposed positions."
	case record.SeverityHigh:
		return "Review within the hour and monitor for follow-up signals."
	default:
		return "Monitor; no immediate action required."
	}
}
