package alerting

import (
	"context"
	"fmt"
	"testing"

	"github.com/meridianlabs/meridian/internal/brain"
	"github.com/meridianlabs/meridian/internal/record"
)

type stubProvider struct {
	content string
	err     error
	calls   int
}

func (s *stubProvider) Name() string    { return "stub" }
func (s *stubProvider) Available() bool { return true }

func (s *stubProvider) Generate(_ context.Context, _ brain.Request) (brain.Response, error) {
	s.calls++
	if s.err != nil {
		return brain.Response{}, s.err
	}
	return brain.Response{Content: s.content}, nil
}

func testSignal(impact, confidence int) *record.Signal {
	sig := record.NewSignal()
	sig.Title = "Energy: sanction"
	sig.Summary = "2 related event(s)."
	sig.ImpactScore = impact
	sig.ConfidenceScore = confidence
	sig.RelatedEventIDs = []string{"ev-1", "ev-2"}
	return sig
}

func TestClassifySeverity(t *testing.T) {
	tests := []struct {
		impact     int
		confidence int
		want       record.Severity
	}{
		{95, 50, record.SeverityCritical},
		{50, 92, record.SeverityCritical},
		{90, 90, record.SeverityCritical},
		{85, 50, record.SeverityHigh},
		{50, 80, record.SeverityHigh},
		{79, 79, record.SeverityModerate},
		{0, 0, record.SeverityModerate},
	}
	for _, tt := range tests {
		if got := ClassifySeverity(tt.impact, tt.confidence); got != tt.want {
			t.Errorf("ClassifySeverity(%d, %d) = %q, want %q", tt.impact, tt.confidence, got, tt.want)
		}
	}
}

func TestSignalThresholdBelowBoundDoesNotTrigger(t *testing.T) {
	d := New(nil)
	result := d.Generate(context.Background(), Request{
		Type:   AlertSignalThreshold,
		Signal: testSignal(60, 90),
	})
	if result.Triggered {
		t.Error("sub-threshold signal must not trigger")
	}
	if result.Alert != nil {
		t.Error("untriggered result must not carry an alert")
	}
}

func TestSignalThresholdTriggersWithFallbacks(t *testing.T) {
	// No provider configured: both inference calls degrade to fallback
	// text, and the alert still comes back.
	d := New(brain.NewProviderManager())
	result := d.Generate(context.Background(), Request{
		Type:   AlertSignalThreshold,
		Signal: testSignal(85, 75),
	})

	if !result.Triggered {
		t.Fatal("expected the alert to trigger")
	}
	if result.Alert == nil {
		t.Fatal("expected an alert record")
	}
	if result.Explanation != fallbackExplanation {
		t.Errorf("expected fallback explanation, got %q", result.Explanation)
	}
	if result.Context != fallbackContext {
		t.Errorf("expected fallback context, got %q", result.Context)
	}
	if result.Alert.Severity != record.SeverityHigh {
		t.Errorf("expected high severity, got %q", result.Alert.Severity)
	}
	if result.RecommendedAction == "" {
		t.Error("expected a recommended action")
	}
}

func TestExplanationAndContextAreIndependent(t *testing.T) {
	provider := &stubProvider{content: "model text"}
	pm := brain.NewProviderManager()
	pm.AddProvider(provider)

	d := New(pm)
	result := d.Generate(context.Background(), Request{
		Type:   AlertSignalThreshold,
		Signal: testSignal(90, 90),
	})

	if provider.calls != 2 {
		t.Errorf("expected two independent inference calls, got %d", provider.calls)
	}
	if result.Explanation != "model text" || result.Context != "model text" {
		t.Error("expected model text for both explanation and context")
	}
}

func TestInferenceFailureDegradesNotPropagates(t *testing.T) {
	provider := &stubProvider{err: fmt.Errorf("service down")}
	pm := brain.NewProviderManager()
	pm.AddProvider(provider)

	d := New(pm)
	result := d.Generate(context.Background(), Request{
		Type:   AlertSignalThreshold,
		Signal: testSignal(95, 95),
	})

	if !result.Triggered {
		t.Fatal("inference failure must not block the alert")
	}
	if result.Explanation != fallbackExplanation || result.Context != fallbackContext {
		t.Error("expected fallback strings on inference failure")
	}
}

func TestCriticalEvent(t *testing.T) {
	ev := record.NewEvent()
	ev.Headline = "Refinery fire"
	ev.Confidence = 70

	d := New(nil)

	result := d.Generate(context.Background(), Request{
		Type:        AlertCriticalEvent,
		Event:       ev,
		EventImpact: 90,
	})
	if !result.Triggered {
		t.Fatal("expected critical event to trigger at impact 90")
	}
	if result.Alert.Severity != record.SeverityCritical {
		t.Errorf("expected critical severity, got %q", result.Alert.Severity)
	}
	if len(result.Alert.RelatedEventIDs) != 1 || result.Alert.RelatedEventIDs[0] != ev.ID {
		t.Error("alert must reference the triggering event")
	}

	quiet := d.Generate(context.Background(), Request{
		Type:        AlertCriticalEvent,
		Event:       ev,
		EventImpact: 60,
	})
	if quiet.Triggered {
		t.Error("impact 60 must not trigger with the default bound of 85")
	}
}

func TestTrajectoryChange(t *testing.T) {
	d := New(nil)
	sig := testSignal(70, 70)

	result := d.Generate(context.Background(), Request{
		Type:     AlertTrajectoryChange,
		Signal:   sig,
		Previous: &Snapshot{ImpactScore: 40, ConfidenceScore: 70},
	})
	if !result.Triggered {
		t.Fatal("a 30-point move must trigger with the default delta of 15")
	}

	small := d.Generate(context.Background(), Request{
		Type:     AlertTrajectoryChange,
		Signal:   sig,
		Previous: &Snapshot{ImpactScore: 65, ConfidenceScore: 70},
	})
	if small.Triggered {
		t.Error("a 5-point move must not trigger")
	}

	// Downward moves count too.
	down := d.Generate(context.Background(), Request{
		Type:     AlertTrajectoryChange,
		Signal:   testSignal(30, 70),
		Previous: &Snapshot{ImpactScore: 70, ConfidenceScore: 70},
	})
	if !down.Triggered {
		t.Error("a sharp downward move must trigger")
	}
}

func TestCustomThresholds(t *testing.T) {
	d := New(nil)
	th := Thresholds{SignalImpact: 50, SignalConfidence: 50, CriticalEventImpact: 85, TrajectoryDelta: 15}

	result := d.Generate(context.Background(), Request{
		Type:       AlertSignalThreshold,
		Signal:     testSignal(60, 55),
		Thresholds: &th,
	})
	if !result.Triggered {
		t.Error("custom thresholds must override the defaults")
	}
}

func TestMissingSubjectsDoNotPanic(t *testing.T) {
	d := New(nil)
	for _, req := range []Request{
		{Type: AlertSignalThreshold},
		{Type: AlertCriticalEvent},
		{Type: AlertTrajectoryChange, Signal: testSignal(90, 90)}, // no previous
		{Type: "bogus"},
	} {
		if result := d.Generate(context.Background(), req); result.Triggered {
			t.Errorf("request %+v must not trigger", req.Type)
		}
	}
}
