package pressure

import (
	"context"
	"fmt"
	"strings"

	"github.com/meridianlabs/meridian/internal/brain"
	"github.com/meridianlabs/meridian/internal/envelope"
	"github.com/meridianlabs/meridian/internal/logging"
	"github.com/meridianlabs/meridian/internal/record"
)

// maxRelatedEvents bounds how many related-event summaries are embedded
// in the prompt.
const maxRelatedEvents = 5

const systemPrompt = `You are a risk analysis service. You convert a synthesized signal into a strictly structured pressure-features object. Respond STRICTLY with a single valid JSON object matching the requested schema and nothing else.`

// Extractor produces schema-validated PressureFeatures from Signals.
type Extractor struct {
	providers *brain.ProviderManager
}

// New creates an Extractor.
func New(providers *brain.ProviderManager) *Extractor {
	return &Extractor{providers: providers}
}

// Extract converts a Signal plus its related Events into a validated
// PressureFeatures record. Validation failure triggers exactly one
// repair retry enumerating every validation error; if the retry also
// fails validation, the failure is logged and nil data is returned. An
// invalid record is never returned.
func (x *Extractor) Extract(ctx context.Context, sig *record.Signal, relatedEvents []*record.Event) envelope.Response[*PressureFeatures] {
	timer := envelope.StartTimer()

	if sig == nil {
		return envelope.Fail[*PressureFeatures]("nil signal", timer.Meta())
	}

	provider := x.providers.GetAvailable()
	if provider == nil {
		return envelope.Fail[*PressureFeatures]("no inference provider configured", timer.Meta())
	}

	prompt := buildPrompt(sig, relatedEvents)
	tokens := 0

	features, errs, used, failMsg := x.attempt(ctx, provider, prompt)
	tokens += used
	if failMsg != "" {
		return envelope.Fail[*PressureFeatures](failMsg, timer.MetaWithTokens(tokens))
	}
	if len(errs) == 0 {
		return envelope.OK(features, timer.MetaWithTokens(tokens))
	}

	// Exactly one repair retry: enumerate every validation error and
	// ask for a corrected object. No backoff, no second retry.
	logging.Warn("pressure features failed validation, retrying once",
		"signal", sig.ID,
		"errors", len(errs))

	repairPrompt := buildRepairPrompt(prompt, errs)
	features, errs, used, failMsg = x.attempt(ctx, provider, repairPrompt)
	tokens += used
	if failMsg != "" {
		return envelope.Fail[*PressureFeatures](failMsg, timer.MetaWithTokens(tokens))
	}
	if len(errs) == 0 {
		return envelope.OK(features, timer.MetaWithTokens(tokens))
	}

	logging.Error("pressure features failed validation after repair retry",
		"signal", sig.ID,
		"errors", strings.Join(errs, "; "))
	return envelope.Fail[*PressureFeatures](
		fmt.Sprintf("validation failed after retry: %s", strings.Join(errs, "; ")),
		timer.MetaWithTokens(tokens))
}

// attempt runs one inference call and the unwrap-then-validate
// procedure. It returns either a feature record with its validation
// errors (empty when valid), or a terminal failure message.
func (x *Extractor) attempt(ctx context.Context, provider brain.Provider, prompt string) (*PressureFeatures, []string, int, string) {
	resp, err := provider.Generate(ctx, brain.Request{
		SystemPrompt: systemPrompt,
		UserPrompt:   prompt,
		MaxTokens:    1024,
		Temperature:  0.1,
	})
	if err != nil {
		return nil, nil, 0, fmt.Sprintf("inference failed: %v", err)
	}

	features, err := decodeFeatures(resp.Content)
	if err != nil {
		// Undecodable output counts as a validation failure so the
		// repair path can still run.
		return nil, []string{err.Error()}, resp.TokensUsed, ""
	}

	return features, features.Validate(), resp.TokensUsed, ""
}

func buildPrompt(sig *record.Signal, relatedEvents []*record.Event) string {
	var b strings.Builder

	b.WriteString("Analyze the following signal and produce a pressure-features object.\n\n")
	fmt.Fprintf(&b, "Signal title: %s\n", sig.Title)
	fmt.Fprintf(&b, "Summary: %s\n", sig.Summary)
	fmt.Fprintf(&b, "Why it matters: %s\n", sig.WhyItMatters)

	n := 0
	for _, ev := range relatedEvents {
		if ev == nil {
			continue
		}
		if n == 0 {
			b.WriteString("\nRelated events:\n")
		}
		fmt.Fprintf(&b, "- %s: %s\n", ev.Headline, ev.Description)
		n++
		if n >= maxRelatedEvents {
			break
		}
	}

	b.WriteString("\nRespond with JSON using this schema:\n")
	b.WriteString(`{
  "system": "Security|Maritime|Energy|Industrial|Monetary",
  "pressure_vector": "short label for the pressure mechanism",
  "impact_order": 1,
  "time_horizon_days": 30,
  "evidence_strength": 0.0,
  "novelty": 0.0,
  "transmission_channels": ["1 to 5 entries"],
  "exposed_entities": ["up to 10 entries"],
  "uncertainties": ["1 to 3 entries"],
  "citations": ["urls"]
}`)

	return b.String()
}

// buildRepairPrompt asks for a corrected object, enumerating every
// validation error from the first attempt.
func buildRepairPrompt(originalPrompt string, errs []string) string {
	var b strings.Builder
	b.WriteString("Your previous response failed schema validation with these errors:\n")
	for _, e := range errs {
		fmt.Fprintf(&b, "- %s\n", e)
	}
	b.WriteString("\nReturn a corrected JSON object that fixes every error. ")
	b.WriteString("Respond with the JSON object only.\n\n")
	b.WriteString("Original task:\n")
	b.WriteString(originalPrompt)
	return b.String()
}
