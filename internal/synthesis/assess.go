package synthesis

import (
	"fmt"
	"math"

	"github.com/meridianlabs/meridian/internal/record"
)

// Assess produces deterministic assessments for events that have no
// upstream scoring attached. Impact is a bounded heuristic over
// corroboration and breadth; confidence comes straight from the
// event's data-quality score. Events are never mutated.
func Assess(events []*record.Event) []Assessment {
	if len(events) == 0 {
		return nil
	}

	out := make([]Assessment, 0, len(events))
	for _, e := range events {
		if e == nil {
			continue
		}

		// Corroboration: more independent sources, higher impact.
		corroboration := math.Min(1.0, float64(e.SourceCount)/4.0)

		// Breadth: events touching more actors and sectors carry more
		// weight, with diminishing returns.
		actorScore := math.Min(1.0, float64(len(e.Actors))/5.0)
		sectorScore := math.Min(1.0, float64(len(e.Sectors))/3.0)

		impact := 0.5*corroboration + 0.3*sectorScore + 0.2*actorScore

		out = append(out, Assessment{
			Event:        e,
			Impact:       record.Clamp01(impact),
			Confidence:   record.Clamp01(float64(e.Confidence) / 100.0),
			Horizon:      "days",
			WhyItMatters: fmt.Sprintf("%s activity reported in %s.", e.EventType, orUnknown(e.Location)),
		})
	}
	return out
}
