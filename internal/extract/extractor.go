// Package extract implements the fact-extraction stage: raw content in,
// normalized Event records out. This is the only stage permitted to
// call the retrieval service; the Searcher capability is injected here
// and nowhere else.
package extract

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/meridianlabs/meridian/internal/brain"
	"github.com/meridianlabs/meridian/internal/envelope"
	"github.com/meridianlabs/meridian/internal/logging"
	"github.com/meridianlabs/meridian/internal/record"
	"github.com/meridianlabs/meridian/internal/retrieval"
)

// SourceMeta describes where a piece of raw content came from.
type SourceMeta struct {
	Name      string
	URL       string
	Published time.Time
}

// Input pairs raw content with its source for batch extraction.
type Input struct {
	Content string
	Source  SourceMeta
}

// Options tune the search-sourced extraction path.
type Options struct {
	// MinRelevance drops search hits below this score. This is a
	// data-quality filter, not an importance filter: every surviving
	// fact is returned regardless of perceived importance.
	MinRelevance float64

	// MaxResults caps how many search hits are extracted.
	MaxResults int
}

// DefaultOptions returns the stage defaults.
func DefaultOptions() Options {
	return Options{MinRelevance: 0.5, MaxResults: 10}
}

// Extractor turns raw content into Event records via an inference
// provider. It holds the process's only reference to the retrieval
// capability.
type Extractor struct {
	providers *brain.ProviderManager
	searcher  retrieval.Searcher
	opts      Options
}

// New creates an Extractor. searcher may be nil when search-sourced
// extraction is not needed.
func New(providers *brain.ProviderManager, searcher retrieval.Searcher, opts Options) *Extractor {
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultOptions().MaxResults
	}
	return &Extractor{providers: providers, searcher: searcher, opts: opts}
}

// Extract converts one piece of raw content into an Event. Empty
// content, a missing inference provider, or inference output without
// the required fields all fail with nil data and an error string; no
// error is ever raised past the stage boundary.
func (x *Extractor) Extract(ctx context.Context, rawContent string, meta SourceMeta) envelope.Response[*record.Event] {
	timer := envelope.StartTimer()

	if strings.TrimSpace(rawContent) == "" {
		return envelope.Fail[*record.Event]("empty content", timer.Meta())
	}

	provider := x.providers.GetAvailable()
	if provider == nil {
		return envelope.Fail[*record.Event]("no inference provider configured", timer.Meta())
	}

	resp, err := provider.Generate(ctx, brain.Request{
		SystemPrompt: factSystemPrompt,
		UserPrompt:   buildFactPrompt(rawContent, meta),
		MaxTokens:    1024,
		Temperature:  0.1,
	})
	if err != nil {
		logging.Warn("fact extraction inference failed", "source", meta.Name, "error", err)
		return envelope.Fail[*record.Event](fmt.Sprintf("inference failed: %v", err), timer.Meta())
	}

	payload, err := decodeEventPayload(resp.Content)
	if err != nil {
		return envelope.Fail[*record.Event](err.Error(), timer.MetaWithTokens(resp.TokensUsed))
	}
	if payload.EventType == "" || payload.Summary == "" {
		return envelope.Fail[*record.Event]("inference output missing required fields (event_type, summary)", timer.MetaWithTokens(resp.TokensUsed))
	}

	event := record.NewEvent()
	event.EventType = payload.EventType
	event.Headline = payload.Headline
	event.Description = payload.Summary
	event.Date = payload.Date
	event.Location = payload.Location
	event.Actors = payload.Actors
	event.Sectors = payload.Sectors
	event.Confidence = record.ClampScore(payload.Confidence)
	if meta.Name != "" || meta.URL != "" {
		event.Sources = []record.SourceRef{{Name: meta.Name, URL: meta.URL}}
	}
	event.SourceCount = len(event.Sources)
	// Impact and Horizon stay nil: interpretation belongs to synthesis.

	logging.Debug("event extracted",
		"id", event.ID,
		"type", event.EventType,
		"source", meta.Name)

	return envelope.OK(event, timer.MetaWithTokens(resp.TokensUsed))
}

// ExtractMany extracts all inputs independently and concurrently. A
// failing item never aborts the batch: successes are accumulated and
// failures are joined into a single error string.
func (x *Extractor) ExtractMany(ctx context.Context, inputs []Input) envelope.Response[[]*record.Event] {
	timer := envelope.StartTimer()

	if len(inputs) == 0 {
		return envelope.OK([]*record.Event{}, timer.Meta())
	}

	type itemResult struct {
		index int
		resp  envelope.Response[*record.Event]
	}

	results := make([]itemResult, len(inputs))
	var wg sync.WaitGroup
	for i, in := range inputs {
		wg.Add(1)
		go func(i int, in Input) {
			defer wg.Done()
			results[i] = itemResult{index: i, resp: x.Extract(ctx, in.Content, in.Source)}
		}(i, in)
	}
	wg.Wait()

	var events []*record.Event
	var errs []string
	tokens := 0
	for _, r := range results {
		tokens += r.resp.Metadata.TokensUsed
		if r.resp.Failed() {
			errs = append(errs, fmt.Sprintf("item %d: %s", r.index, r.resp.Error))
			continue
		}
		if r.resp.Data != nil {
			events = append(events, r.resp.Data)
		}
	}
	if events == nil {
		events = []*record.Event{}
	}

	out := envelope.OK(events, timer.MetaWithTokens(tokens))
	if len(errs) > 0 {
		out.Error = strings.Join(errs, "; ")
		logging.Warn("batch extraction completed with failures",
			"total", len(inputs),
			"failed", len(errs))
	}
	return out
}

// ExtractFromSearch queries the retrieval service and extracts an Event
// from each sufficiently relevant hit. Hits below MinRelevance are
// discarded as a data-quality measure; all surviving facts are returned
// regardless of perceived importance.
func (x *Extractor) ExtractFromSearch(ctx context.Context, query string) envelope.Response[[]*record.Event] {
	timer := envelope.StartTimer()

	if x.searcher == nil || !x.searcher.Available() {
		return envelope.Fail[[]*record.Event]("no retrieval client configured", timer.Meta())
	}
	if strings.TrimSpace(query) == "" {
		return envelope.Fail[[]*record.Event]("empty query", timer.Meta())
	}

	hits, err := x.searcher.Search(ctx, query, x.opts.MaxResults)
	if err != nil {
		return envelope.Fail[[]*record.Event](fmt.Sprintf("search failed: %v", err), timer.Meta())
	}

	var inputs []Input
	for _, h := range hits {
		if h.RelevanceScore < x.opts.MinRelevance {
			continue
		}
		if len(inputs) >= x.opts.MaxResults {
			break
		}
		inputs = append(inputs, Input{
			Content: h.Title + "\n\n" + h.Content,
			Source: SourceMeta{
				Name:      h.SourceName,
				URL:       h.URL,
				Published: h.Published,
			},
		})
	}

	logging.Debug("search-sourced extraction",
		"query", query,
		"hits", len(hits),
		"kept", len(inputs))

	batch := x.ExtractMany(ctx, inputs)
	batch.Metadata.ProcessingTimeMS = timer.Meta().ProcessingTimeMS
	return batch
}
