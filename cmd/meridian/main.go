// Command meridian runs the intelligence synthesis pipeline: it pulls
// raw content, extracts fact records, synthesizes signals, detects
// alerts, and derives structured pressure features.
//
// Usage:
//
//	meridian run                 Run the pipeline over configured sources
//	meridian search <query>      Run the pipeline over search results
//	meridian relevance <event-id> <user-id>
//	                             Score one event/user pair
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/meridianlabs/meridian/internal/alerting"
	"github.com/meridianlabs/meridian/internal/brain"
	"github.com/meridianlabs/meridian/internal/config"
	"github.com/meridianlabs/meridian/internal/extract"
	"github.com/meridianlabs/meridian/internal/features"
	"github.com/meridianlabs/meridian/internal/intake"
	"github.com/meridianlabs/meridian/internal/logging"
	"github.com/meridianlabs/meridian/internal/pressure"
	"github.com/meridianlabs/meridian/internal/record"
	"github.com/meridianlabs/meridian/internal/relevance"
	"github.com/meridianlabs/meridian/internal/retrieval"
	"github.com/meridianlabs/meridian/internal/synthesis"
)

const usage = `meridian - intelligence synthesis pipeline

Usage:
  meridian <command> [flags]

Commands:
  run         Pull configured sources and run the full pipeline
  search      Run the pipeline over retrieval results for a query
  relevance   Score one event/user pair

Environment:
  ANTHROPIC_API_KEY      Claude inference key
  OPENAI_API_KEY         OpenAI inference key
  TAVILY_API_KEY         Retrieval/search key
  MERIDIAN_POSTGRES_DSN  Use PostgreSQL for the feature store

Run 'meridian <command> -h' for command-specific help.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(0)
	}

	cmd := os.Args[1]
	os.Args = os.Args[1:]

	switch cmd {
	case "run":
		runPipeline()
	case "search":
		runSearch()
	case "relevance":
		runRelevance()
	case "-h", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "meridian: unknown command %q\n\n", cmd)
		fmt.Print(usage)
		os.Exit(1)
	}
}

// setup loads env + config and initializes logging. The retrieval
// client is returned separately so callers hand it only to the
// extraction stage; no other stage receives a reference.
func setup(configPath string) (*config.Config, *brain.ProviderManager, retrieval.Searcher) {
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "meridian: load config: %v\n", err)
		os.Exit(1)
	}

	if err := logging.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "meridian: init logging: %v\n", err)
		os.Exit(1)
	}

	providers := brain.NewProviderManager()
	if cfg.Models.Claude.Enabled && cfg.Models.Claude.APIKey != "" {
		providers.AddProvider(brain.Throttle(brain.NewClaudeProvider(cfg.Models.Claude.APIKey, cfg.Models.Claude.Model), time.Second))
	}
	if cfg.Models.OpenAI.Enabled && cfg.Models.OpenAI.APIKey != "" {
		providers.AddProvider(brain.Throttle(brain.NewOpenAIProvider(cfg.Models.OpenAI.APIKey, cfg.Models.OpenAI.Model), time.Second))
	}
	if cfg.Models.Ollama.Enabled {
		providers.AddProvider(brain.NewOllamaProvider(cfg.Models.Ollama.Endpoint, cfg.Models.Ollama.Model))
	}

	var searcher retrieval.Searcher
	if cfg.Retrieval.APIKey != "" {
		searcher = retrieval.NewClient(cfg.Retrieval.APIKey, cfg.Retrieval.Endpoint)
	}

	return cfg, providers, searcher
}

func openStore(cfg *config.Config) features.Store {
	switch cfg.Store.Backend {
	case "postgres":
		store, err := features.OpenPostgres(context.Background(), cfg.Store.PostgresDSN)
		if err != nil {
			logging.Error("open postgres feature store", "error", err)
			os.Exit(1)
		}
		return store
	case "memory":
		return features.NewMemoryStore()
	default:
		path := cfg.Store.SQLitePath
		if path == "" {
			path = config.DefaultStorePath()
		}
		store, err := features.OpenSQLite(path)
		if err != nil {
			logging.Error("open sqlite feature store", "error", err)
			os.Exit(1)
		}
		return store
	}
}

func runPipeline() {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path (JSON or YAML)")
	timeout := fs.Duration("timeout", 5*time.Minute, "overall pipeline timeout")
	fs.Parse(os.Args[1:])

	cfg, providers, searcher := setup(*configPath)
	defer logging.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	extractor := extract.New(providers, searcher, extract.DefaultOptions())

	var inputs []extract.Input
	for _, feed := range cfg.Intake.RSS {
		src := intake.NewRSSSource(feed.Name, feed.URL)
		items, err := src.Fetch(ctx)
		if err != nil {
			logging.Warn("feed fetch failed", "feed", feed.Name, "error", err)
			continue
		}
		inputs = append(inputs, items...)
	}

	stream := make(chan extract.Input, 64)
	if intake.StartKafka(ctx, cfg.Intake.Kafka, stream) {
		// Drain queued messages within a short window so a one-shot run
		// still picks them up.
		drain := time.After(5 * time.Second)
	loop:
		for {
			select {
			case in := <-stream:
				inputs = append(inputs, in)
			case <-drain:
				break loop
			case <-ctx.Done():
				break loop
			}
		}
	}

	if len(inputs) == 0 {
		logging.Info("no intake content, nothing to do")
		return
	}

	resp := extractor.ExtractMany(ctx, inputs)
	if resp.Error != "" {
		logging.Warn("partial extraction failures", "error", resp.Error)
	}
	logging.Info("extraction complete", "events", len(resp.Data), "inputs", len(inputs))

	synthesizeAndReport(ctx, cfg, providers, resp.Data)
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path (JSON or YAML)")
	timeout := fs.Duration("timeout", 2*time.Minute, "overall timeout")
	fs.Parse(os.Args[1:])
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: meridian search <query>")
		os.Exit(1)
	}
	query := fs.Arg(0)

	cfg, providers, searcher := setup(*configPath)
	defer logging.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	extractor := extract.New(providers, searcher, extract.DefaultOptions())
	resp := extractor.ExtractFromSearch(ctx, query)
	if resp.Error != "" && len(resp.Data) == 0 {
		logging.Error("search extraction failed", "error", resp.Error)
		os.Exit(1)
	}
	logging.Info("search extraction complete", "events", len(resp.Data), "query", query)

	synthesizeAndReport(ctx, cfg, providers, resp.Data)
}

func runRelevance() {
	fs := flag.NewFlagSet("relevance", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path (JSON or YAML)")
	fs.Parse(os.Args[1:])
	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "usage: meridian relevance <event-id> <user-id>")
		os.Exit(1)
	}

	cfg, _, _ := setup(*configPath)
	defer logging.Close()

	store := openStore(cfg)
	defer store.Close()

	predictor := relevance.NewPredictor(store)
	pred, err := predictor.PredictRelevance(context.Background(), fs.Arg(0), fs.Arg(1), true)
	if err != nil {
		logging.Error("relevance prediction failed", "error", err)
		os.Exit(1)
	}
	printJSON(pred)
}

func synthesizeAndReport(ctx context.Context, cfg *config.Config, providers *brain.ProviderManager, events []*record.Event) {
	assessments := synthesis.Assess(events)
	prefs := &synthesis.Preferences{
		MinImpact:     cfg.Synthesis.MinImpact,
		MinConfidence: cfg.Synthesis.MinConfidence,
	}

	sigResp := synthesis.New().Synthesize(assessments, prefs)
	if sigResp.Error != "" {
		logging.Error("synthesis failed", "error", sigResp.Error)
		return
	}
	signals := sigResp.Data
	logging.Info("synthesis complete", "signals", len(signals))

	thresholds := alerting.Thresholds{
		SignalImpact:        cfg.Alerting.SignalImpact,
		SignalConfidence:    cfg.Alerting.SignalConfidence,
		CriticalEventImpact: cfg.Alerting.CriticalImpact,
		TrajectoryDelta:     cfg.Alerting.TrajectoryDelta,
	}
	detector := alerting.New(providers)
	pressureEx := pressure.New(providers)

	eventsByID := make(map[string]*record.Event, len(events))
	for _, ev := range events {
		eventsByID[ev.ID] = ev
	}

	for i := range signals {
		sig := &signals[i]

		result := detector.Generate(ctx, alerting.Request{
			Type:       alerting.AlertSignalThreshold,
			Signal:     sig,
			Thresholds: &thresholds,
		})
		if result.Triggered {
			printJSON(result.Alert)
		}

		var related []*record.Event
		for _, id := range sig.RelatedEventIDs {
			if ev, ok := eventsByID[id]; ok {
				related = append(related, ev)
			}
		}
		featResp := pressureEx.Extract(ctx, sig, related)
		if featResp.Data != nil {
			printJSON(featResp.Data)
		} else if featResp.Error != "" {
			logging.Warn("pressure extraction failed", "signal", sig.ID, "error", featResp.Error)
		}
	}
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		logging.Error("encode output", "error", err)
		return
	}
	fmt.Println(string(data))
}
