package intake

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/meridianlabs/meridian/internal/extract"
	"github.com/meridianlabs/meridian/internal/logging"
)

// KafkaConfig configures the streaming content source.
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled" json:"enabled"`
	Brokers []string `yaml:"brokers" json:"brokers"`
	Topic   string   `yaml:"topic" json:"topic"`
	GroupID string   `yaml:"group_id" json:"group_id"`
}

// kafkaMessage is the expected message shape. Messages that are not
// JSON are treated as bare content with no source metadata.
type kafkaMessage struct {
	Content    string    `json:"content"`
	SourceName string    `json:"source_name"`
	URL        string    `json:"url"`
	Published  time.Time `json:"published"`
}

// StartKafka consumes the configured topic and forwards each message as
// an extractor input. Runs until ctx is cancelled. Returns false when
// the source is disabled.
func StartKafka(ctx context.Context, cfg KafkaConfig, out chan<- extract.Input) bool {
	if !cfg.Enabled || len(cfg.Brokers) == 0 || cfg.Topic == "" {
		logging.Info("kafka intake disabled")
		return false
	}
	logging.Info("kafka intake enabled", "brokers", cfg.Brokers, "topic", cfg.Topic, "group_id", cfg.GroupID)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1e3,
		MaxBytes: 10e6,
	})
	go func() {
		defer reader.Close()
		for {
			m, err := reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logging.Warn("kafka read error", "error", err)
				continue
			}
			in, ok := decodeKafkaMessage(m.Value)
			if !ok {
				continue
			}
			select {
			case out <- in:
			case <-ctx.Done():
				return
			}
		}
	}()
	return true
}

func decodeKafkaMessage(value []byte) (extract.Input, bool) {
	text := strings.TrimSpace(string(value))
	if text == "" {
		return extract.Input{}, false
	}

	var msg kafkaMessage
	if err := json.Unmarshal(value, &msg); err == nil && strings.TrimSpace(msg.Content) != "" {
		published := msg.Published
		if published.IsZero() {
			published = time.Now()
		}
		return extract.Input{
			Content: msg.Content,
			Source: extract.SourceMeta{
				Name:      msg.SourceName,
				URL:       msg.URL,
				Published: published,
			},
		}, true
	}

	return extract.Input{
		Content: text,
		Source:  extract.SourceMeta{Name: "stream", Published: time.Now()},
	}, true
}
