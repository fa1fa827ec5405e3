// Package intake pulls raw content into the pipeline. Sources produce
// extractor inputs; they never interpret content themselves.
package intake

import (
	"context"
	"fmt"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/meridianlabs/meridian/internal/extract"
)

// RSSSource fetches items from an RSS/Atom feed.
type RSSSource struct {
	name   string
	url    string
	parser *gofeed.Parser
}

func NewRSSSource(name, url string) *RSSSource {
	return &RSSSource{
		name:   name,
		url:    url,
		parser: gofeed.NewParser(),
	}
}

func (s *RSSSource) Name() string { return s.name }

// Fetch parses the feed and converts entries into extractor inputs.
func (s *RSSSource) Fetch(ctx context.Context) ([]extract.Input, error) {
	feed, err := s.parser.ParseURLWithContext(s.url, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", s.url, err)
	}

	now := time.Now()
	inputs := make([]extract.Input, 0, len(feed.Items))
	for _, entry := range feed.Items {
		published := now
		if entry.PublishedParsed != nil {
			published = *entry.PublishedParsed
		} else if entry.UpdatedParsed != nil {
			published = *entry.UpdatedParsed
		}

		content := entry.Content
		if content == "" {
			content = entry.Description
		}
		if entry.Title != "" {
			content = entry.Title + "\n\n" + content
		}

		inputs = append(inputs, extract.Input{
			Content: content,
			Source: extract.SourceMeta{
				Name:      s.name,
				URL:       entry.Link,
				Published: published,
			},
		})
	}
	return inputs, nil
}
