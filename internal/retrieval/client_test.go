package retrieval

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req["query"] != "port disruption" {
			t.Errorf("query not forwarded: %v", req["query"])
		}
		if req["api_key"] != "k" {
			t.Errorf("api key not forwarded")
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]interface{}{
				{
					"title":          "Port strike enters second week",
					"url":            "https://www.example.com/story",
					"content":        "body text",
					"published_date": "2026-08-29T10:00:00Z",
					"score":          0.92,
				},
			},
		})
	}))
	defer server.Close()

	c := NewClient("k", server.URL)
	results, err := c.Search(context.Background(), "port disruption", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	r := results[0]
	if r.RelevanceScore != 0.92 {
		t.Errorf("expected score 0.92, got %v", r.RelevanceScore)
	}
	if r.SourceName != "example.com" {
		t.Errorf("expected host-derived source name, got %q", r.SourceName)
	}
	if r.Published.IsZero() {
		t.Error("published date not parsed")
	}
}

func TestSearchAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	c := NewClient("k", server.URL)
	if _, err := c.Search(context.Background(), "anything", 5); err == nil {
		t.Error("expected error for non-200 response")
	}
}

func TestSearchInputValidation(t *testing.T) {
	c := NewClient("", "")
	if c.Available() {
		t.Error("client without a key must not report available")
	}
	if _, err := c.Search(context.Background(), "q", 1); err == nil {
		t.Error("expected error when not configured")
	}

	c = NewClient("k", "")
	if _, err := c.Search(context.Background(), "   ", 1); err == nil {
		t.Error("expected error for empty query")
	}
}
