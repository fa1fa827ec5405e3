// Package features defines the numeric feature records used for
// relevance prediction, and the feature store that caches them keyed by
// (entity_type, entity_id) with last-write-wins upsert semantics.
package features

import "time"

// FeatureSetVersion tags every stored feature record. Bump when the
// feature definitions change shape or meaning.
const FeatureSetVersion = "v1"

// Entity types used as store keys.
const (
	EntityEvent         = "event"
	EntityUser          = "user"
	EntityEventUserPair = "event_user_pair"
	EntityQuery         = "query"
)

// EventFeatures are flat features describing a single event.
type EventFeatures struct {
	EventID         string  `json:"event_id"`
	Sector          string  `json:"sector"`
	Region          string  `json:"region"`
	EventType       string  `json:"event_type"`
	ImpactScore     float64 `json:"impact_score"`     // 0-1
	ConfidenceScore float64 `json:"confidence_score"` // 0-1
	SourceCount     int     `json:"source_count"`
	AgeHours        float64 `json:"age_hours"`
}

// UserFeatures are flat features describing a user's interest profile.
type UserFeatures struct {
	UserID           string  `json:"user_id"`
	PrimarySector    string  `json:"primary_sector"`
	PrimaryRegion    string  `json:"primary_region"`
	SectorCount      int     `json:"sector_count"`
	RegionCount      int     `json:"region_count"`
	InteractionCount int     `json:"interaction_count"`
	EngagementRate   float64 `json:"engagement_rate"` // 0-1
}

// EventUserPairFeatures are the features the relevance predictor scores.
type EventUserPairFeatures struct {
	EventID              string  `json:"event_id"`
	UserID               string  `json:"user_id"`
	SectorMatch          bool    `json:"sector_match"`
	RegionMatch          bool    `json:"region_match"`
	EventTypeMatch       bool    `json:"event_type_match"`
	UserInteractionCount int     `json:"user_interaction_count"`
	UserEngagementRate   float64 `json:"user_engagement_rate"` // 0-1
	ContentSimilarity    float64 `json:"content_similarity"`   // placeholder, 0-1
	CollaborativeScore   float64 `json:"collaborative_score"`  // placeholder, 0-1
}

// QueryFeatures are flat features describing a search query.
type QueryFeatures struct {
	Query          string `json:"query"`
	TokenCount     int    `json:"token_count"`
	CharLength     int    `json:"char_length"`
	HasSectorTerm  bool   `json:"has_sector_term"`
	HasRegionTerm  bool   `json:"has_region_term"`
	HasUrgencyTerm bool   `json:"has_urgency_term"`
}

// Record is a stored feature payload keyed by entity type and id.
type Record struct {
	EntityType string
	EntityID   string
	Version    string
	Payload    []byte // JSON-encoded feature struct
	UpdatedAt  time.Time
}
