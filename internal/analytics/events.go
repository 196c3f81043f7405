// Package analytics records what users search for: the searcher emits one
// SearchEvent per query, an Aggregator folds events into running stats, and
// a Store snapshots those stats to PostgreSQL.
package analytics

import "time"

type EventType string

const (
	EventSearch     EventType = "search"
	EventZeroResult EventType = "zero_result"
	EventEmptyQuery EventType = "empty_query"
	EventError      EventType = "error"
)

// SearchEvent describes one answered query.
type SearchEvent struct {
	Type      EventType `json:"type"`
	Query     string    `json:"query"`
	Lemmas    []string  `json:"lemmas,omitempty"`
	Unknown   []string  `json:"unknown,omitempty"`
	TotalHits int       `json:"total_hits"`
	Returned  int       `json:"returned"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Snapshot  string    `json:"snapshot,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// Tracker accepts events without blocking the caller.
type Tracker interface {
	Track(event SearchEvent)
}

// Multi fans one event out to several trackers.
type Multi []Tracker

func (m Multi) Track(event SearchEvent) {
	for _, t := range m {
		t.Track(event)
	}
}
