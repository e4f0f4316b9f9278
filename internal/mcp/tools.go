package mcp

// SearchInput defines the input schema for the search_topics and
// search_categories tools.
type SearchInput struct {
	Query  string   `json:"query" jsonschema:"the full-text query, typos are tolerated"`
	Limit  int      `json:"limit,omitempty" jsonschema:"maximum number of hits, default 20"`
	Offset int      `json:"offset,omitempty" jsonschema:"number of hits to skip"`
	Filter string   `json:"filter,omitempty" jsonschema:"filter expression such as: category_id = 3 AND created_at > 2024-01-01"`
	Sort   []string `json:"sort,omitempty" jsonschema:"sort entries such as created_at:desc"`
}

// HitOutput is one matching document.
type HitOutput struct {
	ID     string         `json:"id" jsonschema:"document primary key"`
	Score  float64        `json:"score" jsonschema:"relevance score"`
	Fields map[string]any `json:"fields,omitempty" jsonschema:"stored document fields"`
}

// SearchOutput defines the output schema for the search tools.
type SearchOutput struct {
	Collection         string      `json:"collection"`
	Query              string      `json:"query"`
	Hits               []HitOutput `json:"hits"`
	EstimatedTotalHits uint64      `json:"estimated_total_hits"`
	Limit              int         `json:"limit"`
	Offset             int         `json:"offset"`
	ProcessingTimeMs   int64       `json:"processing_time_ms"`
}

// SyncInput defines the input schema for the sync tool.
type SyncInput struct {
	Force bool `json:"force,omitempty" jsonschema:"run even if the last cycle completed within the minimum interval"`
}

// SyncStatusInput defines the input schema for the sync_status tool (no parameters).
type SyncStatusInput struct{}

// SyncStatusOutput describes sync bookkeeping. Times are RFC 3339.
type SyncStatusOutput struct {
	CycleID                   string            `json:"cycle_id,omitempty"`
	LastSyncAt                string            `json:"last_sync_at,omitempty"`
	LastSyncDurationMs        int64             `json:"last_sync_duration_ms,omitempty"`
	Counts                    map[string]int    `json:"counts"`
	Errors                    map[string]string `json:"errors,omitempty"`
	Watermarks                map[string]string `json:"watermarks,omitempty"`
	InProgress                bool              `json:"in_progress"`
	Cycles                    int               `json:"cycles"`
	Skipped                   bool              `json:"skipped,omitempty" jsonschema:"true when the sync request did not start a cycle"`
	SkipReason                string            `json:"skip_reason,omitempty" jsonschema:"in_progress or rate_limited when skipped"`
	BackgroundIntervalSeconds int64             `json:"background_interval_seconds,omitempty"`
}

// DeleteTopicInput defines the input schema for the delete_topic tool.
type DeleteTopicInput struct {
	ID int64 `json:"id" jsonschema:"the topic id to remove from the index"`
}

// DeleteTopicOutput defines the output schema for the delete_topic tool.
type DeleteTopicOutput struct {
	ID      int64 `json:"id"`
	Deleted bool  `json:"deleted"`
}

// HealthInput defines the input schema for the health tool (no parameters).
type HealthInput struct{}

// HealthOutput defines the output schema for the health tool.
type HealthOutput struct {
	Healthy bool   `json:"healthy"`
	Status  string `json:"status"`
}
