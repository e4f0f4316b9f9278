package mcp

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/ordokr/lmssearch/internal/async"
	"github.com/ordokr/lmssearch/internal/backend"
)

// snippetLen bounds the field text shown per hit.
const snippetLen = 160

// titleFields are the fields used as a hit's heading, in order of preference.
var titleFields = []string{"title", "name"}

// FormatSearchResults formats a page of hits as markdown.
func FormatSearchResults(collection, query string, res *backend.SearchResult) string {
	if res == nil || len(res.Hits) == 0 {
		return fmt.Sprintf("No %s found for \"%s\"", collection, query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## %s results for \"%s\"\n\n", capitalize(collection), query)
	fmt.Fprintf(&sb, "Showing %d-%d of about %d\n\n",
		res.Offset+1, res.Offset+len(res.Hits), res.EstimatedTotalHits)

	for i, hit := range res.Hits {
		formatHit(&sb, res.Offset+i+1, hit)
	}
	return sb.String()
}

// formatHit formats a single hit.
func formatHit(sb *strings.Builder, num int, hit backend.Hit) {
	fmt.Fprintf(sb, "### %d. %s (id: %s, score: %.2f)\n", num, hitTitle(hit), hit.ID, hit.Score)

	for _, key := range []string{"content", "description"} {
		if text, ok := hit.Fields[key].(string); ok && text != "" {
			fmt.Fprintf(sb, "%s\n", truncate(text, snippetLen))
			break
		}
	}
	sb.WriteString("\n")
}

func hitTitle(hit backend.Hit) string {
	for _, key := range titleFields {
		if v, ok := hit.Fields[key].(string); ok && v != "" {
			return v
		}
	}
	return hit.ID
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// FormatSyncStatus formats sync bookkeeping as markdown.
func FormatSyncStatus(out SyncStatusOutput) string {
	var sb strings.Builder
	sb.WriteString("## Sync Status\n\n")

	switch {
	case out.SkipReason == string(async.SkipInProgress):
		sb.WriteString("Sync skipped: another cycle is in progress.\n\n")
	case out.Skipped:
		sb.WriteString("Sync skipped: the last cycle completed too recently. Pass force to override.\n\n")
	}

	if out.LastSyncAt == "" {
		sb.WriteString("**Last sync:** never\n")
	} else {
		fmt.Fprintf(&sb, "**Last sync:** %s (%s)\n", out.LastSyncAt,
			(time.Duration(out.LastSyncDurationMs) * time.Millisecond).String())
	}
	fmt.Fprintf(&sb, "**Cycles:** %d\n", out.Cycles)
	if out.InProgress {
		sb.WriteString("**In progress:** yes\n")
	}
	if out.BackgroundIntervalSeconds > 0 {
		fmt.Fprintf(&sb, "**Background interval:** %s\n",
			(time.Duration(out.BackgroundIntervalSeconds) * time.Second).String())
	}

	if len(out.Counts) > 0 {
		sb.WriteString("\n| Collection | Documents | Error |\n|---|---|---|\n")
		for _, name := range slices.Sorted(maps.Keys(out.Counts)) {
			fmt.Fprintf(&sb, "| %s | %d | %s |\n", name, out.Counts[name], out.Errors[name])
		}
	}
	return sb.String()
}

// ToSearchOutput converts a backend page to the tool output format.
func ToSearchOutput(collection string, res *backend.SearchResult) SearchOutput {
	out := SearchOutput{Collection: collection, Hits: []HitOutput{}}
	if res == nil {
		return out
	}
	out.Query = res.Query
	out.EstimatedTotalHits = res.EstimatedTotalHits
	out.Limit = res.Limit
	out.Offset = res.Offset
	out.ProcessingTimeMs = res.ProcessingTime.Milliseconds()
	for _, h := range res.Hits {
		out.Hits = append(out.Hits, HitOutput{ID: h.ID, Score: h.Score, Fields: h.Fields})
	}
	return out
}

// ToSyncStatusOutput converts tracker stats to the tool output format.
func ToSyncStatusOutput(stats async.SyncStats) SyncStatusOutput {
	out := SyncStatusOutput{
		CycleID:    stats.CycleID,
		Counts:     stats.Counts,
		Errors:     stats.Errors,
		InProgress: stats.InProgress,
		Cycles:     stats.Cycles,
		Skipped:    stats.Skipped != async.SkipNone,
		SkipReason: string(stats.Skipped),
	}
	if out.Counts == nil {
		out.Counts = map[string]int{}
	}
	if stats.LastSyncAt != nil {
		out.LastSyncAt = stats.LastSyncAt.UTC().Format(time.RFC3339)
	}
	if stats.LastSyncDuration != nil {
		out.LastSyncDurationMs = stats.LastSyncDuration.Milliseconds()
	}
	if len(stats.Watermarks) > 0 {
		out.Watermarks = make(map[string]string, len(stats.Watermarks))
		for name, at := range stats.Watermarks {
			out.Watermarks[name] = at.UTC().Format(time.RFC3339)
		}
	}
	return out
}

// clampLimit keeps limit within [0, maxLimit]. Zero selects the engine default.
func clampLimit(limit, maxLimit int) int {
	if limit <= 0 {
		return 0
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
