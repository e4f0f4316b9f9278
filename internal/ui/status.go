package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/ordokr/lmssearch/internal/async"
)

// StatusInfo describes the engine for the status command.
type StatusInfo struct {
	Datastore string            `json:"datastore"`
	DataDir   string            `json:"data_dir"`
	Backend   string            `json:"backend"` // "available" or "unavailable"
	Documents map[string]uint64 `json:"documents,omitempty"`
	Sync      async.SyncStats   `json:"sync"`
}

// StatusRenderer displays engine status.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
	now    func() time.Time
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{
		out:    out,
		styles: GetStyles(noColor),
		now:    time.Now,
	}
}

// Render displays status info to terminal.
func (r *StatusRenderer) Render(info StatusInfo) error {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Search Index Status"))

	_, _ = fmt.Fprintf(r.out, "  Datastore: %s\n", info.Datastore)
	dataDir := info.DataDir
	if dataDir == "" {
		dataDir = "(in memory)"
	}
	_, _ = fmt.Fprintf(r.out, "  Indexes:   %s\n", dataDir)
	_, _ = fmt.Fprintf(r.out, "  Backend:   %s\n", r.renderStatus(info.Backend))
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintln(r.out, "  Documents:")
	for _, name := range slices.Sorted(maps.Keys(info.Documents)) {
		_, _ = fmt.Fprintf(r.out, "    %-11s %d\n", name+":", info.Documents[name])
	}
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintln(r.out, "  Last sync:")
	if info.Sync.LastSyncAt == nil {
		_, _ = fmt.Fprintln(r.out, "    never")
		return nil
	}
	_, _ = fmt.Fprintf(r.out, "    When:     %s\n", r.formatTime(*info.Sync.LastSyncAt))
	if info.Sync.LastSyncDuration != nil {
		_, _ = fmt.Fprintf(r.out, "    Duration: %s\n", info.Sync.LastSyncDuration.Round(time.Millisecond))
	}
	for _, name := range slices.Sorted(maps.Keys(info.Sync.Counts)) {
		line := fmt.Sprintf("    %-9s %d", name+":", info.Sync.Counts[name])
		if msg, failed := info.Sync.Errors[name]; failed {
			line += "  " + r.styles.Error.Render(msg)
		}
		_, _ = fmt.Fprintln(r.out, line)
	}
	return nil
}

// RenderJSON outputs status as JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

func (r *StatusRenderer) renderStatus(status string) string {
	switch status {
	case "available":
		return r.styles.Success.Render(status)
	case "unavailable":
		return r.styles.Error.Render(status)
	default:
		return status
	}
}

// formatTime formats a time relative to now.
func (r *StatusRenderer) formatTime(t time.Time) string {
	diff := r.now().Sub(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	default:
		return t.Local().Format("2006-01-02 15:04")
	}
}
