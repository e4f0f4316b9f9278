package ui

import (
	"context"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ordokr/lmssearch/internal/async"
)

// TUIRenderer provides rich terminal UI using bubbletea.
type TUIRenderer struct {
	mu      sync.Mutex
	cfg     Config
	program *tea.Program
	model   *syncModel
	tracker *ProgressTracker
	cancel  context.CancelFunc
	started bool
	done    chan struct{}
}

// NewTUIRenderer creates a TUI renderer.
// Returns an error if the output is not a terminal.
func NewTUIRenderer(cfg Config) (*TUIRenderer, error) {
	if !IsTTY(cfg.Output) {
		return nil, fmt.Errorf("output is not a TTY")
	}

	tracker := NewProgressTracker()
	model := newSyncModel(tracker)
	if cfg.NoColor || DetectNoColor() {
		model.styles = NoColorStyles()
	}

	return &TUIRenderer{
		cfg:     cfg,
		tracker: tracker,
		model:   model,
		done:    make(chan struct{}),
	}, nil
}

// Start implements Renderer.
func (r *TUIRenderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil
	}

	ctx, r.cancel = context.WithCancel(ctx)

	var opts []tea.ProgramOption
	if f, ok := r.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}
	opts = append(opts, tea.WithContext(ctx))

	r.program = tea.NewProgram(r.model, opts...)
	r.started = true

	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()

	return nil
}

func (r *TUIRenderer) send(msg tea.Msg) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.program != nil {
		r.program.Send(msg)
	}
}

// CollectionStarted implements Renderer.
func (r *TUIRenderer) CollectionStarted(collection string, rows, batches int) {
	r.tracker.Started(collection, rows, batches)
	r.send(refreshMsg{})
}

// BatchDone implements Renderer.
func (r *TUIRenderer) BatchDone(collection string, docs int, err error) {
	r.tracker.Batch(collection, docs, err != nil)
	r.send(refreshMsg{})
}

// CollectionDone implements Renderer.
func (r *TUIRenderer) CollectionDone(result async.CollectionResult) {
	r.tracker.Finished(result.Collection, result.Err)
	r.send(refreshMsg{})
}

// Complete implements Renderer.
func (r *TUIRenderer) Complete(stats async.SyncStats, err error) {
	r.send(completeMsg{stats: stats, err: err})
}

// Stop implements Renderer.
func (r *TUIRenderer) Stop() error {
	r.mu.Lock()
	program, cancel := r.program, r.cancel
	r.mu.Unlock()

	if program == nil {
		return nil
	}

	// Let the completion view render before quitting.
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		program.Quit()
		<-r.done
	}
	if cancel != nil {
		cancel()
	}
	return nil
}

// Message types for bubbletea
type refreshMsg struct{}

type completeMsg struct {
	stats async.SyncStats
	err   error
}

// syncModel is the bubbletea model for sync progress.
type syncModel struct {
	tracker     *ProgressTracker
	width       int
	quitting    bool
	complete    *completeMsg
	spinner     spinner.Model
	progressBar progress.Model
	styles      Styles
}

func newSyncModel(tracker *ProgressTracker) *syncModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLime))

	p := progress.New(
		progress.WithSolidFill(ColorLime),
		progress.WithWidth(40),
		progress.WithoutPercentage(),
	)

	return &syncModel{
		tracker:     tracker,
		spinner:     s,
		progressBar: p,
		styles:      DefaultStyles(),
		width:       80,
	}
}

// Init implements tea.Model.
func (m *syncModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m *syncModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progressBar.Width = max(msg.Width-30, 20)

	case refreshMsg:
		return m, nil

	case completeMsg:
		m.complete = &msg
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View implements tea.Model.
func (m *syncModel) View() string {
	if m.quitting {
		return "Cancelled.\n"
	}
	if m.complete != nil {
		return m.renderComplete()
	}

	collections := m.tracker.Snapshot()
	lines := []string{m.styles.Header.Render("lmssearch sync")}
	if len(collections) == 0 {
		lines = append(lines, fmt.Sprintf("%s %s", m.spinner.View(), m.styles.Label.Render("Reading changes...")))
	}
	for _, c := range collections {
		lines = append(lines, m.renderCollection(c))
	}
	lines = append(lines, m.styles.Dim.Render(fmt.Sprintf("elapsed %s  │  q to quit", m.tracker.Elapsed().Round(time.Second))))

	return m.styles.Panel.Width(max(m.width-4, 40)).Render(strings.Join(lines, "\n")) + "\n"
}

func (m *syncModel) renderCollection(c CollectionProgress) string {
	var icon string
	switch {
	case c.Err != "":
		icon = m.styles.Error.Render("✗")
	case c.Done:
		icon = m.styles.Success.Render("●")
	default:
		icon = m.spinner.View()
	}

	name := m.styles.Label.Render(fmt.Sprintf("%-12s", c.Collection))
	bar := m.progressBar.ViewAs(c.Fraction())
	count := m.styles.Active.Render(fmt.Sprintf("%d/%d", c.DocsDone, c.Rows))

	line := fmt.Sprintf("%s %s %s %s", icon, name, bar, count)
	if c.Failures > 0 {
		line += " " + m.styles.Warning.Render(fmt.Sprintf("%d failed batches", c.Failures))
	}
	return line
}

func (m *syncModel) renderComplete() string {
	c := m.complete
	if c.stats.Skipped != async.SkipNone {
		return m.styles.Warning.Render(skippedMessage(c.stats)) + "\n"
	}
	if c.err != nil {
		return m.styles.Error.Render("✗ Sync failed: "+c.err.Error()) + "\n"
	}

	lines := []string{m.styles.Success.Render("✓ Sync complete"), ""}
	for _, name := range slices.Sorted(maps.Keys(c.stats.Counts)) {
		line := fmt.Sprintf("%s %s", m.styles.Label.Render(fmt.Sprintf("%-12s", name+":")),
			m.styles.Active.Render(fmt.Sprint(c.stats.Counts[name])))
		if msg, failed := c.stats.Errors[name]; failed {
			line += " " + m.styles.Error.Render(msg)
		}
		lines = append(lines, line)
	}
	if c.stats.LastSyncDuration != nil {
		lines = append(lines, fmt.Sprintf("%s %s", m.styles.Label.Render(fmt.Sprintf("%-12s", "Duration:")),
			m.styles.Active.Render(c.stats.LastSyncDuration.Round(time.Millisecond).String())))
	}

	panel := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorLime)).
		Padding(1, 2).
		Width(max(m.width-4, 40))
	return panel.Render(strings.Join(lines, "\n")) + "\n"
}

var _ Renderer = (*TUIRenderer)(nil)
