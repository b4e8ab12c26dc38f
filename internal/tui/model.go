// Package tui renders upload progress in the terminal with bubbletea.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mcdonaldj/xboxftp/internal/ports"
	"github.com/mcdonaldj/xboxftp/internal/upload"
)

// maxActivity is how many recent activity lines are kept on screen.
const maxActivity = 6

// GameRow is one archive in the upload list.
type GameRow struct {
	Name    string
	Status  string
	Percent int
	File    string
	Files   int
	Bytes   int64
	Elapsed time.Duration
	Failed  bool
	Done    bool
}

// doneMsg is sent once the upload run has returned.
type doneMsg struct {
	results []upload.GameResult
}

// Model is the upload progress TUI model
type Model struct {
	games   []GameRow
	index   map[string]int
	current string

	activity []string
	bar      progress.Model
	spinner  spinner.Model

	width  int
	height int
	cursor int

	cancel     context.CancelFunc
	cancelling bool
	finished   bool
	quitting   bool

	results []upload.GameResult
}

// Key bindings
type keyMap struct {
	Up   key.Binding
	Down key.Binding
	Quit key.Binding
}

var keys = keyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// NewModel creates a model. cancel is called when the user quits while the
// upload is still running.
func NewModel(cancel context.CancelFunc) *Model {
	return &Model{
		index:   make(map[string]int),
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		cancel:  cancel,
	}
}

// Init starts the spinner
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if w := msg.Width - 20; w > 10 {
			m.bar.Width = min(w, 60)
		}
		return m, nil

	case spinner.TickMsg:
		if m.finished {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case eventMsg:
		m.handleEvent(msg)
		return m, nil

	case doneMsg:
		m.results = msg.results
		m.finished = true
		return m, tea.Quit

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			if m.finished || m.cancelling {
				m.quitting = true
				return m, tea.Quit
			}
			// first press cancels; the run returns and sends doneMsg
			m.cancelling = true
			if m.cancel != nil {
				m.cancel()
			}
			m.addActivity("Cancelling, waiting for workers to stop...")

		case key.Matches(msg, keys.Up):
			m.moveCursor(-1)

		case key.Matches(msg, keys.Down):
			m.moveCursor(1)
		}
	}

	return m, nil
}

func (m *Model) moveCursor(delta int) {
	m.cursor += delta
	if m.cursor >= len(m.games) {
		m.cursor = len(m.games) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *Model) row(game string) *GameRow {
	i, ok := m.index[game]
	if !ok {
		i = len(m.games)
		m.index[game] = i
		m.games = append(m.games, GameRow{Name: game, Status: "queued"})
	}
	return &m.games[i]
}

func (m *Model) handleEvent(e eventMsg) {
	r := m.row(e.game)
	switch e.kind {
	case gameQueued:
		r.Status = "queued"
	case gameStarted:
		m.current = e.game
		r.Status = "starting"
		m.addActivity(fmt.Sprintf("Starting %s", e.game))
	case checkingResume:
		r.Status = "checking for uploaded files"
	case checkingFile:
		r.File = e.file
	case creatingFolders:
		r.Status = "creating folders"
	case foldersCreated:
		r.Status = "folders created"
	case foldersSkipped:
		r.Status = "resuming"
		m.addActivity(fmt.Sprintf("%s: resuming previous upload", e.game))
	case bytesToUpload:
		r.Bytes = e.bytes
	case filesToTransfer:
		r.Files = e.count
		r.Status = "uploading"
	case extracting:
		r.File = e.file
		r.Status = "extracting"
	case queueingFile:
		r.Status = "uploading"
	case fileStarted:
		r.File = e.file
	case fileExists:
		m.addActivity(fmt.Sprintf("%s: %s already uploaded", e.game, e.file))
	case fileFinished:
		r.File = e.file
		if e.percent > r.Percent {
			r.Percent = e.percent
		}
	case fileFailed:
		m.addActivity(fmt.Sprintf("%s: %s failed: %v", e.game, e.file, e.err))
	case draining:
		r.Status = "waiting for uploads"
	case gameFinished:
		r.Status = "done"
		r.Percent = 100
		r.File = ""
		r.Done = true
		r.Elapsed = e.elapsed
		m.addActivity(fmt.Sprintf("✓ %s uploaded in %s", e.game, e.elapsed.Round(time.Second)))
	case gameFailed:
		r.Status = "failed"
		r.Failed = true
		r.Done = true
		m.addActivity(fmt.Sprintf("✗ %s", e.message))
	}
}

func (m *Model) addActivity(line string) {
	m.activity = append(m.activity, line)
	if len(m.activity) > maxActivity {
		m.activity = m.activity[len(m.activity)-maxActivity:]
	}
}

// Results returns what the upload run returned, once finished.
func (m *Model) Results() []upload.GameResult {
	return m.results
}

// View renders the UI
func (m *Model) View() string {
	if m.quitting && !m.finished {
		return ""
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render(" 🎮 xboxftp "))
	b.WriteString("\n\n")

	if cur, ok := m.index[m.current]; ok {
		r := m.games[cur]
		status := r.Status
		if !r.Done {
			status = m.spinner.View() + " " + status
		}
		b.WriteString(normalStyle.Render(fmt.Sprintf("  %s  %s", r.Name, status)))
		b.WriteString("\n  ")
		b.WriteString(m.bar.ViewAs(float64(r.Percent) / 100))
		b.WriteString("\n")
		if r.File != "" {
			b.WriteString(dimStyle.Render("  " + truncate(r.File, 60)))
		}
		b.WriteString("\n\n")
	}

	header := fmt.Sprintf("  %-32s %6s %10s %s", "GAME", "FILES", "SIZE", "STATUS")
	b.WriteString(dimStyle.Render(header))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(strings.Repeat("─", 70)))
	b.WriteString("\n")

	for i, r := range m.games {
		cursor := "  "
		style := normalStyle
		if i == m.cursor {
			cursor = "▸ "
			style = selectedStyle
		}

		files := "-"
		if r.Files > 0 {
			files = fmt.Sprintf("%d", r.Files)
		}
		size := "-"
		if r.Bytes > 0 {
			size = formatSize(r.Bytes)
		}
		status := r.Status
		if !r.Done && r.Percent > 0 {
			status = fmt.Sprintf("%s %d%%", status, r.Percent)
		}

		line := fmt.Sprintf("%s%-32s %6s %10s ", cursor, truncate(r.Name, 32), files, size)
		b.WriteString(style.Render(line))
		switch {
		case r.Failed:
			b.WriteString(errorBadge.Render(status))
		case r.Done:
			b.WriteString(successBadge.Render(status))
		default:
			b.WriteString(style.Render(status))
		}
		b.WriteString("\n")
	}

	if len(m.activity) > 0 {
		b.WriteString("\n")
		for _, line := range m.activity {
			b.WriteString(dimStyle.Render("  " + line))
			b.WriteString("\n")
		}
	}

	help := "[↑/↓] navigate  [q] cancel"
	switch {
	case m.finished:
		help = summary(m.results)
	case m.cancelling:
		help = warnBadge.Render("Cancelling... [q] quit now")
	}
	b.WriteString(helpStyle.Render(help))

	return appStyle.Render(b.String())
}

func summary(results []upload.GameResult) string {
	var ok, failed, skipped int
	for _, r := range results {
		switch r.State {
		case upload.StateFinished:
			ok++
		case upload.StateSkipped:
			skipped++
		default:
			failed++
		}
	}
	return fmt.Sprintf("%d uploaded, %d failed, %d skipped", ok, failed, skipped)
}

// Run shows the TUI while run uploads. The context given to run is cancelled
// when the user quits; the TUI stays up until run has returned.
func Run(ctx context.Context, run func(ctx context.Context, n ports.ProgressNotifier) []upload.GameResult) ([]upload.GameResult, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := NewModel(cancel)
	p := tea.NewProgram(m, tea.WithContext(ctx))
	n := NewNotifier(p)

	results := make(chan []upload.GameResult, 1)
	go func() {
		r := run(runCtx, n)
		results <- r
		p.Send(doneMsg{results: r})
	}()

	_, err := p.Run()
	// a forced quit ends the program before doneMsg arrives
	cancel()
	r := <-results
	if err != nil && ctx.Err() == nil {
		return r, fmt.Errorf("running tui: %w", err)
	}
	return r, nil
}

// Helper functions
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}

func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
