package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/trackdrop/internal/models"
	"github.com/desertthunder/trackdrop/internal/tasks"
)

const (
	recentLines  = 6
	maxBarWidth  = 60
	defaultWidth = 80
)

// SyncRunner runs a sync over a set of bindings. [tasks.SyncEngine] implements it.
type SyncRunner interface {
	Run(ctx context.Context, bindings []models.Binding, progress chan<- tasks.ProgressUpdate) (*tasks.RunResult, error)
}

// Model represents the TUI application state.
type Model struct {
	ctx      context.Context
	cancel   context.CancelFunc
	runner   SyncRunner
	bindings []models.Binding

	progressChan chan tasks.ProgressUpdate
	doneChan     chan runComplete

	spinner spinner.Model
	bar     progress.Model
	help    help.Model
	keys    keyMap
	results list.Model

	current     tasks.ProgressUpdate
	recent      []string
	artistsDone int
	finished    bool
	quitting    bool
	result      *tasks.RunResult
	err         error
	width       int
	height      int
}

// NewModel creates a new TUI model that runs bindings through runner when started.
func NewModel(ctx context.Context, runner SyncRunner, bindings []models.Binding) *Model {
	ctx, cancel := context.WithCancel(ctx)
	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = maxBarWidth

	return &Model{
		ctx:      ctx,
		cancel:   cancel,
		runner:   runner,
		bindings: bindings,
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.title.UnsetMarginBottom())),
		bar:      bar,
		help:     help.New(),
		keys:     newKeyMap(),
		width:    defaultWidth,
	}
}

// Result returns the outcome of the run once the program has exited.
func (m *Model) Result() (*tasks.RunResult, error) {
	return m.result, m.err
}

// Init starts the spinner and the sync run.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.startRun())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = min(msg.Width-4, maxBarWidth)
		if m.finished {
			m.results.SetSize(msg.Width-4, max(msg.Height-8, 5))
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case spinner.TickMsg:
		if m.finished {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		switch msg.kind {
		case MsgProgressUpdate:
			m.apply(msg.data.(tasks.ProgressUpdate))
			return m, m.waitForProgress()
		case MsgRunComplete:
			done := msg.data.(runComplete)
			m.finish(done.result, done.err)
			if m.quitting || errors.Is(done.err, context.Canceled) {
				return m, tea.Quit
			}
			return m, nil
		}
	}

	if m.finished {
		var cmd tea.Cmd
		m.results, cmd = m.results.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the running or finished view.
func (m *Model) View() string {
	if m.finished {
		return m.renderResult()
	}
	return m.renderRunning()
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		if m.finished {
			return m, tea.Quit
		}
		// The run finishes its current step, then reports back before we exit.
		m.quitting = true
		m.cancel()
		return m, nil
	case key.Matches(msg, m.keys.help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}

	if m.finished {
		var cmd tea.Cmd
		m.results, cmd = m.results.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) apply(u tasks.ProgressUpdate) {
	m.current = u

	switch u.Phase {
	case tasks.CheckLedger, tasks.RecordLedger, tasks.SkipTrack:
		m.log(u.Message)
	case tasks.ArtistDone:
		m.artistsDone++
		m.log(u.Message)
	}
}

func (m *Model) log(line string) {
	m.recent = append(m.recent, line)
	if len(m.recent) > recentLines {
		m.recent = m.recent[len(m.recent)-recentLines:]
	}
}

func (m *Model) finish(result *tasks.RunResult, err error) {
	m.finished = true
	m.result = result
	m.err = err
	m.cancel()

	var artists []tasks.ArtistResult
	if result != nil {
		artists = result.Artists
	}
	m.results = list.New(artistItems(artists), list.NewDefaultDelegate(), m.width-4, max(m.height-8, 3*len(artists)+8))
	m.results.Title = "Artists"
	m.results.SetShowHelp(false)
}

func (m *Model) startRun() tea.Cmd {
	m.progressChan = make(chan tasks.ProgressUpdate, 64)
	m.doneChan = make(chan runComplete, 1)

	go func() {
		result, err := m.runner.Run(m.ctx, m.bindings, m.progressChan)
		m.doneChan <- runComplete{result: result, err: err}
		close(m.progressChan)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progressChan, doneChan := m.progressChan, m.doneChan
	return func() tea.Msg {
		update, ok := <-progressChan
		if !ok {
			done := <-doneChan
			return runCompleteMsg(done.result, done.err)
		}
		return progressUpdateMsg(update)
	}
}

// percent reports progress through the current artist's pending tracks.
func (m *Model) percent() float64 {
	switch m.current.Phase {
	case tasks.FetchTrack, tasks.PublishTrack, tasks.RecordLedger, tasks.SkipTrack, tasks.Pace:
		if m.current.Total > 0 {
			return float64(m.current.Step) / float64(m.current.Total)
		}
	case tasks.ArtistDone:
		return 1
	}
	return 0
}

func (m *Model) renderRunning() string {
	var b strings.Builder

	b.WriteString(Title(fmt.Sprintf("Syncing %d artist(s)", len(m.bindings))))
	b.WriteString("\n")

	artist := m.current.Artist
	if artist == "" {
		artist = "starting"
	}
	fmt.Fprintf(&b, "%s %s %s\n\n", m.spinner.View(), artist, Muted(fmt.Sprintf("(%d/%d done)", m.artistsDone, len(m.bindings))))
	fmt.Fprintf(&b, "%s\n%s\n\n", m.bar.ViewAs(m.percent()), m.current.Message)

	for _, line := range m.recent {
		b.WriteString(Muted(line))
		b.WriteString("\n")
	}

	if m.quitting {
		b.WriteString(Warning("\nStopping after the current step..."))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m *Model) renderResult() string {
	var b strings.Builder

	switch {
	case m.err != nil:
		b.WriteString(Failure(fmt.Sprintf("✗ Sync stopped: %v", m.err)))
	case m.result != nil && m.result.Aborted():
		b.WriteString(Warning("! Sync finished with aborted artists"))
	default:
		b.WriteString(Success("✓ Sync complete"))
	}
	b.WriteString("\n")

	if m.result != nil {
		fmt.Fprintf(&b, "\n%d track(s) published across %d artist(s) in %s\n\n",
			m.result.Published(), len(m.result.Artists), m.result.Elapsed.Round(time.Millisecond))
		b.WriteString(m.results.View())
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}
