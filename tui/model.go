// Package tui renders live pipeline progress with bubbletea.
package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/datengrube/context-orchestrator/internal/domain"
	"github.com/datengrube/context-orchestrator/internal/orchestrator"
)

// StageState tracks where one pipeline stage is
type StageState int

const (
	StagePending StageState = iota
	StageRunning
	StageDone
	StageSkipped
)

// stageRow is one line in the stage list
type stageRow struct {
	kind   orchestrator.EventKind
	label  string
	state  StageState
	detail string
}

// Model is the TUI application model
type Model struct {
	rootURL string

	stages []stageRow
	log    []string

	result *domain.IntegrationResult
	done   bool

	events <-chan tea.Msg

	// UI state
	width  int
	height int

	started time.Time
}

// EventMsg wraps an orchestrator progress event
type EventMsg orchestrator.Event

// ResultMsg carries the final pipeline result
type ResultMsg struct {
	Result *domain.IntegrationResult
}

// NewModel creates a TUI model fed by the given message channel. The
// driver goroutine sends EventMsg values followed by one ResultMsg.
func NewModel(rootURL string, events <-chan tea.Msg) Model {
	return Model{
		rootURL: rootURL,
		events:  events,
		stages: []stageRow{
			{kind: orchestrator.EventEnhance, label: "Enhance input"},
			{kind: orchestrator.EventFetch, label: "Fetch root resource"},
			{kind: orchestrator.EventExpand, label: "Expand links"},
			{kind: orchestrator.EventDispatch, label: "Dispatch squads"},
		},
		started: time.Now(),
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		waitForEvent(m.events),
	)
}

// TickMsg triggers a periodic redraw for the elapsed timer
type TickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func waitForEvent(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}
