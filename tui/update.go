package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/datengrube/context-orchestrator/internal/orchestrator"
)

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case TickMsg:
		if m.done {
			return m, nil
		}
		return m, tickCmd()

	case EventMsg:
		m.applyEvent(orchestrator.Event(msg))
		return m, waitForEvent(m.events)

	case ResultMsg:
		m.result = msg.Result
		m.done = true
		m.finishStages()
		return m, nil
	}

	return m, nil
}

// applyEvent marks the event's stage running, completes all earlier
// stages, and appends to the log.
func (m *Model) applyEvent(e orchestrator.Event) {
	if e.Kind == orchestrator.EventDone {
		m.finishStages()
	} else {
		for i := range m.stages {
			if m.stages[i].kind == e.Kind {
				m.stages[i].state = StageRunning
				m.stages[i].detail = e.Message
				break
			}
			if m.stages[i].state == StageRunning {
				m.stages[i].state = StageDone
			}
		}
	}
	m.log = append(m.log, fmt.Sprintf("%s: %s", e.Kind, e.Message))
	if len(m.log) > 8 {
		m.log = m.log[len(m.log)-8:]
	}
}

// finishStages resolves stage states once the run is over: running
// becomes done, never-started becomes skipped.
func (m *Model) finishStages() {
	for i := range m.stages {
		switch m.stages[i].state {
		case StageRunning:
			m.stages[i].state = StageDone
		case StagePending:
			m.stages[i].state = StageSkipped
		}
	}
}
