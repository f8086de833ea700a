package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/datengrube/context-orchestrator/internal/domain"
	"github.com/datengrube/context-orchestrator/internal/orchestrator"
)

func TestNewModel(t *testing.T) {
	model := NewModel("https://x.example/root.md", nil)

	if model.rootURL != "https://x.example/root.md" {
		t.Errorf("rootURL = %q, want root URL", model.rootURL)
	}
	if len(model.stages) != 4 {
		t.Fatalf("stages count = %d, want 4", len(model.stages))
	}
	for _, s := range model.stages {
		if s.state != StagePending {
			t.Errorf("stage %s state = %v, want StagePending", s.label, s.state)
		}
	}
	if model.done {
		t.Error("done = true, want false")
	}
}

func TestModel_Quit(t *testing.T) {
	model := NewModel("https://x.example/root.md", nil)

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should produce tea.Quit")
	}
}

func TestModel_EventMarksStageRunning(t *testing.T) {
	model := NewModel("https://x.example/root.md", make(chan tea.Msg))

	newModel, _ := model.Update(EventMsg{Kind: orchestrator.EventFetch, Message: "root.md"})
	model = newModel.(Model)

	var fetch stageRow
	for _, s := range model.stages {
		if s.kind == orchestrator.EventFetch {
			fetch = s
		}
	}
	if fetch.state != StageRunning {
		t.Errorf("fetch state = %v, want StageRunning", fetch.state)
	}
	if len(model.log) != 1 {
		t.Errorf("log length = %d, want 1", len(model.log))
	}
}

func TestModel_LaterEventCompletesEarlierStage(t *testing.T) {
	model := NewModel("https://x.example/root.md", make(chan tea.Msg))

	newModel, _ := model.Update(EventMsg{Kind: orchestrator.EventEnhance, Message: "enhancing"})
	newModel, _ = newModel.(Model).Update(EventMsg{Kind: orchestrator.EventFetch, Message: "root.md"})
	model = newModel.(Model)

	if model.stages[0].state != StageDone {
		t.Errorf("enhance state = %v, want StageDone", model.stages[0].state)
	}
	if model.stages[1].state != StageRunning {
		t.Errorf("fetch state = %v, want StageRunning", model.stages[1].state)
	}
}

func TestModel_ResultFinishes(t *testing.T) {
	model := NewModel("https://x.example/root.md", make(chan tea.Msg))

	newModel, _ := model.Update(EventMsg{Kind: orchestrator.EventFetch, Message: "root.md"})
	newModel, _ = newModel.(Model).Update(ResultMsg{Result: &domain.IntegrationResult{Success: true}})
	model = newModel.(Model)

	if !model.done {
		t.Error("done = false, want true")
	}
	if model.stages[1].state != StageDone {
		t.Errorf("fetch state = %v, want StageDone", model.stages[1].state)
	}
	// Stages that never ran are skipped, not left pending
	if model.stages[3].state != StageSkipped {
		t.Errorf("dispatch state = %v, want StageSkipped", model.stages[3].state)
	}
}

func TestModel_View(t *testing.T) {
	model := NewModel("https://x.example/root.md", make(chan tea.Msg))

	if got := model.View(); got != "Loading..." {
		t.Errorf("zero-width view = %q, want Loading...", got)
	}

	newModel, _ := model.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	newModel, _ = newModel.(Model).Update(ResultMsg{Result: &domain.IntegrationResult{
		Success: true,
		Metadata: domain.ProcessingMetadata{
			ResourcesFetched: 3,
			ElapsedMs:        150,
		},
	}})
	model = newModel.(Model)

	view := model.View()
	if !strings.Contains(view, "https://x.example/root.md") {
		t.Error("view should contain root URL")
	}
	if !strings.Contains(view, "SUCCESS") {
		t.Error("view should contain result status")
	}
	if !strings.Contains(view, "3 fetched") {
		t.Error("view should contain fetch count")
	}
}

func TestModel_LogCapped(t *testing.T) {
	model := NewModel("https://x.example/root.md", make(chan tea.Msg))

	cur := model
	for i := 0; i < 12; i++ {
		newModel, _ := cur.Update(EventMsg{Kind: orchestrator.EventFetch, Message: "again"})
		cur = newModel.(Model)
	}

	if len(cur.log) > 8 {
		t.Errorf("log length = %d, want <= 8", len(cur.log))
	}
}
