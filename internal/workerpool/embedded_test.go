package workerpool

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/datengrube/context-orchestrator/internal/domain"
)

func TestEmbeddedRunner_DefaultTask(t *testing.T) {
	runner := NewEmbeddedRunner(EmbeddedConfig{MaxTasks: 1})

	a := domain.NewAssignment("a-1", "research", 0, "Discovery", domain.SubTask{
		Name:     "survey existing designs",
		Category: "research",
	})

	output, err := runner.Execute(context.Background(), a)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(output, "survey existing designs") {
		t.Errorf("got output %q, want task name included", output)
	}

	// Slot released after completion
	if got := runner.Pool().Available(); got != 1 {
		t.Errorf("got available=%d, want 1", got)
	}
}

func TestEmbeddedRunner_CustomTaskFunc(t *testing.T) {
	runner := NewEmbeddedRunner(EmbeddedConfig{
		MaxTasks: 1,
		Run: func(ctx context.Context, a *domain.SquadAssignment) (string, error) {
			return "custom: " + a.SubTask.Name, nil
		},
	})

	a := domain.NewAssignment("a-1", "build", 0, "Implementation", domain.SubTask{Name: "wire transport"})
	output, err := runner.Execute(context.Background(), a)
	if err != nil {
		t.Fatal(err)
	}
	if output != "custom: wire transport" {
		t.Errorf("got output %q, want custom task result", output)
	}
}

func TestEmbeddedRunner_NoSlots(t *testing.T) {
	release := make(chan struct{})
	runner := NewEmbeddedRunner(EmbeddedConfig{
		MaxTasks: 1,
		Run: func(ctx context.Context, a *domain.SquadAssignment) (string, error) {
			<-release
			return "done", nil
		},
	})

	a := domain.NewAssignment("a-1", "research", 0, "Discovery", domain.SubTask{Name: "first"})
	go runner.Execute(context.Background(), a)

	// Wait for the slot to be claimed
	deadline := time.Now().Add(time.Second)
	for runner.Pool().Available() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("first assignment never claimed a slot")
		}
		time.Sleep(5 * time.Millisecond)
	}

	b := domain.NewAssignment("a-2", "research", 0, "Discovery", domain.SubTask{Name: "second"})
	if _, err := runner.Execute(context.Background(), b); err == nil {
		t.Error("expected error when all slots busy")
	}

	close(release)
}

func TestEmbeddedRunner_TaskError(t *testing.T) {
	runner := NewEmbeddedRunner(EmbeddedConfig{
		MaxTasks: 1,
		Run: func(ctx context.Context, a *domain.SquadAssignment) (string, error) {
			return "", fmt.Errorf("task blew up")
		},
	})

	a := domain.NewAssignment("a-1", "research", 0, "Discovery", domain.SubTask{Name: "doomed"})
	if _, err := runner.Execute(context.Background(), a); err == nil {
		t.Error("expected task error to propagate")
	}

	if got := runner.Pool().Available(); got != 1 {
		t.Errorf("got available=%d after failure, want 1", got)
	}
}
