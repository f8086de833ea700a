package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("255")).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	runningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	completedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	failedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	dimmedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("255"))
)

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder

	elapsed := time.Since(m.started).Round(time.Second)
	header := fmt.Sprintf(" Context Orchestrator │ %s │ %s ", m.rootURL, elapsed)
	b.WriteString(headerStyle.Width(m.width).Render(header))
	b.WriteString("\n")

	b.WriteString(sectionStyle.Width(m.width - 2).Render(m.renderStages()))
	b.WriteString("\n")

	if len(m.log) > 0 {
		b.WriteString(sectionStyle.Width(m.width - 2).Render(m.renderLog()))
		b.WriteString("\n")
	}

	if m.done && m.result != nil {
		b.WriteString(sectionStyle.Width(m.width - 2).Render(m.renderSummary()))
		b.WriteString("\n")
	}

	b.WriteString(statusBarStyle.Width(m.width).Render(" [q]uit "))

	return b.String()
}

func (m Model) renderStages() string {
	var b strings.Builder
	b.WriteString("Pipeline\n")
	for _, s := range m.stages {
		var line string
		switch s.state {
		case StageRunning:
			line = runningStyle.Render("▶ " + s.label)
		case StageDone:
			line = completedStyle.Render("✓ " + s.label)
		case StageSkipped:
			line = dimmedStyle.Render("- " + s.label)
		default:
			line = dimmedStyle.Render("  " + s.label)
		}
		if s.detail != "" && s.state == StageRunning {
			line += dimmedStyle.Render("  " + s.detail)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) renderLog() string {
	var b strings.Builder
	b.WriteString("Recent\n")
	for _, entry := range m.log {
		b.WriteString(dimmedStyle.Render(entry))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) renderSummary() string {
	md := m.result.Metadata

	status := completedStyle.Render("SUCCESS")
	if !m.result.Success {
		status = failedStyle.Render(fmt.Sprintf("FAILED (%s)", md.RootErrorKind))
	}

	var b strings.Builder
	b.WriteString("Result: " + status + "\n")
	b.WriteString(fmt.Sprintf("Resources: %d fetched, %d failed\n", md.ResourcesFetched, md.ResourcesFailed))
	if md.EnhancementApplied {
		line := "Enhancement: applied"
		if len(md.EnhancementDegraded) > 0 {
			line += " (degraded: " + strings.Join(md.EnhancementDegraded, ", ") + ")"
		}
		b.WriteString(line + "\n")
	}
	if md.AgentsDispatched > 0 {
		b.WriteString(fmt.Sprintf("Agents: %d dispatched, %d failed\n", md.AgentsDispatched, md.AssignmentsFailed))
	}
	b.WriteString(fmt.Sprintf("Elapsed: %dms", md.ElapsedMs))
	return b.String()
}
