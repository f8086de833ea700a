// Package notify sends pipeline run notifications to Slack and the
// desktop. All notifiers are optional; disabled ones turn into no-ops.
package notify

import (
	"fmt"

	"github.com/datengrube/context-orchestrator/internal/domain"
)

// NotificationType represents the type of notification
type NotificationType int

const (
	NotifyInfo NotificationType = iota
	NotifySuccess
	NotifyWarning
	NotifyError
)

// Notification represents a notification to be sent
type Notification struct {
	Title   string
	Message string
	Type    NotificationType
	RootURL string // Optional root resource reference
}

// Notifier is the interface for sending notifications
type Notifier interface {
	Send(n Notification) error
}

// FromResult builds a run summary notification from a pipeline result
func FromResult(rootURL string, result *domain.IntegrationResult) Notification {
	n := Notification{
		RootURL: rootURL,
		Type:    NotifySuccess,
		Title:   "Pipeline run completed",
	}
	if !result.Success {
		n.Type = NotifyError
		n.Title = "Pipeline run failed"
		n.Message = fmt.Sprintf("root fetch failed (%s) after %dms", result.Metadata.RootErrorKind, result.Metadata.ElapsedMs)
		return n
	}

	n.Message = fmt.Sprintf("%d resources fetched, %d agents dispatched in %dms",
		result.Metadata.ResourcesFetched, result.Metadata.AgentsDispatched, result.Metadata.ElapsedMs)
	if result.Metadata.ResourcesFailed > 0 || result.Metadata.AssignmentsFailed > 0 {
		n.Type = NotifyWarning
		n.Message += fmt.Sprintf(" (%d fetches failed, %d assignments failed)",
			result.Metadata.ResourcesFailed, result.Metadata.AssignmentsFailed)
	}
	return n
}

// MultiNotifier sends to multiple notifiers
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier creates a notifier that sends to all provided notifiers
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

// Send sends the notification to all notifiers
func (m *MultiNotifier) Send(n Notification) error {
	var lastErr error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(n); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// NoopNotifier does nothing (for testing or disabled notifications)
type NoopNotifier struct{}

func (NoopNotifier) Send(n Notification) error { return nil }
