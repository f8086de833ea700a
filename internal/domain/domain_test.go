package domain

import (
	"testing"
	"time"
)

func TestFetchStatus_Succeeded(t *testing.T) {
	tests := []struct {
		status FetchStatus
		want   bool
	}{
		{FetchSuccess, true},
		{FetchCached, true},
		{FetchFallbackUsed, true},
		{FetchFailed, false},
	}

	for _, tt := range tests {
		if got := tt.status.Succeeded(); got != tt.want {
			t.Errorf("%s.Succeeded() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestFailedResource(t *testing.T) {
	r := FailedResource("https://example.com/docs/guide.md", time.Now())

	if r.Content != "" {
		t.Errorf("Content = %q, want empty", r.Content)
	}
	if len(r.LinksFound) != 0 {
		t.Errorf("LinksFound count = %d, want 0", len(r.LinksFound))
	}
	if r.FetchStatus != FetchFailed {
		t.Errorf("FetchStatus = %s, want %s", r.FetchStatus, FetchFailed)
	}
}

func TestResource_Expired(t *testing.T) {
	now := time.Now()
	r := &Resource{Identifier: "a", FetchedAt: now.Add(-2 * time.Hour)}

	if !r.Expired(now, time.Hour) {
		t.Error("resource fetched 2h ago should be expired with 1h TTL")
	}
	if r.Expired(now, 3*time.Hour) {
		t.Error("resource fetched 2h ago should not be expired with 3h TTL")
	}
}

func TestClassifyContent(t *testing.T) {
	tests := []struct {
		name       string
		identifier string
		body       string
		want       ContentType
	}{
		{"md extension", "docs/guide.md", "# Guide", ContentMarkdown},
		{"json extension", "config.json", "{}", ContentJSON},
		{"json body", "response", `{"ok": true}`, ContentJSON},
		{"binary body", "blob", "ab\x00cd", ContentBinary},
		{"plain text", "notes", "hello world", ContentMarkdown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyContent(tt.identifier, tt.body)
			if got != tt.want {
				t.Errorf("ClassifyContent(%q) = %s, want %s", tt.identifier, got, tt.want)
			}
		})
	}
}

func TestSession_RecordDedup(t *testing.T) {
	s := NewSession("s1", &Resource{Identifier: "root"})

	first := &FetchResult{Success: true, Resource: &Resource{Identifier: "a", FetchStatus: FetchSuccess}}
	second := &FetchResult{Success: false, Resource: FailedResource("a", time.Now())}

	s.Record("a", first)
	s.Record("a", second) // re-discovered, must not replace
	s.Record("b", &FetchResult{Success: true, Resource: &Resource{Identifier: "b", FetchStatus: FetchSuccess}})

	if s.Size() != 2 {
		t.Errorf("Size = %d, want 2", s.Size())
	}
	got, _ := s.Result("a")
	if got != first {
		t.Error("second Record for same identifier should be ignored")
	}

	order := s.Discovered()
	if order[0] != "a" || order[1] != "b" {
		t.Errorf("Discovered order = %v, want [a b]", order)
	}
}

func TestSession_SuccessCount(t *testing.T) {
	s := NewSession("s1", &Resource{Identifier: "root"})
	s.Record("a", &FetchResult{Resource: &Resource{Identifier: "a", FetchStatus: FetchSuccess}})
	s.Record("b", &FetchResult{Resource: FailedResource("b", time.Now())})
	s.Record("c", &FetchResult{Resource: &Resource{Identifier: "c", FetchStatus: FetchFallbackUsed}})

	if got := s.SuccessCount(); got != 2 {
		t.Errorf("SuccessCount = %d, want 2", got)
	}
}

func TestAssignment_Transitions(t *testing.T) {
	a := NewAssignment("a1", "research", 0, "Discovery", SubTask{Name: "scan", Category: "research"})

	if a.Status() != AssignmentPending {
		t.Errorf("Status = %s, want pending", a.Status())
	}
	if !a.Accept(time.Now()) {
		t.Error("Accept on pending assignment should succeed")
	}
	if a.Accept(time.Now()) {
		t.Error("second Accept should fail")
	}
	if !a.Complete("done", time.Now()) {
		t.Error("Complete on in-progress assignment should succeed")
	}
	if a.Fail("late failure", time.Now()) {
		t.Error("Fail after Complete should be rejected")
	}
	if a.Status() != AssignmentCompleted {
		t.Errorf("Status = %s, want completed", a.Status())
	}
	if a.Result() != "done" {
		t.Errorf("Result = %q, want done", a.Result())
	}
}

func TestAssignment_FailIsTerminal(t *testing.T) {
	a := NewAssignment("a2", "build", 1, "Implementation", SubTask{Name: "compile", Category: "build"})

	if !a.Fail("worker lost", time.Now()) {
		t.Error("Fail on pending assignment should succeed")
	}
	if a.Complete("done", time.Now()) {
		t.Error("Complete after Fail should be rejected")
	}
	if a.Failure() != "worker lost" {
		t.Errorf("Failure = %q, want worker lost", a.Failure())
	}
}

func TestEnhancedRequest_SubTaskCount(t *testing.T) {
	r := &EnhancedRequest{
		TaskHierarchy: []TaskPhase{
			{Name: "Discovery", SubTasks: []SubTask{{Name: "a"}, {Name: "b"}}},
			{Name: "Implementation", SubTasks: []SubTask{{Name: "c"}}},
		},
	}
	if got := r.SubTaskCount(); got != 3 {
		t.Errorf("SubTaskCount = %d, want 3", got)
	}
}
