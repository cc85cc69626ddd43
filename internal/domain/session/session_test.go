package session

import (
	"errors"
	"strings"
	"testing"
	"time"

	sharedErrors "github.com/runtimeterrors/aegisec/internal/shared/errors"
)

func TestNew_RequiresTargetAndOperator(t *testing.T) {
	if _, err := New("", "general", "alex"); !errors.Is(err, sharedErrors.ErrEmptyTarget) {
		t.Errorf("expected ErrEmptyTarget, got %v", err)
	}
	if _, err := New("example.com", "general", ""); !errors.Is(err, sharedErrors.ErrEmptyOperator) {
		t.Errorf("expected ErrEmptyOperator, got %v", err)
	}
}

func TestNew_StartsRunningWithGeneratedID(t *testing.T) {
	s, err := New("example.com", "general", "alex")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if s.Status() != StatusRunning {
		t.Errorf("expected running, got %s", s.Status())
	}
	if !strings.HasPrefix(s.ID(), "run-") {
		t.Errorf("unexpected id %q", s.ID())
	}
	if s.CreatedAt().IsZero() || !s.FinishedAt().IsZero() {
		t.Error("timestamps not initialized correctly")
	}
}

func TestAppendResult_PreservesOrder(t *testing.T) {
	s, _ := New("example.com", "general", "alex")
	for i := 1; i <= 3; i++ {
		err := s.AppendResult(&ExecutionResult{Tool: "nmap", Attempt: i, Outcome: StateFailedRetryable})
		if err != nil {
			t.Fatalf("append %d failed: %v", i, err)
		}
	}
	results := s.Results()
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, r := range results {
		if r.Attempt != i+1 {
			t.Errorf("result %d out of order: attempt %d", i, r.Attempt)
		}
	}
}

func TestComplete_FreezesSession(t *testing.T) {
	s, _ := New("example.com", "general", "alex")
	if err := s.Complete(); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if s.Status() != StatusCompleted || s.FinishedAt().IsZero() {
		t.Fatal("completion state not recorded")
	}

	if err := s.AppendResult(&ExecutionResult{Tool: "nmap"}); !errors.Is(err, sharedErrors.ErrSessionFinished) {
		t.Errorf("append after finish: expected ErrSessionFinished, got %v", err)
	}
	if err := s.RecordOutcome(ToolOutcome{Tool: "nmap"}); !errors.Is(err, sharedErrors.ErrSessionFinished) {
		t.Errorf("outcome after finish: expected ErrSessionFinished, got %v", err)
	}
	if err := s.Complete(); !errors.Is(err, sharedErrors.ErrSessionFinished) {
		t.Errorf("double complete: expected ErrSessionFinished, got %v", err)
	}
	if err := s.Abort(); !errors.Is(err, sharedErrors.ErrSessionFinished) {
		t.Errorf("abort after complete: expected ErrSessionFinished, got %v", err)
	}
}

func TestAbort_RetainsResults(t *testing.T) {
	s, _ := New("example.com", "general", "alex")
	_ = s.AppendResult(&ExecutionResult{Tool: "nmap", Attempt: 1, Outcome: StateSucceeded})
	if err := s.Abort(); err != nil {
		t.Fatalf("Abort failed: %v", err)
	}
	if s.Status() != StatusAborted {
		t.Errorf("expected aborted, got %s", s.Status())
	}
	if len(s.Results()) != 1 {
		t.Error("results lost on abort")
	}
}

func TestSucceededCount(t *testing.T) {
	s, _ := New("example.com", "general", "alex")
	_ = s.AppendResult(&ExecutionResult{Tool: "nmap", Outcome: StateFailedRetryable})
	_ = s.AppendResult(&ExecutionResult{Tool: "nmap", Outcome: StateSucceeded})
	_ = s.AppendResult(&ExecutionResult{Tool: "nikto", Outcome: StateSucceeded})
	if got := s.SucceededCount(); got != 2 {
		t.Fatalf("SucceededCount = %d, want 2", got)
	}
}

func TestReconstruct_RoundTrip(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	finished := created.Add(5 * time.Minute)
	results := []*ExecutionResult{{Tool: "nmap", Attempt: 1, Outcome: StateSucceeded}}
	transcript := []ConsultationTurn{{Question: "scope?", Answer: "full"}}
	outcomes := []ToolOutcome{{Tool: "nmap", State: StateSucceeded, Attempts: 1}}

	s := Reconstruct("run-x", "example.com", "general", "alex",
		created, finished, StatusCompleted, results, transcript, outcomes, "done")

	if s.ID() != "run-x" || s.Status() != StatusCompleted || s.Summary() != "done" {
		t.Fatal("scalar fields not restored")
	}
	if len(s.Results()) != 1 || len(s.Transcript()) != 1 || len(s.Outcomes()) != 1 {
		t.Fatal("collections not restored")
	}
	if !s.FinishedAt().Equal(finished) {
		t.Fatal("finished timestamp not restored")
	}
}

func TestGenerateID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id := generateID()
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}
