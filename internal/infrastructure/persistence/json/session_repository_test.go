package json

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/runtimeterrors/aegisec/internal/domain/session"
	sharedErrors "github.com/runtimeterrors/aegisec/internal/shared/errors"
)

func newTestRepo(t *testing.T) *SessionRepository {
	t.Helper()
	repo, err := NewSessionRepository(t.TempDir())
	if err != nil {
		t.Fatalf("NewSessionRepository failed: %v", err)
	}
	return repo
}

func newTestSession(t *testing.T) *session.Session {
	t.Helper()
	s, err := session.New("scanme.example.com", "network_scanning", "alex")
	if err != nil {
		t.Fatalf("session.New failed: %v", err)
	}
	return s
}

func TestCreate_WritesMetaAndEmptyLog(t *testing.T) {
	repo := newTestRepo(t)
	s := newTestSession(t)
	ctx := context.Background()

	if err := repo.Create(ctx, s); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	dir := filepath.Join(repo.resultsDir, s.ID())
	if _, err := os.Stat(filepath.Join(dir, "session.json")); err != nil {
		t.Errorf("session.json missing: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "results.jsonl"))
	if err != nil {
		t.Fatalf("results.jsonl missing: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("attempt log should start empty, got %q", data)
	}
}

func TestAppendResult_OneLinePerAttempt(t *testing.T) {
	repo := newTestRepo(t)
	s := newTestSession(t)
	ctx := context.Background()
	if err := repo.Create(ctx, s); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	for i := 1; i <= 3; i++ {
		result := &session.ExecutionResult{
			Tool:      "nmap",
			Argv:      []string{"nmap", "-sV", "scanme.example.com"},
			Attempt:   i,
			StartedAt: time.Now().UTC(),
			Outcome:   session.StateFailedRetryable,
		}
		if err := repo.AppendResult(ctx, s, result); err != nil {
			t.Fatalf("append %d failed: %v", i, err)
		}
	}

	data, err := os.ReadFile(filepath.Join(repo.resultsDir, s.ID(), "results.jsonl"))
	if err != nil {
		t.Fatalf("read log failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	for i, line := range lines {
		var rec session.ExecutionResult
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("line %d not valid JSON: %v", i, err)
		}
		if rec.Attempt != i+1 {
			t.Errorf("line %d: attempt %d, want %d", i, rec.Attempt, i+1)
		}
	}
	if len(s.Results()) != 3 {
		t.Errorf("in-memory aggregate not updated, %d results", len(s.Results()))
	}
}

func TestFindByID_RoundTripsSession(t *testing.T) {
	repo := newTestRepo(t)
	s := newTestSession(t)
	ctx := context.Background()
	if err := repo.Create(ctx, s); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	_ = s.AppendTurn(session.ConsultationTurn{Question: "scope?", Answer: "ports only"})
	result := &session.ExecutionResult{
		Tool:      "nmap",
		Argv:      []string{"nmap", "-sV", "scanme.example.com"},
		Attempt:   1,
		ExitCode:  0,
		Stdout:    "22/tcp open ssh\n80/tcp open http\n",
		StartedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Duration:  12.5,
		Outcome:   session.StateSucceeded,
	}
	if err := repo.AppendResult(ctx, s, result); err != nil {
		t.Fatalf("AppendResult failed: %v", err)
	}
	_ = s.RecordOutcome(session.ToolOutcome{Tool: "nmap", State: session.StateSucceeded, Attempts: 1})
	s.SetSummary("one service host")
	_ = s.Complete()
	if err := repo.SaveMeta(ctx, s); err != nil {
		t.Fatalf("SaveMeta failed: %v", err)
	}

	loaded, err := repo.FindByID(ctx, s.ID())
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if loaded.ID() != s.ID() || loaded.Target() != s.Target() || loaded.Status() != session.StatusCompleted {
		t.Fatal("metadata not restored")
	}
	if loaded.Summary() != "one service host" {
		t.Errorf("summary not restored: %q", loaded.Summary())
	}
	if len(loaded.Transcript()) != 1 || loaded.Transcript()[0].Answer != "ports only" {
		t.Error("transcript not restored")
	}
	if len(loaded.Results()) != 1 {
		t.Fatalf("expected 1 result, got %d", len(loaded.Results()))
	}
	got := loaded.Results()[0]
	if got.Stdout != result.Stdout || got.Duration != result.Duration || got.Outcome != result.Outcome {
		t.Errorf("result fields not restored: %+v", got)
	}

	// The reloaded attempt must serialize to the identical log line.
	want, _ := json.Marshal(result)
	gotLine, _ := json.Marshal(got)
	if string(want) != string(gotLine) {
		t.Errorf("attempt record round-trip mismatch:\n%s\n%s", want, gotLine)
	}
}

func TestFindByID_NotFound(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.FindByID(context.Background(), "run-20260301-100000-deadbeef")
	if !errors.Is(err, sharedErrors.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestFindByID_RejectsTraversal(t *testing.T) {
	repo := newTestRepo(t)
	for _, id := range []string{"../etc", "a/b", "", "UPPER", ".hidden"} {
		_, err := repo.FindByID(context.Background(), id)
		if !errors.Is(err, sharedErrors.ErrInvalidSessionID) {
			t.Errorf("id %q: expected ErrInvalidSessionID, got %v", id, err)
		}
	}
}

func TestList_NewestFirstAndSkipsForeignDirs(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		s := newTestSession(t)
		if err := repo.Create(ctx, s); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		ids = append(ids, s.ID())
	}
	// A directory without session.json must be skipped, not fail the listing.
	if err := os.MkdirAll(filepath.Join(repo.resultsDir, "not-a-session"), 0o755); err != nil {
		t.Fatal(err)
	}

	summaries, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(summaries) != 3 {
		t.Fatalf("expected 3 summaries, got %d", len(summaries))
	}
	for i := 1; i < len(summaries); i++ {
		if summaries[i-1].CreatedAt < summaries[i].CreatedAt {
			t.Errorf("not newest first: %s before %s", summaries[i-1].CreatedAt, summaries[i].CreatedAt)
		}
	}
	found := 0
	for _, sum := range summaries {
		for _, id := range ids {
			if sum.ID == id {
				found++
			}
		}
	}
	if found != 3 {
		t.Errorf("listing missing created sessions: %d of 3", found)
	}
}

func TestSaveMeta_PreservesAttemptLog(t *testing.T) {
	repo := newTestRepo(t)
	s := newTestSession(t)
	ctx := context.Background()
	if err := repo.Create(ctx, s); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := repo.AppendResult(ctx, s, &session.ExecutionResult{Tool: "nmap", Attempt: 1, Outcome: session.StateSucceeded}); err != nil {
		t.Fatalf("AppendResult failed: %v", err)
	}

	before, _ := os.ReadFile(filepath.Join(repo.resultsDir, s.ID(), "results.jsonl"))
	_ = s.Complete()
	if err := repo.SaveMeta(ctx, s); err != nil {
		t.Fatalf("SaveMeta failed: %v", err)
	}
	after, _ := os.ReadFile(filepath.Join(repo.resultsDir, s.ID(), "results.jsonl"))
	if string(before) != string(after) {
		t.Fatal("SaveMeta must not touch the attempt log")
	}
}
