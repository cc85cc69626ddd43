package session

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	sharedErrors "github.com/runtimeterrors/aegisec/internal/shared/errors"
)

// Session is the durable, append-only record of one orchestrated run. It
// serves as an aggregate root owning the ordered attempt log, the
// consultation transcript, and the per-tool final outcomes. One run of the
// execution engine owns its session exclusively; nothing else writes to it.
type Session struct {
	id         string
	target     string
	category   string
	operator   string
	createdAt  time.Time
	finishedAt time.Time
	status     Status
	results    []*ExecutionResult
	transcript []ConsultationTurn
	outcomes   []ToolOutcome
	summary    string
}

// Status represents the lifecycle of a session as a whole.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusAborted   Status = "aborted"
)

// State is the terminal state of one tool inside a run.
type State string

const (
	StateSucceeded       State = "succeeded"
	StateFailedRetryable State = "failed_retryable"
	StateFailedFatal     State = "failed_fatal"
	StateCanceled        State = "canceled"
)

// ExecutionResult records a single attempt of a single tool. Immutable once
// produced; retries append a new result, they never mutate an old one.
type ExecutionResult struct {
	Tool      string    `json:"tool"`
	Argv      []string  `json:"argv"`
	Attempt   int       `json:"attempt"`
	ExitCode  int       `json:"exit_code"`
	Stdout    string    `json:"stdout"`
	Stderr    string    `json:"stderr"`
	StartedAt time.Time `json:"started_at"`
	Duration  float64   `json:"duration_seconds"`
	Outcome   State     `json:"outcome"`
	TimedOut  bool      `json:"timed_out,omitempty"`
	Error     string    `json:"error,omitempty"`
	Analysis  string    `json:"analysis,omitempty"`
}

// ConsultationTurn is one question/answer exchange with the collaborator
// prior to tool selection.
type ConsultationTurn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// ToolOutcome records the terminal state of one tool after all attempts,
// including tools that never spawned a process (denied or unresolvable
// commands). Outcomes are ordered by completion.
type ToolOutcome struct {
	Tool     string `json:"tool"`
	State    State  `json:"state"`
	Attempts int    `json:"attempts"`
	Reason   string `json:"reason,omitempty"`
	Chained  bool   `json:"chained,omitempty"`
}

// New creates a running session for the given target.
func New(target, category, operator string) (*Session, error) {
	if target == "" {
		return nil, sharedErrors.ErrEmptyTarget
	}
	if operator == "" {
		return nil, sharedErrors.ErrEmptyOperator
	}
	return &Session{
		id:        generateID(),
		target:    target,
		category:  category,
		operator:  operator,
		createdAt: time.Now().UTC(),
		status:    StatusRunning,
	}, nil
}

// Reconstruct rebuilds a session from persisted data.
func Reconstruct(id, target, category, operator string, createdAt, finishedAt time.Time,
	status Status, results []*ExecutionResult, transcript []ConsultationTurn,
	outcomes []ToolOutcome, summary string) *Session {
	return &Session{
		id:         id,
		target:     target,
		category:   category,
		operator:   operator,
		createdAt:  createdAt,
		finishedAt: finishedAt,
		status:     status,
		results:    results,
		transcript: transcript,
		outcomes:   outcomes,
		summary:    summary,
	}
}

// AppendResult appends an attempt record to the ordered log.
func (s *Session) AppendResult(result *ExecutionResult) error {
	if s.status != StatusRunning {
		return sharedErrors.ErrSessionFinished
	}
	s.results = append(s.results, result)
	return nil
}

// AppendTurn appends a consultation exchange to the transcript.
func (s *Session) AppendTurn(turn ConsultationTurn) error {
	if s.status != StatusRunning {
		return sharedErrors.ErrSessionFinished
	}
	s.transcript = append(s.transcript, turn)
	return nil
}

// RecordOutcome appends a tool's terminal state.
func (s *Session) RecordOutcome(outcome ToolOutcome) error {
	if s.status != StatusRunning {
		return sharedErrors.ErrSessionFinished
	}
	s.outcomes = append(s.outcomes, outcome)
	return nil
}

// SetSummary attaches the collaborator's executive summary.
func (s *Session) SetSummary(summary string) {
	s.summary = summary
}

// Complete marks the session finished.
func (s *Session) Complete() error {
	if s.status != StatusRunning {
		return sharedErrors.ErrSessionFinished
	}
	s.status = StatusCompleted
	s.finishedAt = time.Now().UTC()
	return nil
}

// Abort marks the session terminated early (cancellation or a run-level
// failure). Results appended so far are retained.
func (s *Session) Abort() error {
	if s.status != StatusRunning {
		return sharedErrors.ErrSessionFinished
	}
	s.status = StatusAborted
	s.finishedAt = time.Now().UTC()
	return nil
}

// Getters

func (s *Session) ID() string                      { return s.id }
func (s *Session) Target() string                  { return s.target }
func (s *Session) Category() string                { return s.category }
func (s *Session) Operator() string                { return s.operator }
func (s *Session) CreatedAt() time.Time            { return s.createdAt }
func (s *Session) FinishedAt() time.Time           { return s.finishedAt }
func (s *Session) Status() Status                  { return s.status }
func (s *Session) Results() []*ExecutionResult     { return s.results }
func (s *Session) Transcript() []ConsultationTurn  { return s.transcript }
func (s *Session) Outcomes() []ToolOutcome         { return s.outcomes }
func (s *Session) Summary() string                 { return s.summary }

// SucceededCount reports how many attempts succeeded.
func (s *Session) SucceededCount() int {
	n := 0
	for _, r := range s.results {
		if r.Outcome == StateSucceeded {
			n++
		}
	}
	return n
}

func generateID() string {
	buf := make([]byte, 4)
	_, _ = rand.Read(buf)
	return "run-" + time.Now().UTC().Format("20060102-150405") + "-" + hex.EncodeToString(buf)
}
