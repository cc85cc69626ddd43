package session

import "context"

// Summary is a lightweight listing entry for stored sessions.
type Summary struct {
	ID        string `json:"id"`
	Target    string `json:"target"`
	Category  string `json:"category"`
	Operator  string `json:"operator"`
	CreatedAt string `json:"created_at"`
	Status    Status `json:"status"`
	Results   int    `json:"results"`
}

// Repository defines the interface for durable session persistence. The
// attempt log is append-only: AppendResult must flush the record to stable
// storage before returning, so a crash mid-run leaves a session whose last
// record is the last completed attempt.
type Repository interface {
	// Create persists a new session's metadata and prepares its attempt log.
	Create(ctx context.Context, s *Session) error

	// AppendResult appends the result to the session's attempt log and to
	// the in-memory aggregate, durably flushing before it returns.
	AppendResult(ctx context.Context, s *Session, result *ExecutionResult) error

	// SaveMeta rewrites the session's metadata document (transcript,
	// outcomes, status, summary). The attempt log is untouched.
	SaveMeta(ctx context.Context, s *Session) error

	// FindByID loads a persisted session.
	FindByID(ctx context.Context, id string) (*Session, error)

	// List returns summaries of all stored sessions, newest first.
	List(ctx context.Context) ([]Summary, error)
}
