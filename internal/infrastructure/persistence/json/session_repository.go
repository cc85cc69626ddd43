// Package json implements file-backed session persistence. Each session owns
// one directory under the results root: session.json holds the metadata,
// transcript, and outcomes; results.jsonl is the append-only attempt log with
// one JSON document per line, fsynced after every append.
package json

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/runtimeterrors/aegisec/internal/domain/session"
	"github.com/runtimeterrors/aegisec/internal/shared/constants"
	sharedErrors "github.com/runtimeterrors/aegisec/internal/shared/errors"
	"github.com/runtimeterrors/aegisec/internal/shared/security"
)

const (
	metaFilename    = "session.json"
	resultsFilename = "results.jsonl"
)

// sessionDocument is the persisted form of the session metadata.
type sessionDocument struct {
	ID         string                     `json:"id"`
	Target     string                     `json:"target"`
	Category   string                     `json:"category"`
	Operator   string                     `json:"operator"`
	CreatedAt  time.Time                  `json:"created_at"`
	FinishedAt *time.Time                 `json:"finished_at,omitempty"`
	Status     session.Status             `json:"status"`
	Transcript []session.ConsultationTurn `json:"transcript,omitempty"`
	Outcomes   []session.ToolOutcome      `json:"outcomes,omitempty"`
	Summary    string                     `json:"summary,omitempty"`
}

// SessionRepository implements session.Repository on the local filesystem.
type SessionRepository struct {
	resultsDir string
	mu         sync.RWMutex
}

// NewSessionRepository creates the repository rooted at resultsDir.
func NewSessionRepository(resultsDir string) (*SessionRepository, error) {
	if resultsDir == "" {
		return nil, fmt.Errorf("results directory cannot be empty")
	}
	if err := os.MkdirAll(resultsDir, constants.DefaultDirPerm); err != nil {
		return nil, fmt.Errorf("create results directory: %w", err)
	}
	return &SessionRepository{resultsDir: resultsDir}, nil
}

// Create persists the session metadata and prepares an empty attempt log.
func (r *SessionRepository) Create(ctx context.Context, s *session.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	dir, err := r.sessionDir(s.ID())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, constants.DefaultDirPerm); err != nil {
		return fmt.Errorf("%w: create session directory: %v", sharedErrors.ErrRepositoryOperation, err)
	}
	if err := r.writeMeta(dir, s); err != nil {
		return err
	}

	logFile, err := os.OpenFile(filepath.Join(dir, resultsFilename),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, constants.DefaultFilePerm)
	if err != nil {
		return fmt.Errorf("%w: create attempt log: %v", sharedErrors.ErrRepositoryOperation, err)
	}
	return logFile.Close()
}

// AppendResult durably appends one attempt record. The record reaches stable
// storage before this returns; the engine must not proceed past a failure.
func (r *SessionRepository) AppendResult(ctx context.Context, s *session.Session, result *session.ExecutionResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	dir, err := r.sessionDir(s.ID())
	if err != nil {
		return err
	}

	line, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("%w: %v", sharedErrors.ErrSerializationFailed, err)
	}

	f, err := os.OpenFile(filepath.Join(dir, resultsFilename),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, constants.DefaultFilePerm)
	if err != nil {
		return fmt.Errorf("%w: open attempt log: %v", sharedErrors.ErrRepositoryOperation, err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("%w: append attempt: %v", sharedErrors.ErrRepositoryOperation, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("%w: flush attempt log: %v", sharedErrors.ErrRepositoryOperation, err)
	}

	return s.AppendResult(result)
}

// SaveMeta rewrites session.json; the attempt log is untouched.
func (r *SessionRepository) SaveMeta(ctx context.Context, s *session.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	dir, err := r.sessionDir(s.ID())
	if err != nil {
		return err
	}
	return r.writeMeta(dir, s)
}

// FindByID loads a persisted session, reconstructing the aggregate from the
// metadata document plus the ordered attempt log.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*session.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dir, err := r.sessionDir(id)
	if err != nil {
		return nil, err
	}

	doc, err := readMeta(filepath.Join(dir, metaFilename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", sharedErrors.ErrSessionNotFound, id)
		}
		return nil, err
	}

	results, err := readResults(filepath.Join(dir, resultsFilename))
	if err != nil {
		return nil, err
	}

	finished := time.Time{}
	if doc.FinishedAt != nil {
		finished = *doc.FinishedAt
	}
	return session.Reconstruct(doc.ID, doc.Target, doc.Category, doc.Operator,
		doc.CreatedAt, finished, doc.Status, results, doc.Transcript,
		doc.Outcomes, doc.Summary), nil
}

// List returns summaries of stored sessions, newest first.
func (r *SessionRepository) List(ctx context.Context) ([]session.Summary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries, err := os.ReadDir(r.resultsDir)
	if err != nil {
		return nil, fmt.Errorf("%w: read results directory: %v", sharedErrors.ErrRepositoryOperation, err)
	}

	var summaries []session.Summary
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		doc, err := readMeta(filepath.Join(r.resultsDir, entry.Name(), metaFilename))
		if err != nil {
			// Not a session directory; skip rather than fail the listing.
			continue
		}
		count, _ := countLines(filepath.Join(r.resultsDir, entry.Name(), resultsFilename))
		summaries = append(summaries, session.Summary{
			ID:        doc.ID,
			Target:    doc.Target,
			Category:  doc.Category,
			Operator:  doc.Operator,
			CreatedAt: doc.CreatedAt.Format(time.RFC3339),
			Status:    doc.Status,
			Results:   count,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt > summaries[j].CreatedAt
	})
	return summaries, nil
}

func (r *SessionRepository) sessionDir(id string) (string, error) {
	if !security.ValidSessionID(id) {
		return "", fmt.Errorf("%w: %q", sharedErrors.ErrInvalidSessionID, id)
	}
	return security.ResolveWithin(r.resultsDir, id)
}

func (r *SessionRepository) writeMeta(dir string, s *session.Session) error {
	doc := sessionDocument{
		ID:         s.ID(),
		Target:     s.Target(),
		Category:   s.Category(),
		Operator:   s.Operator(),
		CreatedAt:  s.CreatedAt(),
		Status:     s.Status(),
		Transcript: s.Transcript(),
		Outcomes:   s.Outcomes(),
		Summary:    s.Summary(),
	}
	if !s.FinishedAt().IsZero() {
		finished := s.FinishedAt()
		doc.FinishedAt = &finished
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", sharedErrors.ErrSerializationFailed, err)
	}
	data = append(data, '\n')

	// Write-then-rename keeps a crash from leaving a truncated metadata file.
	tmp := filepath.Join(dir, metaFilename+".tmp")
	if err := os.WriteFile(tmp, data, constants.DefaultFilePerm); err != nil {
		return fmt.Errorf("%w: write session metadata: %v", sharedErrors.ErrRepositoryOperation, err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, metaFilename)); err != nil {
		return fmt.Errorf("%w: replace session metadata: %v", sharedErrors.ErrRepositoryOperation, err)
	}
	return nil
}

func readMeta(path string) (*sessionDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc sessionDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", sharedErrors.ErrSerializationFailed, path, err)
	}
	return &doc, nil
}

func readResults(path string) ([]*session.ExecutionResult, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: open attempt log: %v", sharedErrors.ErrRepositoryOperation, err)
	}
	defer f.Close()

	var results []*session.ExecutionResult
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var result session.ExecutionResult
		if err := json.Unmarshal([]byte(line), &result); err != nil {
			return nil, fmt.Errorf("%w: decode attempt record: %v", sharedErrors.ErrSerializationFailed, err)
		}
		results = append(results, &result)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: read attempt log: %v", sharedErrors.ErrRepositoryOperation, err)
	}
	return results, nil
}

func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	count := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) != "" {
			count++
		}
	}
	return count, scanner.Err()
}
