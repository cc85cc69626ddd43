// Package run contains the execution engine: the sequential per-tool state
// machine that turns an approved tool list into a durable session of recorded
// attempts. Tools run strictly one at a time because later commands may be
// built from earlier output.
package run

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/runtimeterrors/aegisec/internal/domain/catalog"
	"github.com/runtimeterrors/aegisec/internal/domain/session"
	"github.com/runtimeterrors/aegisec/internal/infrastructure/executor"
	"github.com/runtimeterrors/aegisec/internal/intelligence"
	"github.com/runtimeterrors/aegisec/internal/safety"
	"github.com/runtimeterrors/aegisec/internal/shared/constants"
)

// StorageError marks run-level persistence failures. Nothing proceeds that
// cannot be recorded, so these abort the run.
type StorageError struct {
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("session storage failure: %v", e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// Options tune the engine. Zero values fall back to the shared defaults.
type Options struct {
	// RetryBudget is the total attempts per tool, first run included.
	RetryBudget int
	// ToolTimeout bounds each attempt's wall clock.
	ToolTimeout time.Duration
	// MaxChained caps collaborator-suggested insertions per run.
	MaxChained int
	// Analyze asks the collaborator to annotate successful output.
	Analyze bool
	// ConfirmFollowUp approves a suggested follow-up tool before it is
	// inserted into the queue. Nil disables chaining entirely: suggestions
	// never run without an explicit approval path.
	ConfirmFollowUp func(intelligence.Recommendation) bool
}

// Plan is the finalized input the CLI hands to the engine: an approved,
// ordered tool list plus the consultation context that produced it.
type Plan struct {
	Target     string
	Category   string
	Operator   string
	Tools      []string
	Params     map[string]string
	Transcript []session.ConsultationTurn
	Notes      string
}

// Engine drives one session at a time. The session it creates is exclusively
// owned for the duration of Run; no other component writes to it.
type Engine struct {
	catalog   *catalog.Catalog
	validator *safety.Validator
	spawner   executor.Spawner
	collab    intelligence.Collaborator
	sessions  session.Repository
	logger    *zap.SugaredLogger
	opts      Options
}

// NewEngine wires the engine. collab may be nil for offline runs; every
// collaborator interaction then degrades to its documented fallback.
func NewEngine(
	cat *catalog.Catalog,
	validator *safety.Validator,
	spawner executor.Spawner,
	collab intelligence.Collaborator,
	sessions session.Repository,
	logger *zap.SugaredLogger,
	opts Options,
) *Engine {
	if opts.RetryBudget <= 0 {
		opts.RetryBudget = constants.DefaultRetryBudget
	}
	if opts.ToolTimeout <= 0 {
		opts.ToolTimeout = constants.DefaultToolTimeout
	}
	if opts.MaxChained < 0 {
		opts.MaxChained = 0
	} else if opts.MaxChained == 0 {
		opts.MaxChained = constants.DefaultMaxChained
	}
	return &Engine{
		catalog:   cat,
		validator: validator,
		spawner:   spawner,
		collab:    collab,
		sessions:  sessions,
		logger:    logger,
		opts:      opts,
	}
}

type queuedTool struct {
	name    string
	chained bool
}

// Run executes the plan and returns the completed session. Per-tool failures
// are recorded and never abort the run; only configuration, storage, and
// cancellation do. On cancellation the partial session is returned alongside
// the context error.
func (e *Engine) Run(ctx context.Context, plan Plan) (*session.Session, error) {
	sess, err := session.New(plan.Target, plan.Category, plan.Operator)
	if err != nil {
		return nil, err
	}
	for _, turn := range plan.Transcript {
		if err := sess.AppendTurn(turn); err != nil {
			return nil, err
		}
	}
	if err := e.sessions.Create(ctx, sess); err != nil {
		return nil, &StorageError{Err: err}
	}

	queue := make([]queuedTool, 0, len(plan.Tools))
	for _, name := range plan.Tools {
		queue = append(queue, queuedTool{name: name})
	}

	rc := newRunContext(plan.Target, plan.Params)
	brief := intelligence.Brief{
		Target:   plan.Target,
		Category: plan.Category,
		Notes:    plan.Notes,
		History:  toExchanges(plan.Transcript),
	}

	var executed []string
	chained := 0
	canceled := false

	for i := 0; i < len(queue); i++ {
		if ctx.Err() != nil {
			canceled = true
			break
		}
		item := queue[i]
		e.logger.Infow("running tool", "session", sess.ID(), "tool", item.name, "position", i+1, "queued", len(queue))

		report, err := e.runTool(ctx, sess, item, rc, brief)
		if err != nil {
			e.abort(sess)
			return sess, err
		}

		if err := sess.RecordOutcome(report.outcome); err != nil {
			e.abort(sess)
			return sess, err
		}
		if err := e.sessions.SaveMeta(ctx, sess); err != nil {
			e.abort(sess)
			return sess, &StorageError{Err: err}
		}
		executed = append(executed, item.name)

		if report.outcome.State == session.StateCanceled {
			canceled = true
			break
		}

		inserted := e.suggestFollowUps(ctx, brief, item.name, report.lastOutput, executed, queue, chained)
		for k, name := range inserted {
			queue = insertAt(queue, i+1+k, queuedTool{name: name, chained: true})
			chained++
		}
	}

	if canceled || ctx.Err() != nil {
		_ = sess.Abort()
		if err := e.sessions.SaveMeta(ctx, sess); err != nil {
			return sess, &StorageError{Err: err}
		}
		return sess, ctx.Err()
	}

	e.attachSummary(ctx, sess, brief)
	if err := sess.Complete(); err != nil {
		return sess, err
	}
	if err := e.sessions.SaveMeta(ctx, sess); err != nil {
		return sess, &StorageError{Err: err}
	}
	return sess, nil
}

type toolReport struct {
	outcome    session.ToolOutcome
	lastOutput string
}

// runTool takes one queued tool through Pending -> Running -> terminal.
// Unknown tools, unresolvable templates, and safety denials go straight to
// FailedFatal with zero subprocess invocations.
func (e *Engine) runTool(ctx context.Context, sess *session.Session, item queuedTool, rc *runContext, brief intelligence.Brief) (toolReport, error) {
	fatal := func(reason string) toolReport {
		e.logger.Warnw("tool not executed", "tool", item.name, "reason", reason)
		return toolReport{outcome: session.ToolOutcome{
			Tool:    item.name,
			State:   session.StateFailedFatal,
			Reason:  reason,
			Chained: item.chained,
		}}
	}

	spec, err := e.catalog.Lookup(item.name)
	if err != nil {
		return fatal(err.Error()), nil
	}

	argv, err := catalog.Resolve(spec, rc.params())
	if err != nil {
		return fatal(err.Error()), nil
	}

	if err := e.validator.Validate(safety.Request{
		Tool:          spec.Name,
		Argv:          argv,
		Target:        rc.target,
		ShellDeclared: spec.NeedsShell,
	}); err != nil {
		return fatal(err.Error()), nil
	}

	state, attempts, reason, lastOutput, err := e.executeWithRetry(ctx, sess, spec, argv, rc, brief)
	if err != nil {
		return toolReport{}, err
	}
	return toolReport{
		outcome: session.ToolOutcome{
			Tool:     spec.Name,
			State:    state,
			Attempts: attempts,
			Reason:   reason,
			Chained:  item.chained,
		},
		lastOutput: lastOutput,
	}, nil
}

// executeWithRetry is the bounded attempt loop. Each attempt appends exactly
// one ExecutionResult; a retry is a new record, never a mutation. The attempt
// counter structurally enforces the retry budget.
func (e *Engine) executeWithRetry(
	ctx context.Context,
	sess *session.Session,
	spec catalog.ToolSpec,
	argv []string,
	rc *runContext,
	brief intelligence.Brief,
) (session.State, int, string, string, error) {
	current := argv
	lastOutput := ""

	for attempt := 1; attempt <= e.opts.RetryBudget; attempt++ {
		started := time.Now().UTC()
		res := e.spawner.Run(ctx, executor.Request{
			Tool:    spec.Name,
			Argv:    current,
			Timeout: e.opts.ToolTimeout,
		})
		lastOutput = res.Stdout

		if ctx.Err() != nil {
			result := &session.ExecutionResult{
				Tool:      spec.Name,
				Argv:      current,
				Attempt:   attempt,
				ExitCode:  res.ExitCode,
				Stdout:    res.Stdout,
				Stderr:    res.Stderr,
				StartedAt: started,
				Duration:  res.Duration.Seconds(),
				Outcome:   session.StateCanceled,
				Error:     ctx.Err().Error(),
			}
			if err := e.sessions.AppendResult(ctx, sess, result); err != nil {
				return "", 0, "", "", &StorageError{Err: err}
			}
			return session.StateCanceled, attempt, "run canceled", lastOutput, nil
		}

		succeeded := res.Err == nil && !res.TimedOut && res.ExitCode == 0
		result := &session.ExecutionResult{
			Tool:      spec.Name,
			Argv:      current,
			Attempt:   attempt,
			ExitCode:  res.ExitCode,
			Stdout:    res.Stdout,
			Stderr:    res.Stderr,
			StartedAt: started,
			Duration:  res.Duration.Seconds(),
			TimedOut:  res.TimedOut,
		}
		if succeeded {
			result.Outcome = session.StateSucceeded
			if e.opts.Analyze && e.collab != nil && res.Stdout != "" {
				if analysis, err := e.collab.AnalyzeOutput(ctx, spec.Name, res.Stdout, rc.target); err == nil {
					result.Analysis = analysis
				}
			}
		} else {
			result.Outcome = session.StateFailedRetryable
			result.Error = attemptError(res)
		}

		if err := e.sessions.AppendResult(ctx, sess, result); err != nil {
			return "", 0, "", "", &StorageError{Err: err}
		}

		if succeeded {
			rc.absorb(res.Stdout)
			return session.StateSucceeded, attempt, "", lastOutput, nil
		}

		e.logger.Warnw("tool attempt failed",
			"tool", spec.Name, "attempt", attempt, "budget", e.opts.RetryBudget, "error", result.Error)

		if attempt < e.opts.RetryBudget {
			current = e.repairCommand(ctx, spec, current, result.Error+"\n"+res.Stderr, rc.target)
		}
	}

	return session.StateFailedFatal, e.opts.RetryBudget, "retry budget exhausted", lastOutput, nil
}

// repairCommand asks the collaborator for a corrected argv. A correction is
// used only when it keeps the same program and passes safety validation;
// otherwise the original command is retried unchanged.
func (e *Engine) repairCommand(ctx context.Context, spec catalog.ToolSpec, argv []string, errorText, target string) []string {
	if e.collab == nil {
		return argv
	}
	fixed, err := e.collab.FixCommand(ctx, spec.Name, argv, errorText)
	if err != nil || len(fixed) == 0 {
		return argv
	}
	if fixed[0] != argv[0] {
		e.logger.Debugw("collaborator fix changed program, ignoring", "tool", spec.Name, "got", fixed[0])
		return argv
	}
	if err := e.validator.Validate(safety.Request{
		Tool:          spec.Name,
		Argv:          fixed,
		Target:        target,
		ShellDeclared: spec.NeedsShell,
	}); err != nil {
		e.logger.Debugw("collaborator fix denied by safety policy", "tool", spec.Name, "error", err)
		return argv
	}
	e.logger.Infow("retrying with corrected command", "tool", spec.Name)
	return fixed
}

// suggestFollowUps returns approved follow-up tool names to insert after the
// current queue position. Collaborator failures skip chaining silently; they
// never fail the run.
func (e *Engine) suggestFollowUps(ctx context.Context, brief intelligence.Brief, tool, output string, executed []string, queue []queuedTool, chained int) []string {
	if e.collab == nil || e.opts.ConfirmFollowUp == nil || output == "" {
		return nil
	}
	if chained >= e.opts.MaxChained || ctx.Err() != nil {
		return nil
	}

	recs, err := e.collab.SuggestFollowUp(ctx, brief, tool, output, executed)
	if err != nil {
		e.logger.Debugw("follow-up suggestion unavailable", "tool", tool, "error", err)
		return nil
	}

	var inserted []string
	budget := e.opts.MaxChained - chained
	for _, rec := range recs {
		if len(inserted) >= budget {
			break
		}
		if _, err := e.catalog.Lookup(rec.Tool); err != nil {
			continue
		}
		if containsTool(queue, rec.Tool) || containsString(executed, rec.Tool) || containsString(inserted, rec.Tool) {
			continue
		}
		if !e.opts.ConfirmFollowUp(rec) {
			e.logger.Infow("follow-up declined", "tool", rec.Tool)
			continue
		}
		inserted = append(inserted, rec.Tool)
	}
	return inserted
}

func (e *Engine) attachSummary(ctx context.Context, sess *session.Session, brief intelligence.Brief) {
	if e.collab == nil || len(sess.Results()) == 0 {
		return
	}
	digests := make([]intelligence.ToolDigest, 0, len(sess.Outcomes()))
	for _, outcome := range sess.Outcomes() {
		digests = append(digests, intelligence.ToolDigest{
			Tool:    outcome.Tool,
			Outcome: string(outcome.State),
			Output:  lastOutputFor(sess, outcome.Tool),
		})
	}
	summary, err := e.collab.Summarize(ctx, brief, digests)
	if err != nil {
		e.logger.Debugw("executive summary unavailable", "error", err)
		return
	}
	sess.SetSummary(summary)
}

func (e *Engine) abort(sess *session.Session) {
	_ = sess.Abort()
	// Best effort: the caller is already returning a run-level error.
	_ = e.sessions.SaveMeta(context.Background(), sess)
}

func attemptError(res executor.Result) string {
	switch {
	case res.TimedOut:
		return fmt.Sprintf("timed out after %.0fs", res.Duration.Seconds())
	case res.Err != nil:
		return res.Err.Error()
	default:
		return fmt.Sprintf("exit status %d", res.ExitCode)
	}
}

func lastOutputFor(sess *session.Session, tool string) string {
	results := sess.Results()
	for i := len(results) - 1; i >= 0; i-- {
		if results[i].Tool == tool {
			return results[i].Stdout
		}
	}
	return ""
}

func toExchanges(turns []session.ConsultationTurn) []intelligence.Exchange {
	exchanges := make([]intelligence.Exchange, 0, len(turns))
	for _, turn := range turns {
		exchanges = append(exchanges, intelligence.Exchange{Question: turn.Question, Answer: turn.Answer})
	}
	return exchanges
}

func insertAt(queue []queuedTool, pos int, item queuedTool) []queuedTool {
	queue = append(queue, queuedTool{})
	copy(queue[pos+1:], queue[pos:])
	queue[pos] = item
	return queue
}

func containsTool(queue []queuedTool, name string) bool {
	for _, q := range queue {
		if q.name == name {
			return true
		}
	}
	return false
}

func containsString(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
