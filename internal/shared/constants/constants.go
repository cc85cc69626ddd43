package constants

import (
	"io/fs"
	"time"
)

const (
	// DefaultDirPerm is the default permission used when creating directories.
	DefaultDirPerm fs.FileMode = 0o755
	// DefaultFilePerm is the default permission used when creating files.
	DefaultFilePerm fs.FileMode = 0o644
)

const (
	// DefaultToolTimeout bounds a single tool attempt.
	DefaultToolTimeout = 5 * time.Minute
	// DefaultRetryBudget is the total attempt budget per tool, including the first run.
	DefaultRetryBudget = 2
	// DefaultMaxChained caps how many collaborator-suggested follow-up tools one run may insert.
	DefaultMaxChained = 3
	// PromptOutputLimitBytes caps how much captured tool output is forwarded to the collaborator.
	PromptOutputLimitBytes = 4096
	// ConsultationMaxTurns bounds the pre-run question/answer exchange.
	ConsultationMaxTurns = 3
)

const (
	// DefaultAPITimeout bounds a single collaborator request.
	DefaultAPITimeout = 60 * time.Second
	// DefaultAPIRequestsPerMinute throttles collaborator calls.
	DefaultAPIRequestsPerMinute = 20
)
