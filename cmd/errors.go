package cmd

import (
	"errors"

	runapp "github.com/runtimeterrors/aegisec/internal/application/run"
	sharedErrors "github.com/runtimeterrors/aegisec/internal/shared/errors"
)

// Exit codes: 0 success, 2 configuration error, 3 storage error, 1 anything
// else. Per-tool failures are recorded in the session and do not affect the
// exit code; only run-level errors reach here.
const (
	exitOK      = 0
	exitGeneric = 1
	exitConfig  = 2
	exitStorage = 3
)

func exitCodeFor(err error) int {
	if err == nil {
		return exitOK
	}
	var storageErr *runapp.StorageError
	if errors.As(err, &storageErr) || errors.Is(err, sharedErrors.ErrRepositoryOperation) {
		return exitStorage
	}
	if errors.Is(err, sharedErrors.ErrMissingAPIKey) {
		return exitConfig
	}
	return exitGeneric
}
