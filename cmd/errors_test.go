package cmd

import (
	"errors"
	"fmt"
	"testing"

	runapp "github.com/runtimeterrors/aegisec/internal/application/run"
	sharedErrors "github.com/runtimeterrors/aegisec/internal/shared/errors"
)

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitOK},
		{"generic", errors.New("boom"), exitGeneric},
		{"missing api key", sharedErrors.ErrMissingAPIKey, exitConfig},
		{"wrapped missing api key", fmt.Errorf("setup: %w", sharedErrors.ErrMissingAPIKey), exitConfig},
		{"storage error", &runapp.StorageError{Err: errors.New("disk full")}, exitStorage},
		{"wrapped storage error", fmt.Errorf("run: %w", &runapp.StorageError{Err: errors.New("x")}), exitStorage},
		{"repository sentinel", fmt.Errorf("%w: open", sharedErrors.ErrRepositoryOperation), exitStorage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCodeFor(tt.err); got != tt.want {
				t.Fatalf("exitCodeFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
