package cmd

import (
	"strings"
	"testing"
)

func TestFormatStateWithColor_KeepsLabel(t *testing.T) {
	for _, state := range []string{"succeeded", "completed", "failed_fatal", "aborted", "failed_retryable", "canceled", "running"} {
		got := formatStateWithColor(state)
		if !strings.Contains(got, state) {
			t.Errorf("state %q lost in formatting: %q", state, got)
		}
	}
}
