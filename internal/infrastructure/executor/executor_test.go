//go:build !windows

package executor

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestRun_CapturesStdout(t *testing.T) {
	res := OSSpawner{}.Run(context.Background(), Request{
		Tool: "echo",
		Argv: []string{"echo", "hello", "world"},
	})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.ExitCode != 0 {
		t.Fatalf("expected exit 0, got %d", res.ExitCode)
	}
	if strings.TrimSpace(res.Stdout) != "hello world" {
		t.Fatalf("unexpected stdout %q", res.Stdout)
	}
}

func TestRun_NonZeroExitIsNotAnError(t *testing.T) {
	res := OSSpawner{}.Run(context.Background(), Request{
		Tool: "false",
		Argv: []string{"false"},
	})
	if res.Err != nil {
		t.Fatalf("non-zero exit should not set Err, got %v", res.Err)
	}
	if res.ExitCode == 0 {
		t.Fatal("expected non-zero exit code")
	}
}

func TestRun_MissingBinary(t *testing.T) {
	res := OSSpawner{}.Run(context.Background(), Request{
		Tool: "definitely-not-installed",
		Argv: []string{"definitely-not-installed-xyz"},
	})
	if res.Err == nil {
		t.Fatal("expected spawn error for missing binary")
	}
	if res.ExitCode != -1 {
		t.Fatalf("expected exit -1, got %d", res.ExitCode)
	}
}

func TestRun_EmptyArgv(t *testing.T) {
	res := OSSpawner{}.Run(context.Background(), Request{Tool: "x"})
	if res.Err == nil {
		t.Fatal("expected error for empty argv")
	}
}

func TestRun_TimeoutKillsProcess(t *testing.T) {
	start := time.Now()
	res := OSSpawner{}.Run(context.Background(), Request{
		Tool:    "sleep",
		Argv:    []string{"sleep", "30"},
		Timeout: 200 * time.Millisecond,
	})
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("timeout not enforced, took %v", elapsed)
	}
	if !res.TimedOut {
		t.Fatal("expected TimedOut")
	}
	if res.ExitCode != -1 {
		t.Fatalf("expected exit -1 on timeout, got %d", res.ExitCode)
	}
	if res.Err != nil {
		t.Fatalf("timeout is a recorded outcome, not an error: %v", res.Err)
	}
}

func TestRun_TimeoutKillsChildren(t *testing.T) {
	// The shell spawns a child sleep; killing the process group must not
	// leave Run blocked on the child's inherited pipes.
	done := make(chan Result, 1)
	go func() {
		done <- OSSpawner{}.Run(context.Background(), Request{
			Tool:    "sh",
			Argv:    []string{"sh", "-c", "sleep 30 & wait"},
			Timeout: 200 * time.Millisecond,
		})
	}()
	select {
	case res := <-done:
		if !res.TimedOut {
			t.Fatal("expected TimedOut")
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after process-group kill")
	}
}

func TestRun_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()
	res := OSSpawner{}.Run(ctx, Request{
		Tool:    "sleep",
		Argv:    []string{"sleep", "30"},
		Timeout: time.Minute,
	})
	if res.Err == nil {
		t.Fatal("expected context error")
	}
	if res.TimedOut {
		t.Fatal("cancellation must not be reported as a timeout")
	}
}
