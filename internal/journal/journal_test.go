package journal

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	jnl, err := Open(filepath.Join(t.TempDir(), "camlaunch.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { jnl.Close() })
	return jnl
}

func TestRunLifecycle(t *testing.T) {
	jnl := openTestJournal(t)
	ctx := context.Background()

	runID, err := jnl.StartRun(ctx, "headless", 0)
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}

	if err := jnl.RecordStep(ctx, runID, "self-update", "skipped", "already up to date"); err != nil {
		t.Fatalf("RecordStep failed: %v", err)
	}
	if err := jnl.RecordStep(ctx, runID, "runtime", "ok", "Python 3.10.12"); err != nil {
		t.Fatalf("RecordStep failed: %v", err)
	}
	if err := jnl.FinishRun(ctx, runID, "ok", ""); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	runs, err := jnl.RecentRuns(ctx, 10)
	if err != nil {
		t.Fatalf("RecentRuns failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	if runs[0].Mode != "headless" {
		t.Errorf("Mode = %q, want %q", runs[0].Mode, "headless")
	}
	if runs[0].Outcome != "ok" {
		t.Errorf("Outcome = %q, want %q", runs[0].Outcome, "ok")
	}
	if runs[0].FinishedAt.IsZero() {
		t.Error("FinishedAt should be set after FinishRun")
	}

	steps, err := jnl.Steps(ctx, runID)
	if err != nil {
		t.Fatalf("Steps failed: %v", err)
	}
	if len(steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(steps))
	}
	if steps[0].Name != "self-update" || steps[0].Status != "skipped" {
		t.Errorf("first step = %+v", steps[0])
	}
	if steps[1].Detail != "Python 3.10.12" {
		t.Errorf("step detail = %q", steps[1].Detail)
	}
}

func TestFatalRunKeepsError(t *testing.T) {
	jnl := openTestJournal(t)
	ctx := context.Background()

	runID, _ := jnl.StartRun(ctx, "interactive", 0)
	if err := jnl.FinishRun(ctx, runID, "fatal", "python3 is still missing"); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	runs, _ := jnl.RecentRuns(ctx, 1)
	if len(runs) != 1 || runs[0].Outcome != "fatal" {
		t.Fatalf("expected a fatal run, got %+v", runs)
	}
	if runs[0].Error != "python3 is still missing" {
		t.Errorf("Error = %q", runs[0].Error)
	}
}

func TestRecentRunsNewestFirst(t *testing.T) {
	jnl := openTestJournal(t)
	ctx := context.Background()

	first, _ := jnl.StartRun(ctx, "interactive", 0)
	second, _ := jnl.StartRun(ctx, "interactive", 1)

	runs, err := jnl.RecentRuns(ctx, 10)
	if err != nil {
		t.Fatalf("RecentRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != second || runs[1].ID != first {
		t.Errorf("runs not newest first: %v, %v", runs[0].ID, runs[1].ID)
	}
	if runs[0].Generation != 1 {
		t.Errorf("Generation = %d, want 1", runs[0].Generation)
	}
}
