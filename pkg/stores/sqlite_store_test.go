package stores

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/YusefSaid/Shell-scripting/pkg/engine"
	"github.com/YusefSaid/Shell-scripting/pkg/platform"
)

// setupTestStore creates an in-memory SQLite store for testing
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testRun(id string, started time.Time, state string) *Run {
	return &Run{
		ID:               id,
		Hostname:         "node-1",
		Profile:          "ubuntu-jammy",
		State:            state,
		Users:            []string{"Ed", "Kelly"},
		Groups:           []string{"Crew"},
		MTU:              1442,
		Applied:          2,
		AlreadySatisfied: 1,
		StartedAt:        started,
		FinishedAt:       started.Add(3 * time.Second),
		Steps: []StepRecord{
			{Seq: 1, Step: "RESOLVE_PROFILE", Resource: "ubuntu-jammy", Status: "ALREADY_SATISFIED"},
			{Seq: 2, Step: "RECONCILE_USERS", Resource: "user:Ed", Status: "APPLIED", DurationMS: 12},
			{Seq: 3, Step: "RECONCILE_USERS", Resource: "user:Kelly", Status: "APPLIED", DurationMS: 9},
		},
	}
}

// TestStoreLifecycle tests database initialization and closure
func TestStoreLifecycle(t *testing.T) {
	store, err := NewSQLiteStore(Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.HealthCheck(ctx); err == nil {
		t.Error("health check passed before Init")
	}
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}

	if _, err := NewSQLiteStore(Config{}); err == nil {
		t.Error("expected error for empty path")
	}
}

// TestStoreMigrations tests database migrations
func TestStoreMigrations(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for _, table := range []string{"runs", "step_results"} {
		var count int
		if err := store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
			t.Errorf("table %s does not exist or is not accessible: %v", table, err)
		}
	}

	// Running again is a no-op.
	if err := store.Migrate(ctx); err != nil {
		t.Errorf("second Migrate() error = %v", err)
	}
}

func TestRecordAndGetRun(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	run := testRun("run-001", started, "DONE")
	if err := store.RecordRun(ctx, run); err != nil {
		t.Fatalf("RecordRun() error = %v", err)
	}

	got, err := store.GetRun(ctx, "run-001")
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if diff := cmp.Diff(run.Steps, got.Steps); diff != "" {
		t.Errorf("steps mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(run.Users, got.Users); diff != "" {
		t.Errorf("users mismatch (-want +got):\n%s", diff)
	}
	if got.MTU != 1442 || got.Profile != "ubuntu-jammy" || got.State != "DONE" {
		t.Errorf("run = %+v", got)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, started)
	}
	if got.Duration() != 3*time.Second {
		t.Errorf("Duration() = %v", got.Duration())
	}

	if err := store.RecordRun(ctx, run); err == nil {
		t.Error("duplicate run ID accepted")
	}
}

func TestGetRunNotFound(t *testing.T) {
	store := setupTestStore(t)
	if _, err := store.GetRun(context.Background(), "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("GetRun() error = %v, want ErrRunNotFound", err)
	}
}

func TestListRuns(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, state := range []string{"DONE", "ABORTED", "DONE"} {
		run := testRun("run-"+string(rune('a'+i)), base.Add(time.Duration(i)*time.Hour), state)
		if err := store.RecordRun(ctx, run); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := store.ListRuns(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	var ids []string
	for _, r := range runs {
		ids = append(ids, r.ID)
		if len(r.Steps) != 0 {
			t.Errorf("ListRuns() loaded steps for %s", r.ID)
		}
	}
	if diff := cmp.Diff([]string{"run-c", "run-b", "run-a"}, ids); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}

	runs, err = store.ListRuns(ctx, ListOptions{Limit: 1, State: "DONE"})
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].ID != "run-c" {
		t.Errorf("filtered ListRuns() = %+v", runs)
	}
}

func TestPruneRuns(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		run := testRun("run-"+string(rune('a'+i)), base.Add(time.Duration(i)*time.Minute), "DONE")
		if err := store.RecordRun(ctx, run); err != nil {
			t.Fatal(err)
		}
	}

	n, err := store.PruneRuns(ctx, 2)
	if err != nil {
		t.Fatalf("PruneRuns() error = %v", err)
	}
	if n != 3 {
		t.Errorf("PruneRuns() removed %d, want 3", n)
	}

	var steps int
	if err := store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM step_results").Scan(&steps); err != nil {
		t.Fatal(err)
	}
	if steps != 6 {
		t.Errorf("step_results rows = %d, want 6 after cascade", steps)
	}
	if _, err := store.PruneRuns(ctx, -1); err == nil {
		t.Error("negative keep accepted")
	}
}

func TestFileStorePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "journal.db")

	store, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := store.RecordRun(ctx, testRun("run-1", time.Now().UTC(), "DONE")); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	store, err = Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer store.Close()
	if _, err := store.GetRun(ctx, "run-1"); err != nil {
		t.Errorf("GetRun() after reopen error = %v", err)
	}
}

func TestRunFromReport(t *testing.T) {
	report := engine.NewReport(engine.NewDesiredState([]string{"Ed"}, []string{"Crew"}, 1442, false))
	report.Profile = &platform.Profile{Name: "debian-bookworm"}
	report.Host = engine.HostFacts{Hostname: "node-1", KernelVersion: "6.1.0"}
	report.Append(engine.StepResult{Step: engine.StepResolveProfile, Resource: "debian-bookworm", Status: engine.StepStatusAlreadySatisfied})
	report.Append(engine.StepResult{
		Step:     engine.StepReconcileGroups,
		Resource: "membership:Ed:Crew",
		Status:   engine.StepStatusFailed,
		Error:    engine.NewNonFatalError("membership failed", nil).WithCode(engine.ErrCodeMembershipFailed),
		Duration: 25 * time.Millisecond,
	})
	report.State = engine.RunStateDone

	run := RunFromReport(report)
	if run.ID != report.ID || run.Profile != "debian-bookworm" || run.Hostname != "node-1" {
		t.Errorf("run = %+v", run)
	}
	if run.Failed != 1 || run.AlreadySatisfied != 1 || run.Applied != 0 {
		t.Errorf("counts = %d/%d/%d", run.Applied, run.AlreadySatisfied, run.Failed)
	}
	want := []StepRecord{
		{Seq: 1, Step: "RESOLVE_PROFILE", Resource: "debian-bookworm", Status: "ALREADY_SATISFIED"},
		{Seq: 2, Step: "RECONCILE_GROUPS_AND_MEMBERSHIP", Resource: "membership:Ed:Crew", Status: "FAILED", ErrorCode: "MEMBERSHIP_FAILED", DurationMS: 25},
	}
	if diff := cmp.Diff(want, run.Steps); diff != "" {
		t.Errorf("steps mismatch (-want +got):\n%s", diff)
	}
	if run.FinishedAt.IsZero() {
		t.Error("FinishedAt not defaulted")
	}

	store := setupTestStore(t)
	if err := store.RecordRun(context.Background(), run); err != nil {
		t.Errorf("RecordRun() error = %v", err)
	}
}
