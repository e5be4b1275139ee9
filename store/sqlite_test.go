package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vmont3/veramkt-sub001/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func makeTask(id string, priority domain.TaskPriority, createdAt time.Time) *domain.Task {
	return &domain.Task{
		TaskID:     id,
		AgentID:    "CopySocialShort",
		UserID:     "u1",
		Type:       domain.TaskTypeCopy,
		Priority:   priority,
		Status:     domain.TaskStatusPending,
		AllowRetry: true,
		CreatedAt:  createdAt,
	}
}

func TestFindPendingTasksOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	// Inserted out of order on purpose.
	if err := s.CreateTask(ctx, makeTask("t_low", domain.TaskPriorityLow, base)); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if err := s.CreateTask(ctx, makeTask("t_high_2", domain.TaskPriorityHigh, base.Add(2*time.Minute))); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if err := s.CreateTask(ctx, makeTask("t_med", domain.TaskPriorityMedium, base.Add(time.Minute))); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if err := s.CreateTask(ctx, makeTask("t_high_1", domain.TaskPriorityHigh, base.Add(time.Minute))); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	tasks, err := s.FindPendingTasks(ctx, 3)
	if err != nil {
		t.Fatalf("FindPendingTasks: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(tasks))
	}
	want := []string{"t_high_1", "t_high_2", "t_med"}
	for i, w := range want {
		if tasks[i].TaskID != w {
			t.Fatalf("position %d: expected %s, got %s", i, w, tasks[i].TaskID)
		}
	}
}

func TestFindPendingTasksSkipsNonPending(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateTask(ctx, makeTask("t1", domain.TaskPriorityMedium, time.Now())); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if _, err := s.TransitionTaskStatus(ctx, "t1", domain.TaskStatusPending, domain.TaskStatusInProgress); err != nil {
		t.Fatalf("TransitionTaskStatus: %v", err)
	}

	tasks, err := s.FindPendingTasks(ctx, 5)
	if err != nil {
		t.Fatalf("FindPendingTasks: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("expected no pending tasks, got %d", len(tasks))
	}
}

func TestReserveCommitWritesSingleDebit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.AddCredits(ctx, "u1", 20, "signup bonus"); err != nil {
		t.Fatalf("AddCredits: %v", err)
	}

	r, err := s.ReserveCredits(ctx, "u1", 8, "t1")
	if err != nil {
		t.Fatalf("ReserveCredits: %v", err)
	}

	balance, err := s.GetBalance(ctx, "u1")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance != 12 {
		t.Fatalf("expected balance 12 after hold, got %d", balance)
	}

	if err := s.CommitReservation(ctx, r.ReservationID, "task t1 (copy)", "CopySocialShort"); err != nil {
		t.Fatalf("CommitReservation: %v", err)
	}

	entries, err := s.ListLedgerEntries(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("ListLedgerEntries: %v", err)
	}
	var debits int
	for _, e := range entries {
		if e.TaskID == "t1" && e.Amount < 0 {
			debits++
			if e.Amount != -8 {
				t.Fatalf("expected debit of -8, got %d", e.Amount)
			}
			if e.SourceAgentID != "CopySocialShort" {
				t.Fatalf("expected source agent on debit, got %q", e.SourceAgentID)
			}
		}
	}
	if debits != 1 {
		t.Fatalf("expected exactly one debit entry for t1, got %d", debits)
	}

	// Committing twice must not double-charge.
	if err := s.CommitReservation(ctx, r.ReservationID, "task t1 (copy)", ""); !errors.Is(err, ErrReservationNotHeld) {
		t.Fatalf("expected ErrReservationNotHeld on double commit, got %v", err)
	}
}

func TestReserveInsufficientFunds(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.AddCredits(ctx, "u1", 5, "signup bonus"); err != nil {
		t.Fatalf("AddCredits: %v", err)
	}

	_, err := s.ReserveCredits(ctx, "u1", 12, "t1")
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	balance, err := s.GetBalance(ctx, "u1")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance != 5 {
		t.Fatalf("failed reservation must not touch balance, got %d", balance)
	}
}

func TestReserveUnknownUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.ReserveCredits(ctx, "ghost", 1, "t1")
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds for unknown user, got %v", err)
	}
}

func TestReleaseRefundsExactlyOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.AddCredits(ctx, "u1", 10, "signup bonus"); err != nil {
		t.Fatalf("AddCredits: %v", err)
	}
	r, err := s.ReserveCredits(ctx, "u1", 10, "t1")
	if err != nil {
		t.Fatalf("ReserveCredits: %v", err)
	}

	if err := s.ReleaseReservation(ctx, r.ReservationID); err != nil {
		t.Fatalf("ReleaseReservation: %v", err)
	}
	if err := s.ReleaseReservation(ctx, r.ReservationID); !errors.Is(err, ErrReservationNotHeld) {
		t.Fatalf("expected ErrReservationNotHeld on double release, got %v", err)
	}

	balance, err := s.GetBalance(ctx, "u1")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance != 10 {
		t.Fatalf("expected full refund to 10, got %d", balance)
	}
}

func TestPauseActiveTasksByPlan(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	t1 := makeTask("t1", domain.TaskPriorityMedium, time.Now())
	t1.PlanID = "plan_a"
	t2 := makeTask("t2", domain.TaskPriorityMedium, time.Now())
	t2.PlanID = "plan_a"
	t3 := makeTask("t3", domain.TaskPriorityMedium, time.Now())
	t3.PlanID = "plan_b"
	for _, task := range []*domain.Task{t1, t2, t3} {
		if err := s.CreateTask(ctx, task); err != nil {
			t.Fatalf("CreateTask: %v", err)
		}
	}
	if _, err := s.TransitionTaskStatus(ctx, "t2", domain.TaskStatusPending, domain.TaskStatusInProgress); err != nil {
		t.Fatalf("TransitionTaskStatus: %v", err)
	}

	paused, err := s.PauseActiveTasks(ctx, "plan_a")
	if err != nil {
		t.Fatalf("PauseActiveTasks: %v", err)
	}
	if paused != 2 {
		t.Fatalf("expected 2 paused, got %d", paused)
	}

	got, err := s.GetTask(ctx, "t3")
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.Status != domain.TaskStatusPending {
		t.Fatalf("plan_b task should be untouched, got %s", got.Status)
	}
}

func TestPauseActiveTasksIgnoresTerminal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task := makeTask("t1", domain.TaskPriorityMedium, time.Now())
	if err := s.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if _, err := s.UpdateTaskResult(ctx, "t1", domain.TaskStatusCompleted, []byte(`{"ok":true}`)); err != nil {
		t.Fatalf("UpdateTaskResult: %v", err)
	}

	paused, err := s.PauseActiveTasks(ctx, "")
	if err != nil {
		t.Fatalf("PauseActiveTasks: %v", err)
	}
	if paused != 0 {
		t.Fatalf("completed task must not be paused, got %d", paused)
	}
}

func TestTransitionTaskStatusMissesWhenPaused(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateTask(ctx, makeTask("t1", domain.TaskPriorityMedium, time.Now())); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if _, err := s.PauseActiveTasks(ctx, ""); err != nil {
		t.Fatalf("PauseActiveTasks: %v", err)
	}

	claimed, err := s.TransitionTaskStatus(ctx, "t1", domain.TaskStatusPending, domain.TaskStatusInProgress)
	if err != nil {
		t.Fatalf("TransitionTaskStatus: %v", err)
	}
	if claimed {
		t.Fatalf("paused task must not be claimable")
	}

	got, err := s.GetTask(ctx, "t1")
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.Status != domain.TaskStatusPausedEmergency {
		t.Fatalf("pause must survive the claim attempt, got %s", got.Status)
	}
}

func TestUpdateTaskResultSkipsPausedTask(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateTask(ctx, makeTask("t1", domain.TaskPriorityMedium, time.Now())); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if _, err := s.PauseActiveTasks(ctx, ""); err != nil {
		t.Fatalf("PauseActiveTasks: %v", err)
	}

	ok, err := s.UpdateTaskResult(ctx, "t1", domain.TaskStatusFailed, []byte(`{"error":"x"}`))
	if err != nil {
		t.Fatalf("UpdateTaskResult: %v", err)
	}
	if ok {
		t.Fatalf("terminal write must not overwrite a paused task")
	}

	got, err := s.GetTask(ctx, "t1")
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.Status != domain.TaskStatusPausedEmergency {
		t.Fatalf("expected paused_emergency, got %s", got.Status)
	}
}

func TestCompleteTaskSettlesAtomically(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.AddCredits(ctx, "u1", 20, "signup bonus"); err != nil {
		t.Fatalf("AddCredits: %v", err)
	}
	if err := s.CreateTask(ctx, makeTask("t1", domain.TaskPriorityMedium, time.Now())); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	r, err := s.ReserveCredits(ctx, "u1", 8, "t1")
	if err != nil {
		t.Fatalf("ReserveCredits: %v", err)
	}
	if _, err := s.TransitionTaskStatus(ctx, "t1", domain.TaskStatusPending, domain.TaskStatusInProgress); err != nil {
		t.Fatalf("TransitionTaskStatus: %v", err)
	}

	completed, err := s.CompleteTask(ctx, "t1", []byte(`{"ok":true}`), r.ReservationID, "task t1 (copy)", "CopySocialShort")
	if err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}
	if !completed {
		t.Fatalf("expected the task to complete")
	}

	got, err := s.GetTask(ctx, "t1")
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.Status != domain.TaskStatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}

	balance, err := s.GetBalance(ctx, "u1")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance != 12 {
		t.Fatalf("expected balance 12, got %d", balance)
	}

	entries, err := s.ListLedgerEntries(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("ListLedgerEntries: %v", err)
	}
	var debits int
	for _, e := range entries {
		if e.TaskID == "t1" && e.Amount == -8 {
			debits++
		}
	}
	if debits != 1 {
		t.Fatalf("expected exactly one debit for t1, got %d", debits)
	}

	// The reservation is committed, not held.
	if err := s.ReleaseReservation(ctx, r.ReservationID); !errors.Is(err, ErrReservationNotHeld) {
		t.Fatalf("expected ErrReservationNotHeld after settle, got %v", err)
	}
}

func TestCompleteTaskRefundsWhenPaused(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.AddCredits(ctx, "u1", 20, "signup bonus"); err != nil {
		t.Fatalf("AddCredits: %v", err)
	}
	if err := s.CreateTask(ctx, makeTask("t1", domain.TaskPriorityMedium, time.Now())); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	r, err := s.ReserveCredits(ctx, "u1", 8, "t1")
	if err != nil {
		t.Fatalf("ReserveCredits: %v", err)
	}
	if _, err := s.TransitionTaskStatus(ctx, "t1", domain.TaskStatusPending, domain.TaskStatusInProgress); err != nil {
		t.Fatalf("TransitionTaskStatus: %v", err)
	}
	if _, err := s.PauseActiveTasks(ctx, ""); err != nil {
		t.Fatalf("PauseActiveTasks: %v", err)
	}

	completed, err := s.CompleteTask(ctx, "t1", []byte(`{"ok":true}`), r.ReservationID, "task t1 (copy)", "CopySocialShort")
	if err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}
	if completed {
		t.Fatalf("paused task must not complete")
	}

	got, err := s.GetTask(ctx, "t1")
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.Status != domain.TaskStatusPausedEmergency {
		t.Fatalf("expected paused_emergency, got %s", got.Status)
	}

	balance, err := s.GetBalance(ctx, "u1")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance != 20 {
		t.Fatalf("expected the hold refunded to 20, got %d", balance)
	}

	entries, err := s.ListLedgerEntries(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("ListLedgerEntries: %v", err)
	}
	for _, e := range entries {
		if e.Amount < 0 {
			t.Fatalf("discarded execution must not leave a debit, found %+v", e)
		}
	}
}

func TestLatestSnapshotPicksMostRecent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old := &domain.AgentSnapshot{
		SnapshotID: "snap_old", AgentID: "a1", BrandID: "b1",
		Reason: domain.SnapshotReasonDopaminePeak, HealthScore: 95,
		CreatedAt: time.Now().Add(-time.Hour),
	}
	recent := &domain.AgentSnapshot{
		SnapshotID: "snap_new", AgentID: "a1", BrandID: "b1",
		Reason: domain.SnapshotReasonManual, HealthScore: 100,
		CreatedAt: time.Now(),
	}
	if err := s.CreateSnapshot(ctx, old); err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}
	if err := s.CreateSnapshot(ctx, recent); err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}

	got, err := s.LatestSnapshot(ctx, "a1", "b1")
	if err != nil {
		t.Fatalf("LatestSnapshot: %v", err)
	}
	if got == nil || got.SnapshotID != "snap_new" {
		t.Fatalf("expected snap_new, got %+v", got)
	}

	missing, err := s.LatestSnapshot(ctx, "a1", "other_brand")
	if err != nil {
		t.Fatalf("LatestSnapshot: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unknown brand, got %+v", missing)
	}
}

func TestUpdateTaskResultStampsCompletedAt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateTask(ctx, makeTask("t1", domain.TaskPriorityMedium, time.Now())); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	ok, err := s.UpdateTaskResult(ctx, "t1", domain.TaskStatusCompleted, []byte(`{"ok":true}`))
	if err != nil {
		t.Fatalf("UpdateTaskResult: %v", err)
	}
	if !ok {
		t.Fatalf("expected the write to land on a pending task")
	}

	got, err := s.GetTask(ctx, "t1")
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.Status != domain.TaskStatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
	if got.CompletedAt == nil {
		t.Fatalf("expected completed_at set")
	}
	if string(got.Result) != `{"ok":true}` {
		t.Fatalf("unexpected result payload: %s", got.Result)
	}
}
