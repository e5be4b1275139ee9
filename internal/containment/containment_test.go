package containment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vmont3/veramkt-sub001/domain"
	"github.com/vmont3/veramkt-sub001/tests/helpers"
)

type recordingNotifier struct {
	alerts []string
}

func (n *recordingNotifier) Notify(userID, summary string) {}
func (n *recordingNotifier) Alert(severity, message string) {
	n.alerts = append(n.alerts, severity)
}

func TestClassifyLocal(t *testing.T) {
	res := Classify(domain.FailureLocal, domain.FailureContext{TaskID: "t1"})
	assert.True(t, res.Success)
	assert.True(t, res.ShouldRetry)
	assert.False(t, res.RequiresHumanIntervention)
	assert.Empty(t, res.SafeResponse)
}

func TestClassifyPartialBelowThreshold(t *testing.T) {
	res := Classify(domain.FailurePartial, domain.FailureContext{RetryCount: 1})
	assert.True(t, res.ShouldRetry)
	assert.Equal(t, "simplified_replan", res.ActionTaken)
}

func TestPartialEscalatesToCritical(t *testing.T) {
	// Tier B with retryCount >= 2 must be indistinguishable from tier C.
	fc := domain.FailureContext{TaskID: "t1", PlanID: "p1", RetryCount: 2}
	escalated := Classify(domain.FailurePartial, fc)
	direct := Classify(domain.FailureCritical, fc)
	assert.Equal(t, direct, escalated)
	assert.False(t, escalated.ShouldRetry)
	assert.True(t, escalated.RequiresHumanIntervention)
}

func TestCriticalAndFinancialAreTerminal(t *testing.T) {
	for _, ftype := range []domain.FailureType{domain.FailureCritical, domain.FailureFinancial} {
		res := Classify(ftype, domain.FailureContext{})
		assert.False(t, res.Success)
		assert.False(t, res.ShouldRetry)
		assert.True(t, res.RequiresHumanIntervention)
		assert.NotEmpty(t, res.SafeResponse, "terminal tiers return a fixed safe message")
	}
}

func TestClassifyUnknownFailsSafe(t *testing.T) {
	res := Classify(domain.FailureType("GARBAGE"), domain.FailureContext{})
	assert.Equal(t, Classify(domain.FailureCritical, domain.FailureContext{}), res)
}

func TestHandleCriticalPausesPlanTasks(t *testing.T) {
	ctx := context.Background()
	db := helpers.NewTestSQLiteStore(t)
	notifier := &recordingNotifier{}
	ctrl := NewController(db, notifier)

	task := &domain.Task{
		TaskID: "t1", PlanID: "p1", AgentID: "CopySocialShort", UserID: "u1",
		Type: domain.TaskTypeCopy, Priority: domain.TaskPriorityMedium,
		Status: domain.TaskStatusPending, CreatedAt: time.Now(),
	}
	if err := db.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	res := ctrl.Handle(ctx, domain.FailureCritical, domain.FailureContext{TaskID: "t1", PlanID: "p1"})
	assert.Equal(t, "block_and_rollback", res.ActionTaken)

	got, err := db.GetTask(ctx, "t1")
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	assert.Equal(t, domain.TaskStatusPausedEmergency, got.Status)
	assert.Equal(t, []string{"critical"}, notifier.alerts)
}

func TestHandleFinancialStopLoss(t *testing.T) {
	ctx := context.Background()
	db := helpers.NewTestSQLiteStore(t)
	notifier := &recordingNotifier{}
	ctrl := NewController(db, notifier)

	res := ctrl.Handle(ctx, domain.FailureFinancial, domain.FailureContext{CampaignID: "c1", PlanID: "p1"})
	assert.Equal(t, "emergency_stop_loss", res.ActionTaken)
	assert.Equal(t, []string{"financial"}, notifier.alerts)
}

func TestHandleLocalHasNoSideEffects(t *testing.T) {
	ctx := context.Background()
	db := helpers.NewTestSQLiteStore(t)
	notifier := &recordingNotifier{}
	ctrl := NewController(db, notifier)

	task := &domain.Task{
		TaskID: "t1", AgentID: "CopySocialShort", UserID: "u1",
		Type: domain.TaskTypeCopy, Priority: domain.TaskPriorityMedium,
		Status: domain.TaskStatusPending, CreatedAt: time.Now(),
	}
	if err := db.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	res := ctrl.Handle(ctx, domain.FailureLocal, domain.FailureContext{TaskID: "t1"})
	assert.True(t, res.ShouldRetry)

	got, err := db.GetTask(ctx, "t1")
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	assert.Equal(t, domain.TaskStatusPending, got.Status)
	assert.Empty(t, notifier.alerts)
}
