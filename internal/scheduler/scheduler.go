// Package scheduler owns the task lifecycle: it periodically dequeues
// pending tasks, applies credit admission control, executes them through
// specialists and settles the ledger afterwards.
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/vmont3/veramkt-sub001/domain"
	"github.com/vmont3/veramkt-sub001/internal/containment"
	"github.com/vmont3/veramkt-sub001/internal/notify"
	"github.com/vmont3/veramkt-sub001/internal/specialist"
	"github.com/vmont3/veramkt-sub001/store"
)

// Config holds scheduler tuning knobs.
type Config struct {
	CycleInterval time.Duration
	BatchSize     int
	MaxRetries    int
}

// DefaultConfig returns the stock scheduler configuration.
func DefaultConfig() *Config {
	return &Config{
		CycleInterval: 60 * time.Second,
		BatchSize:     5,
		MaxRetries:    1,
	}
}

// Scheduler pulls bounded batches of pending tasks and executes them
// sequentially. A single instance owns the loop; its timer and in-flight
// guard are explicit fields, not package state.
type Scheduler struct {
	store       store.Store
	registry    *specialist.Registry
	containment *containment.Controller
	notifier    notify.Notifier
	config      *Config

	cycleInFlight atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new scheduler.
func New(s store.Store, reg *specialist.Registry, ctrl *containment.Controller, n notify.Notifier, cfg *Config) *Scheduler {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		store:       s,
		registry:    reg,
		containment: ctrl,
		notifier:    n,
		config:      cfg,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start begins the scheduler loop with an immediate first cycle.
func (sch *Scheduler) Start() {
	sch.wg.Add(1)
	go sch.loop()
	log.Println("Scheduler started")
}

// Stop gracefully stops the scheduler and waits for the current cycle.
func (sch *Scheduler) Stop() {
	sch.cancel()
	sch.wg.Wait()
	log.Println("Scheduler stopped")
}

func (sch *Scheduler) loop() {
	defer sch.wg.Done()

	sch.RunCycle(sch.ctx)

	ticker := time.NewTicker(sch.config.CycleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sch.ctx.Done():
			return
		case <-ticker.C:
			sch.RunCycle(sch.ctx)
		}
	}
}

// RunCycle processes one batch of pending tasks. Skips entirely when a
// previous cycle is still running.
func (sch *Scheduler) RunCycle(ctx context.Context) {
	if !sch.cycleInFlight.CompareAndSwap(false, true) {
		log.Println("WARN: previous cycle still running, skipping")
		return
	}
	defer sch.cycleInFlight.Store(false)

	tasks, err := sch.store.FindPendingTasks(ctx, sch.config.BatchSize)
	if err != nil {
		log.Printf("ERROR: failed to fetch pending tasks: %v", err)
		return
	}

	for i := range tasks {
		select {
		case <-ctx.Done():
			return
		default:
		}
		sch.processTask(ctx, &tasks[i])
	}
}

// processTask runs admission control, executes the task, and settles the
// ledger. Admission and debit bracket execution: the reservation holds the
// credits before the specialist runs, and only a successful run commits it.
func (sch *Scheduler) processTask(ctx context.Context, task *domain.Task) {
	price := domain.PriceFor(task.Type)

	var reservation *domain.Reservation
	if price > 0 {
		r, err := sch.store.ReserveCredits(ctx, task.UserID, price, task.TaskID)
		if errors.Is(err, store.ErrInsufficientFunds) {
			// Terminal local failure, not routed through containment.
			msg, _ := json.Marshal(map[string]string{"error": "insufficient balance"})
			if _, err := sch.store.UpdateTaskResult(ctx, task.TaskID, domain.TaskStatusFailed, msg); err != nil {
				log.Printf("ERROR: failed to mark task %s failed: %v", task.TaskID, err)
			}
			log.Printf("WARN: task %s failed admission: insufficient balance for user %s (need %d)", task.TaskID, task.UserID, price)
			return
		}
		if err != nil {
			// Store trouble: leave the task pending for the next cycle.
			log.Printf("ERROR: failed to reserve credits for task %s: %v", task.TaskID, err)
			return
		}
		reservation = r
	}

	// Claim the task. The transition misses when an emergency pause landed
	// after the batch was fetched; a paused task must never execute.
	claimed, err := sch.store.TransitionTaskStatus(ctx, task.TaskID, domain.TaskStatusPending, domain.TaskStatusInProgress)
	if err != nil {
		log.Printf("ERROR: failed to claim task %s: %v", task.TaskID, err)
		sch.release(ctx, reservation)
		return
	}
	if !claimed {
		log.Printf("WARN: task %s no longer pending, skipping execution", task.TaskID)
		sch.release(ctx, reservation)
		return
	}

	sp, err := sch.registry.Resolve(task.AgentID)
	if err != nil {
		sch.release(ctx, reservation)
		sch.failTask(ctx, task, err)
		return
	}

	result, execErr := sp.Execute(ctx, task.Type, task.Data)
	if execErr != nil {
		sch.release(ctx, reservation)
		sch.failTask(ctx, task, execErr)
		return
	}

	// Settle atomically: the completed status and the ledger debit land
	// together, or the pause that arrived mid-execution wins and the hold
	// is refunded.
	var reservationID string
	if reservation != nil {
		reservationID = reservation.ReservationID
	}
	reason := fmt.Sprintf("task %s (%s)", task.TaskID, task.Type)
	completed, err := sch.store.CompleteTask(ctx, task.TaskID, result, reservationID, reason, task.AgentID)
	if err != nil {
		// The execution itself succeeded, so no retry: the task fails
		// terminally, the hold is refunded and an operator is alerted.
		log.Printf("ERROR: failed to settle task %s: %v", task.TaskID, err)
		sch.release(ctx, reservation)
		msg, _ := json.Marshal(map[string]string{"error": "failed to settle credits"})
		if _, uerr := sch.store.UpdateTaskResult(ctx, task.TaskID, domain.TaskStatusFailed, msg); uerr != nil {
			log.Printf("ERROR: failed to mark task %s failed: %v", task.TaskID, uerr)
		}
		sch.notifier.Alert("critical", fmt.Sprintf("task %s executed but credits could not be settled, hold refunded", task.TaskID))
		return
	}
	if !completed {
		log.Printf("WARN: task %s paused during execution, discarding result", task.TaskID)
		return
	}

	sch.notifier.Notify(task.UserID, notify.TaskSummary(task.TaskID, string(task.Type), price))
	log.Printf("Task %s (%s) completed for user %s", task.TaskID, task.Type, task.UserID)
}

// failTask records the failure and routes it through containment at the
// LOCAL tier. When containment advises a retry and the task allows it, a
// new attempt task is created; the failed row is never rewound.
func (sch *Scheduler) failTask(ctx context.Context, task *domain.Task, execErr error) {
	msg, _ := json.Marshal(map[string]string{"error": execErr.Error()})
	failed, err := sch.store.UpdateTaskResult(ctx, task.TaskID, domain.TaskStatusFailed, msg)
	if err != nil {
		log.Printf("ERROR: failed to mark task %s failed: %v", task.TaskID, err)
	}
	if err == nil && !failed {
		// A pause beat the failure write; the paused plan must not spawn
		// retries.
		log.Printf("WARN: task %s paused before failure could be recorded, skipping containment", task.TaskID)
		return
	}
	log.Printf("ERROR: task %s (%s) failed: %v", task.TaskID, task.Type, execErr)

	result := sch.containment.Handle(ctx, domain.FailureLocal, domain.FailureContext{
		TaskID:     task.TaskID,
		PlanID:     task.PlanID,
		UserID:     task.UserID,
		RetryCount: task.RetryCount,
	})

	if result.ShouldRetry && task.AllowRetry && task.RetryCount < sch.config.MaxRetries {
		retry := &domain.Task{
			TaskID:       "task_" + uuid.New().String()[:8],
			PlanID:       task.PlanID,
			AgentID:      task.AgentID,
			UserID:       task.UserID,
			Type:         task.Type,
			Priority:     task.Priority,
			Status:       domain.TaskStatusPending,
			Data:         task.Data,
			RetryCount:   task.RetryCount + 1,
			AllowRetry:   task.AllowRetry,
			ParentTaskID: task.TaskID,
			CreatedAt:    time.Now(),
		}
		if err := sch.store.CreateTask(ctx, retry); err != nil {
			log.Printf("ERROR: failed to create retry task for %s: %v", task.TaskID, err)
			return
		}
		log.Printf("Task %s requeued as %s (attempt %d)", task.TaskID, retry.TaskID, retry.RetryCount)
	}
}

func (sch *Scheduler) release(ctx context.Context, reservation *domain.Reservation) {
	if reservation == nil {
		return
	}
	if err := sch.store.ReleaseReservation(ctx, reservation.ReservationID); err != nil {
		log.Printf("ERROR: failed to release reservation %s: %v", reservation.ReservationID, err)
	}
}
