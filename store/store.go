// Package store defines the storage interface and implementations.
package store

import (
	"context"
	"errors"

	"github.com/vmont3/veramkt-sub001/domain"
)

// ErrInsufficientFunds is returned when a reservation would overdraw the
// user's balance.
var ErrInsufficientFunds = errors.New("insufficient funds")

// ErrReservationNotHeld is returned when committing or releasing a
// reservation that is not in the held state.
var ErrReservationNotHeld = errors.New("reservation not held")

// Store defines the interface for data persistence.
type Store interface {
	// Task operations. Status writes are conditional: a transition only
	// lands when the row is still in the expected state, so an emergency
	// pause racing the scheduler can never be overwritten. The bool
	// reports whether the write landed.
	CreateTask(ctx context.Context, task *domain.Task) error
	GetTask(ctx context.Context, taskID string) (*domain.Task, error)
	TransitionTaskStatus(ctx context.Context, taskID string, from, to domain.TaskStatus) (bool, error)
	UpdateTaskResult(ctx context.Context, taskID string, status domain.TaskStatus, result []byte) (bool, error)
	CompleteTask(ctx context.Context, taskID string, result []byte, reservationID, reason, sourceAgentID string) (bool, error)
	FindPendingTasks(ctx context.Context, limit int) ([]domain.Task, error)
	PauseActiveTasks(ctx context.Context, planID string) (int64, error)

	// Credit ledger operations. Reserve debits the balance atomically;
	// commit turns the hold into a ledger debit; release refunds it.
	GetBalance(ctx context.Context, userID string) (int, error)
	AddCredits(ctx context.Context, userID string, amount int, reason string) error
	ReserveCredits(ctx context.Context, userID string, amount int, taskID string) (*domain.Reservation, error)
	CommitReservation(ctx context.Context, reservationID, reason, sourceAgentID string) error
	ReleaseReservation(ctx context.Context, reservationID string) error
	ListLedgerEntries(ctx context.Context, userID string, limit int) ([]domain.LedgerEntry, error)

	// Agent health operations
	GetAgentPerformance(ctx context.Context, agentID, platform string) (*domain.AgentPerformance, error)
	UpsertAgentPerformance(ctx context.Context, perf *domain.AgentPerformance) error
	ResetAgentHealth(ctx context.Context, agentID string) error
	CreateSnapshot(ctx context.Context, snap *domain.AgentSnapshot) error
	LatestSnapshot(ctx context.Context, agentID, brandID string) (*domain.AgentSnapshot, error)

	// Lifecycle
	Close() error
}
