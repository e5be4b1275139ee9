package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vmont3/veramkt-sub001/domain"
	"github.com/vmont3/veramkt-sub001/internal/notify"
	"github.com/vmont3/veramkt-sub001/internal/router"
	"github.com/vmont3/veramkt-sub001/store"
)

// ErrValidation marks a request rejected before any task was created.
var ErrValidation = errors.New("validation error")

// ProcessRequest validates an inbound request, routes it to a capability,
// creates a task and executes it synchronously. Fire-and-forget plan tasks
// go through the scheduler instead; this path is for request/response
// calls.
func (s *Service) ProcessRequest(ctx context.Context, req domain.GenerateRequest) (*domain.GenerateResponse, error) {
	if req.Type == "" {
		return nil, fmt.Errorf("%w: type is required", ErrValidation)
	}
	if req.UserID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrValidation)
	}

	// Dispatch policy gate: a blocked request creates no task.
	decision, err := s.policyEngine.Evaluate(ctx, map[string]interface{}{
		"request_type": req.Type,
		"user_id":      req.UserID,
		"user_budget":  req.UserBudget,
	})
	if err != nil {
		log.Printf("ERROR: policy evaluation failed: %v", err)
		decision = "allow"
	}
	if decision == "block" {
		return &domain.GenerateResponse{
			Success:    false,
			Error:      fmt.Sprintf("request type %s is not permitted", req.Type),
			Suggestion: "This content type is not available on your plan.",
			Timestamp:  time.Now(),
		}, nil
	}

	route := router.Resolve(req.Type)
	price := domain.PriceFor(route.TaskType)

	task := &domain.Task{
		TaskID:     "task_" + uuid.New().String()[:8],
		AgentID:    route.Capability,
		UserID:     req.UserID,
		Type:       route.TaskType,
		Priority:   route.Priority,
		Status:     domain.TaskStatusPending,
		Data:       req.Payload,
		AllowRetry: true,
		CreatedAt:  time.Now(),
	}
	if err := s.store.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	var reservation *domain.Reservation
	if price > 0 {
		r, err := s.store.ReserveCredits(ctx, req.UserID, price, task.TaskID)
		if errors.Is(err, store.ErrInsufficientFunds) {
			msg, _ := json.Marshal(map[string]string{"error": "insufficient balance"})
			if _, uerr := s.store.UpdateTaskResult(ctx, task.TaskID, domain.TaskStatusFailed, msg); uerr != nil {
				log.Printf("ERROR: failed to mark task %s failed: %v", task.TaskID, uerr)
			}
			return &domain.GenerateResponse{
				Success:    false,
				Error:      "insufficient credits",
				Suggestion: suggestionFor("credits"),
				Timestamp:  time.Now(),
			}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to reserve credits: %w", err)
		}
		reservation = r
	}

	// Claim before executing: an emergency pause that landed after the task
	// was created wins, and the request is answered without running anything.
	claimed, err := s.store.TransitionTaskStatus(ctx, task.TaskID, domain.TaskStatusPending, domain.TaskStatusInProgress)
	if err != nil {
		s.releaseReservation(ctx, reservation)
		return nil, fmt.Errorf("failed to claim task: %w", err)
	}
	if !claimed {
		s.releaseReservation(ctx, reservation)
		log.Printf("WARN: task %s paused before execution, rejecting request", task.TaskID)
		return &domain.GenerateResponse{
			Success:    false,
			Error:      "task was paused before execution",
			Suggestion: suggestionFor(""),
			Timestamp:  time.Now(),
		}, nil
	}

	sp, err := s.registry.Resolve(route.Capability)
	if err != nil {
		s.releaseReservation(ctx, reservation)
		return s.failRequest(ctx, task, err)
	}

	started := time.Now()
	result, execErr := sp.Execute(ctx, route.TaskType, req.Payload)
	if execErr != nil {
		s.releaseReservation(ctx, reservation)
		return s.failRequest(ctx, task, execErr)
	}

	// Settle atomically: completed status and ledger debit land together.
	var reservationID string
	if reservation != nil {
		reservationID = reservation.ReservationID
	}
	reason := fmt.Sprintf("request %s task %s (%s)", req.Type, task.TaskID, route.TaskType)
	completed, err := s.store.CompleteTask(ctx, task.TaskID, result, reservationID, reason, route.Capability)
	if err != nil {
		log.Printf("ERROR: failed to settle task %s: %v", task.TaskID, err)
		s.releaseReservation(ctx, reservation)
		s.notifier.Alert("critical", fmt.Sprintf("task %s executed but credits could not be settled, hold refunded", task.TaskID))
		return s.failRequest(ctx, task, fmt.Errorf("failed to settle credits"))
	}
	if !completed {
		log.Printf("WARN: task %s paused during execution, discarding result", task.TaskID)
		return &domain.GenerateResponse{
			Success:    false,
			Error:      "task was paused during execution",
			Suggestion: suggestionFor(""),
			Timestamp:  time.Now(),
		}, nil
	}

	// Best-effort: a failed notification never fails the request.
	s.notifier.Notify(req.UserID, notify.TaskSummary(task.TaskID, string(route.TaskType), price))

	return &domain.GenerateResponse{
		Success:    true,
		Data:       result,
		Cost:       price,
		Validation: "passed",
		Metadata: &domain.ResponseMeta{
			TaskID:     task.TaskID,
			Capability: route.Capability,
			DurationMs: time.Since(started).Milliseconds(),
		},
		Timestamp: time.Now(),
	}, nil
}

func (s *Service) failRequest(ctx context.Context, task *domain.Task, execErr error) (*domain.GenerateResponse, error) {
	msg, _ := json.Marshal(map[string]string{"error": execErr.Error()})
	if _, err := s.store.UpdateTaskResult(ctx, task.TaskID, domain.TaskStatusFailed, msg); err != nil {
		log.Printf("ERROR: failed to mark task %s failed: %v", task.TaskID, err)
	}
	log.Printf("ERROR: request task %s failed: %v", task.TaskID, execErr)

	return &domain.GenerateResponse{
		Success:    false,
		Error:      execErr.Error(),
		Suggestion: suggestionFor(execErr.Error()),
		Timestamp:  time.Now(),
	}, nil
}

func (s *Service) releaseReservation(ctx context.Context, reservation *domain.Reservation) {
	if reservation == nil {
		return
	}
	if err := s.store.ReleaseReservation(ctx, reservation.ReservationID); err != nil {
		log.Printf("ERROR: failed to release reservation %s: %v", reservation.ReservationID, err)
	}
}

// suggestionFor maps an error message to a user-facing next step by simple
// keyword matching.
func suggestionFor(errMsg string) string {
	msg := strings.ToLower(errMsg)
	switch {
	case strings.Contains(msg, "credit") || strings.Contains(msg, "balance"):
		return "Top up your credits to continue generating content."
	case strings.Contains(msg, "unsupported") || strings.Contains(msg, "not supported"):
		return "This content type is not available on your plan."
	case strings.Contains(msg, "api") || strings.Contains(msg, "timeout") || strings.Contains(msg, "unavailable"):
		return "The provider is busy right now. Please retry in a few minutes."
	default:
		return "Please try again, or contact support if the problem persists."
	}
}
