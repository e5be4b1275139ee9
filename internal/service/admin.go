package service

import (
	"context"
	"fmt"
	"log"

	"github.com/vmont3/veramkt-sub001/domain"
)

// GetTask returns a task by id, nil when not found.
func (s *Service) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// EmergencyPause bulk-pauses active tasks. Empty planID pauses everything.
func (s *Service) EmergencyPause(ctx context.Context, planID string) (int64, error) {
	paused, err := s.store.PauseActiveTasks(ctx, planID)
	if err != nil {
		return 0, fmt.Errorf("failed to pause tasks: %w", err)
	}
	log.Printf("WARN: emergency pause requested (plan=%q), %d tasks paused", planID, paused)
	return paused, nil
}

// SubmitFeedback applies one explicit feedback event to an agent's health.
func (s *Service) SubmitFeedback(ctx context.Context, agentID, platform, brandID string, sentiment domain.Sentiment) (*domain.FeedbackResult, error) {
	if agentID == "" || platform == "" {
		return nil, fmt.Errorf("%w: agent_id and platform are required", ErrValidation)
	}
	if sentiment != domain.SentimentPositive && sentiment != domain.SentimentNegative {
		return nil, fmt.Errorf("%w: sentiment must be POSITIVE or NEGATIVE", ErrValidation)
	}
	return s.health.ApplyFeedback(ctx, agentID, platform, brandID, sentiment)
}

// RestoreAgent resets an agent's trust signal from its latest snapshot.
func (s *Service) RestoreAgent(ctx context.Context, agentID, brandID string) (*domain.AgentSnapshot, error) {
	if agentID == "" {
		return nil, fmt.Errorf("%w: agent_id is required", ErrValidation)
	}
	return s.health.Restore(ctx, agentID, brandID)
}

// PauseAgent administratively pauses an agent on a platform.
func (s *Service) PauseAgent(ctx context.Context, agentID, platform string) error {
	if agentID == "" || platform == "" {
		return fmt.Errorf("%w: agent_id and platform are required", ErrValidation)
	}
	return s.health.Pause(ctx, agentID, platform)
}

// EvaluateCampaign runs campaign metrics through the finance guard.
func (s *Service) EvaluateCampaign(ctx context.Context, m domain.CampaignMetrics) domain.FinanceVerdict {
	return s.finance.Evaluate(ctx, m)
}

// GetBalance returns a user's current credit balance.
func (s *Service) GetBalance(ctx context.Context, userID string) (int, error) {
	return s.store.GetBalance(ctx, userID)
}

// AddCredits tops up a user's balance.
func (s *Service) AddCredits(ctx context.Context, userID string, amount int, reason string) error {
	if amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if reason == "" {
		reason = "manual top-up"
	}
	return s.store.AddCredits(ctx, userID, amount, reason)
}
