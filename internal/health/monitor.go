// Package health maintains per-agent reputation scores and snapshots.
package health

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/vmont3/veramkt-sub001/domain"
	"github.com/vmont3/veramkt-sub001/store"
)

const (
	defaultScore      = 100
	positiveDelta     = 5
	negativeDelta     = 15
	snapshotThreshold = 90
	resetThreshold    = 40
)

// Monitor adjusts agent health scores on explicit feedback and manages
// snapshot capture and restore.
type Monitor struct {
	store store.Store
}

// NewMonitor creates a health monitor.
func NewMonitor(s store.Store) *Monitor {
	return &Monitor{store: s}
}

// ApplyFeedback moves the (agent, platform) score on one feedback event.
// The record is created lazily at 100. Scores stay in [0,100]; the -1
// administrative pause sentinel is never touched by feedback. A snapshot is
// captured only when the score crosses above the snapshot threshold, so a
// sustained peak produces one snapshot, not one per event.
func (m *Monitor) ApplyFeedback(ctx context.Context, agentID, platform, brandID string, sentiment domain.Sentiment) (*domain.FeedbackResult, error) {
	perf, err := m.store.GetAgentPerformance(ctx, agentID, platform)
	if err != nil {
		return nil, fmt.Errorf("failed to load performance record: %w", err)
	}
	if perf == nil {
		perf = &domain.AgentPerformance{
			AgentID:     agentID,
			Platform:    platform,
			HealthScore: defaultScore,
			Trend:       "steady",
			LastUpdated: time.Now(),
		}
	}

	if perf.HealthScore == domain.HealthScorePaused {
		log.Printf("WARN: feedback for paused agent %s/%s ignored", agentID, platform)
		return &domain.FeedbackResult{
			AgentID:     agentID,
			Platform:    platform,
			HealthScore: perf.HealthScore,
			Action:      domain.HealthActionLogOnly,
		}, nil
	}

	oldScore := perf.HealthScore
	action := domain.HealthActionLogOnly

	switch sentiment {
	case domain.SentimentPositive:
		perf.HealthScore = min(100, oldScore+positiveDelta)
		perf.Trend = "rising"
		if oldScore <= snapshotThreshold && perf.HealthScore > snapshotThreshold {
			if err := m.captureSnapshot(ctx, agentID, brandID, perf.HealthScore); err != nil {
				log.Printf("ERROR: failed to capture snapshot for %s: %v", agentID, err)
			} else {
				action = domain.HealthActionSnapshotCreated
			}
		}
	case domain.SentimentNegative:
		perf.HealthScore = max(0, oldScore-negativeDelta)
		perf.Trend = "falling"
		if perf.HealthScore < resetThreshold {
			action = domain.HealthActionSuggestReset
		}
	default:
		return nil, fmt.Errorf("unknown sentiment %q", sentiment)
	}

	perf.LastUpdated = time.Now()
	if err := m.store.UpsertAgentPerformance(ctx, perf); err != nil {
		return nil, fmt.Errorf("failed to persist performance record: %w", err)
	}

	return &domain.FeedbackResult{
		AgentID:     agentID,
		Platform:    platform,
		HealthScore: perf.HealthScore,
		Action:      action,
	}, nil
}

func (m *Monitor) captureSnapshot(ctx context.Context, agentID, brandID string, score int) error {
	snap := &domain.AgentSnapshot{
		SnapshotID:  "snap_" + uuid.New().String()[:8],
		AgentID:     agentID,
		BrandID:     brandID,
		Reason:      domain.SnapshotReasonDopaminePeak,
		HealthScore: score,
		CreatedAt:   time.Now(),
	}
	return m.store.CreateSnapshot(ctx, snap)
}

// Restore resets the live trust signal for an agent to 100 from its most
// recent snapshot for the brand. Proceeds even when no snapshot exists.
// The snapshot's opaque data is not reconstructed into the live specialist;
// only the trust signal is reset.
func (m *Monitor) Restore(ctx context.Context, agentID, brandID string) (*domain.AgentSnapshot, error) {
	snap, err := m.store.LatestSnapshot(ctx, agentID, brandID)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	if snap == nil {
		log.Printf("WARN: no snapshot for agent %s brand %s, resetting anyway", agentID, brandID)
	}

	if err := m.store.ResetAgentHealth(ctx, agentID); err != nil {
		return nil, fmt.Errorf("failed to reset health: %w", err)
	}
	return snap, nil
}

// Pause administratively pauses an agent on a platform by setting the -1
// sentinel. Feedback cannot resurrect a paused agent; Restore can.
func (m *Monitor) Pause(ctx context.Context, agentID, platform string) error {
	perf, err := m.store.GetAgentPerformance(ctx, agentID, platform)
	if err != nil {
		return fmt.Errorf("failed to load performance record: %w", err)
	}
	if perf == nil {
		perf = &domain.AgentPerformance{
			AgentID:  agentID,
			Platform: platform,
		}
	}
	perf.HealthScore = domain.HealthScorePaused
	perf.Trend = "paused"
	perf.LastUpdated = time.Now()
	return m.store.UpsertAgentPerformance(ctx, perf)
}
