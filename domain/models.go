package domain

import (
	"encoding/json"
	"time"
)

// Task represents a unit of billable, schedulable work.
type Task struct {
	TaskID       string          `json:"task_id"`
	PlanID       string          `json:"plan_id,omitempty"`
	AgentID      string          `json:"agent_id"`
	UserID       string          `json:"user_id"`
	Type         TaskType        `json:"type"`
	Priority     TaskPriority    `json:"priority"`
	Status       TaskStatus      `json:"status"`
	Data         json.RawMessage `json:"data,omitempty"`
	Result       json.RawMessage `json:"result,omitempty"`
	RetryCount   int             `json:"retry_count"`
	AllowRetry   bool            `json:"allow_retry"`
	ParentTaskID string          `json:"parent_task_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

// LedgerEntry is one append-only row in the credit ledger. Amount is
// positive for credits (top-ups) and negative for debits.
type LedgerEntry struct {
	EntryID       string    `json:"entry_id"`
	UserID        string    `json:"user_id"`
	Amount        int       `json:"amount"`
	Reason        string    `json:"reason"`
	TaskID        string    `json:"task_id,omitempty"`
	SourceAgentID string    `json:"source_agent_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ReservationStatus tracks the reserve-then-commit-or-release lifecycle.
type ReservationStatus string

const (
	ReservationHeld      ReservationStatus = "held"
	ReservationCommitted ReservationStatus = "committed"
	ReservationReleased  ReservationStatus = "released"
)

// Reservation is a hold on credits taken before a task executes. The hold
// is debited atomically at reserve time so concurrent spends by the same
// user can never overdraw the balance.
type Reservation struct {
	ReservationID string            `json:"reservation_id"`
	UserID        string            `json:"user_id"`
	Amount        int               `json:"amount"`
	TaskID        string            `json:"task_id"`
	Status        ReservationStatus `json:"status"`
	CreatedAt     time.Time         `json:"created_at"`
}

// AgentPerformance is the reputation record for one (agent, platform) pair.
// HealthScore stays in [0,100] except the -1 administrative pause sentinel.
type AgentPerformance struct {
	AgentID     string     `json:"agent_id"`
	Platform    string     `json:"platform"`
	HealthScore int        `json:"health_score"`
	Trend       string     `json:"trend,omitempty"`
	LastResetAt *time.Time `json:"last_reset_at,omitempty"`
	LastUpdated time.Time  `json:"last_updated"`
}

// AgentSnapshot is an immutable save-point of an agent's state captured at
// a reputation peak. Restore reads the most recent one; prior snapshots are
// never deleted.
type AgentSnapshot struct {
	SnapshotID  string          `json:"snapshot_id"`
	AgentID     string          `json:"agent_id"`
	BrandID     string          `json:"brand_id"`
	Reason      SnapshotReason  `json:"reason"`
	HealthScore int             `json:"health_score"`
	Data        json.RawMessage `json:"data,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// CampaignMetrics is the input to the finance guard.
type CampaignMetrics struct {
	CampaignID string  `json:"campaign_id,omitempty"`
	PlanID     string  `json:"plan_id,omitempty"`
	CPA        float64 `json:"cpa"`
	ROAS       float64 `json:"roas"`
	CTR        float64 `json:"ctr"`
	CPM        float64 `json:"cpm"`
	Frequency  float64 `json:"frequency"`
	Spend      float64 `json:"spend"`
	Budget     float64 `json:"budget"`
}

// FinanceVerdict is the finance guard's classification of campaign metrics.
type FinanceVerdict struct {
	Approved         bool          `json:"approved"`
	Action           VerdictAction `json:"action"`
	AdjustmentFactor float64       `json:"adjustment_factor"`
	Reason           string        `json:"reason,omitempty"`
}

// FailureContext is the ephemeral context handed to containment. The retry
// count is caller-supplied across retries; the dispatcher does not remember
// it between calls.
type FailureContext struct {
	TaskID     string          `json:"task_id,omitempty"`
	PlanID     string          `json:"plan_id,omitempty"`
	CampaignID string          `json:"campaign_id,omitempty"`
	UserID     string          `json:"user_id,omitempty"`
	RetryCount int             `json:"retry_count"`
	Detail     json.RawMessage `json:"detail,omitempty"`
}

// ContainmentResult is the uniform result shape returned by every tier.
type ContainmentResult struct {
	Success                   bool   `json:"success"`
	ActionTaken               string `json:"action_taken"`
	SafeResponse              string `json:"safe_response,omitempty"`
	ShouldRetry               bool   `json:"should_retry"`
	RequiresHumanIntervention bool   `json:"requires_human_intervention"`
}

// GenerateRequest is an inbound content-generation request.
type GenerateRequest struct {
	RequestID  string          `json:"request_id,omitempty"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	UserID     string          `json:"user_id"`
	UserBudget float64         `json:"user_budget,omitempty"`
	Files      []string        `json:"files,omitempty"`
}

// GenerateResponse is the normalized response for a generation request.
type GenerateResponse struct {
	Success    bool            `json:"success"`
	Data       json.RawMessage `json:"data,omitempty"`
	Cost       int             `json:"cost,omitempty"`
	Validation string          `json:"validation,omitempty"`
	Metadata   *ResponseMeta   `json:"metadata,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	Error      string          `json:"error,omitempty"`
	Suggestion string          `json:"suggestion,omitempty"`
}

// ResponseMeta carries execution metadata on a successful response.
type ResponseMeta struct {
	TaskID     string `json:"task_id"`
	Capability string `json:"capability"`
	DurationMs int64  `json:"duration_ms"`
}

// FeedbackResult reports the outcome of applying one feedback event.
type FeedbackResult struct {
	AgentID     string       `json:"agent_id"`
	Platform    string       `json:"platform"`
	HealthScore int          `json:"health_score"`
	Action      HealthAction `json:"action"`
}
