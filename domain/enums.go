// Package domain defines the core domain models for the orchestrator.
package domain

// TaskType represents the kind of billable work a task carries.
type TaskType string

const (
	TaskTypeMonitor             TaskType = "monitor"
	TaskTypeDesign              TaskType = "design"
	TaskTypeCopy                TaskType = "copy"
	TaskTypeBrand               TaskType = "brand"
	TaskTypePublish             TaskType = "publish"
	TaskTypeEmail               TaskType = "email"
	TaskTypePerformance         TaskType = "performance"
	TaskTypeProposedOpportunity TaskType = "proposed_opportunity"
	TaskTypeConversation        TaskType = "conversation"
)

// TaskStatus represents the status of a task. Status only moves forward:
// pending -> in_progress -> completed | failed | paused_emergency. A retry
// never rewinds history; it creates a new attempt task.
type TaskStatus string

const (
	TaskStatusPending         TaskStatus = "pending"
	TaskStatusInProgress      TaskStatus = "in_progress"
	TaskStatusCompleted       TaskStatus = "completed"
	TaskStatusFailed          TaskStatus = "failed"
	TaskStatusPausedEmergency TaskStatus = "paused_emergency"
)

// TaskPriority orders dequeue within a scheduler cycle.
type TaskPriority string

const (
	TaskPriorityHigh   TaskPriority = "high"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityLow    TaskPriority = "low"
)

// FailureType classifies a failure for the containment dispatcher.
type FailureType string

const (
	// FailureLocal: one specialist execution misbehaved.
	FailureLocal FailureType = "LOCAL"
	// FailurePartial: systemic disagreement between coordinated specialists.
	FailurePartial FailureType = "PARTIAL"
	// FailureCritical: suspected fabricated or unsafe output.
	FailureCritical FailureType = "CRITICAL"
	// FailureFinancial: a monitored metric breached a hard safety limit.
	FailureFinancial FailureType = "FINANCIAL"
)

// VerdictAction is the finance guard classification of campaign metrics.
type VerdictAction string

const (
	VerdictApprove  VerdictAction = "APPROVE"
	VerdictOptimize VerdictAction = "OPTIMIZE"
	VerdictScale    VerdictAction = "SCALE"
	VerdictPause    VerdictAction = "PAUSE"
)

// Sentiment is explicit feedback on an agent's output.
type Sentiment string

const (
	SentimentPositive Sentiment = "POSITIVE"
	SentimentNegative Sentiment = "NEGATIVE"
)

// HealthAction reports what the health monitor did with a feedback event.
type HealthAction string

const (
	HealthActionLogOnly         HealthAction = "LOG_ONLY"
	HealthActionSnapshotCreated HealthAction = "SNAPSHOT_CREATED"
	HealthActionSuggestReset    HealthAction = "SUGGEST_RESET"
)

// SnapshotReason records why an agent snapshot was captured.
type SnapshotReason string

const (
	SnapshotReasonDopaminePeak SnapshotReason = "DOPAMINE_PEAK"
	SnapshotReasonManual       SnapshotReason = "MANUAL"
)

// HealthScorePaused is the sentinel for an administratively paused agent.
// Only an explicit pause operation sets it, never feedback.
const HealthScorePaused = -1

// taskPrices is the fixed taskType -> price table, in credits. Monitoring
// and analysis tasks are free; generation tasks are billed.
var taskPrices = map[TaskType]int{
	TaskTypeMonitor:             0,
	TaskTypeDesign:              12,
	TaskTypeCopy:                8,
	TaskTypeBrand:               15,
	TaskTypePublish:             3,
	TaskTypeEmail:               5,
	TaskTypePerformance:         0,
	TaskTypeProposedOpportunity: 0,
	TaskTypeConversation:        0,
}

// PriceFor returns the credit price for a task type. Unknown types are free.
func PriceFor(t TaskType) int {
	return taskPrices[t]
}
