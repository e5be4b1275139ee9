// Package containment implements the four-tier failure escalation policy.
package containment

import (
	"context"
	"fmt"
	"log"

	"github.com/vmont3/veramkt-sub001/domain"
	"github.com/vmont3/veramkt-sub001/internal/notify"
	"github.com/vmont3/veramkt-sub001/store"
)

// Safe responses returned to end users on terminal tiers. Fixed strings
// regardless of the underlying technical cause; internal failure detail is
// never leaked.
const (
	SafeResponseCritical = "We hit a snag while preparing your content. Our team has been alerted and nothing was published. Your credits are untouched."
	SafeResponseStopLoss = "Spending on this campaign has been paused as a precaution. Our team will review it shortly. No further budget will be used."
)

// partialEscalationThreshold is the retry count at which a PARTIAL failure
// self-escalates to CRITICAL.
const partialEscalationThreshold = 2

// Classify is the pure dispatcher over failure type and context. It never
// touches the store; side effects belong to Controller.Handle.
func Classify(ftype domain.FailureType, fc domain.FailureContext) domain.ContainmentResult {
	switch ftype {
	case domain.FailureLocal:
		return domain.ContainmentResult{
			Success:     true,
			ActionTaken: "retry_specialist",
			ShouldRetry: true,
		}
	case domain.FailurePartial:
		if fc.RetryCount >= partialEscalationThreshold {
			return Classify(domain.FailureCritical, fc)
		}
		return domain.ContainmentResult{
			Success:     true,
			ActionTaken: "simplified_replan",
			ShouldRetry: true,
		}
	case domain.FailureCritical:
		return domain.ContainmentResult{
			Success:                   false,
			ActionTaken:               "block_and_rollback",
			SafeResponse:              SafeResponseCritical,
			ShouldRetry:               false,
			RequiresHumanIntervention: true,
		}
	case domain.FailureFinancial:
		return domain.ContainmentResult{
			Success:                   false,
			ActionTaken:               "emergency_stop_loss",
			SafeResponse:              SafeResponseStopLoss,
			ShouldRetry:               false,
			RequiresHumanIntervention: true,
		}
	default:
		// Unknown tags are treated as critical: fail safe.
		return Classify(domain.FailureCritical, fc)
	}
}

// Controller applies the containment verdict's side effects.
type Controller struct {
	store    store.Store
	notifier notify.Notifier
}

// NewController creates a containment controller.
func NewController(s store.Store, n notify.Notifier) *Controller {
	return &Controller{store: s, notifier: n}
}

// Handle classifies the failure and applies the tier's remediation.
// CRITICAL rolls back the plan's active tasks; FINANCIAL stop-losses the
// campaign's plan. Both alert a human. LOCAL and un-escalated PARTIAL only
// report the retry decision back to the caller.
func (c *Controller) Handle(ctx context.Context, ftype domain.FailureType, fc domain.FailureContext) domain.ContainmentResult {
	result := Classify(ftype, fc)

	switch result.ActionTaken {
	case "block_and_rollback":
		paused, err := c.store.PauseActiveTasks(ctx, fc.PlanID)
		if err != nil {
			log.Printf("ERROR: containment rollback failed for plan %s: %v", fc.PlanID, err)
		} else {
			log.Printf("WARN: containment blocked plan %s, paused %d active tasks", fc.PlanID, paused)
		}
		c.notifier.Alert("critical", fmt.Sprintf("containment blocked plan %s (task %s), human review required", fc.PlanID, fc.TaskID))

	case "emergency_stop_loss":
		paused, err := c.store.PauseActiveTasks(ctx, fc.PlanID)
		if err != nil {
			log.Printf("ERROR: stop-loss pause failed for campaign %s: %v", fc.CampaignID, err)
		} else {
			log.Printf("WARN: stop-loss triggered for campaign %s, paused %d active tasks", fc.CampaignID, paused)
		}
		c.notifier.Alert("financial", fmt.Sprintf("stop-loss triggered for campaign %s, spend halted", fc.CampaignID))

	case "simplified_replan":
		log.Printf("WARN: partial failure on plan %s (retry %d), issuing simplified replan", fc.PlanID, fc.RetryCount)

	default:
		log.Printf("WARN: local failure on task %s, retry advised", fc.TaskID)
	}

	return result
}
