// Package finance implements the campaign stop-loss and optimization rules.
package finance

import (
	"context"
	"fmt"
	"log"

	"github.com/vmont3/veramkt-sub001/domain"
	"github.com/vmont3/veramkt-sub001/internal/containment"
)

// Limits are the hard and soft thresholds the guard evaluates against.
type Limits struct {
	MaxCPA       float64
	MinROAS      float64
	MinCTR       float64
	MaxFrequency float64
}

// DefaultLimits returns the stock thresholds.
func DefaultLimits() Limits {
	return Limits{
		MaxCPA:       50,
		MinROAS:      2.0,
		MinCTR:       0.01,
		MaxFrequency: 3.5,
	}
}

// minSpendForROASCheck: the ROAS stop-loss only fires once a campaign has
// spent enough for the signal to mean anything.
const minSpendForROASCheck = 100

// Guard evaluates campaign metrics against the configured limits.
type Guard struct {
	limits     Limits
	controller *containment.Controller
}

// NewGuard creates a finance guard.
func NewGuard(limits Limits, controller *containment.Controller) *Guard {
	return &Guard{limits: limits, controller: controller}
}

// Evaluate classifies the metrics in fixed priority order. Hard stop-loss
// rules short-circuit everything else; a campaign can never be paused and
// scaled in the same verdict. Hard stops trigger FINANCIAL containment.
func (g *Guard) Evaluate(ctx context.Context, m domain.CampaignMetrics) domain.FinanceVerdict {
	// Hard stop-loss rules, checked first and in order.
	if m.CPA > g.limits.MaxCPA {
		g.triggerStopLoss(ctx, m, fmt.Sprintf("cpa %.2f exceeds limit %.2f", m.CPA, g.limits.MaxCPA))
		return domain.FinanceVerdict{
			Approved:         false,
			Action:           domain.VerdictPause,
			AdjustmentFactor: 0,
			Reason:           fmt.Sprintf("CPA %.2f above hard limit %.2f", m.CPA, g.limits.MaxCPA),
		}
	}
	if m.Spend > minSpendForROASCheck && m.ROAS < g.limits.MinROAS {
		g.triggerStopLoss(ctx, m, fmt.Sprintf("roas %.2f below floor %.2f at spend %.2f", m.ROAS, g.limits.MinROAS, m.Spend))
		return domain.FinanceVerdict{
			Approved:         false,
			Action:           domain.VerdictPause,
			AdjustmentFactor: 0,
			Reason:           fmt.Sprintf("ROAS %.2f below floor %.2f with %.2f spent", m.ROAS, g.limits.MinROAS, m.Spend),
		}
	}

	// Soft optimization rules, independent of each other. Low CTR wins
	// over high frequency when both apply.
	if m.CTR < g.limits.MinCTR {
		return domain.FinanceVerdict{
			Approved:         true,
			Action:           domain.VerdictOptimize,
			AdjustmentFactor: 0.8,
			Reason:           fmt.Sprintf("CTR %.4f below %.4f, reducing bids", m.CTR, g.limits.MinCTR),
		}
	}
	if m.Frequency > g.limits.MaxFrequency {
		return domain.FinanceVerdict{
			Approved:         true,
			Action:           domain.VerdictOptimize,
			AdjustmentFactor: 0.7,
			Reason:           fmt.Sprintf("frequency %.2f above %.2f, audience fatigued", m.Frequency, g.limits.MaxFrequency),
		}
	}

	// Scale rule.
	if m.ROAS > 1.5*g.limits.MinROAS && m.CPA < 0.7*g.limits.MaxCPA {
		return domain.FinanceVerdict{
			Approved:         true,
			Action:           domain.VerdictScale,
			AdjustmentFactor: 1.2,
			Reason:           "strong ROAS with healthy CPA",
		}
	}

	return domain.FinanceVerdict{
		Approved:         true,
		Action:           domain.VerdictApprove,
		AdjustmentFactor: 1.0,
	}
}

func (g *Guard) triggerStopLoss(ctx context.Context, m domain.CampaignMetrics, detail string) {
	log.Printf("WARN: finance guard stop-loss for campaign %s: %s", m.CampaignID, detail)
	if g.controller == nil {
		return
	}
	g.controller.Handle(ctx, domain.FailureFinancial, domain.FailureContext{
		CampaignID: m.CampaignID,
		PlanID:     m.PlanID,
	})
}
