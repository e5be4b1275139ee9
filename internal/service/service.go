// Package service implements the orchestration façade: the single entry
// point that validates, routes and executes inbound requests.
package service

import (
	"github.com/vmont3/veramkt-sub001/config"
	"github.com/vmont3/veramkt-sub001/internal/finance"
	"github.com/vmont3/veramkt-sub001/internal/health"
	"github.com/vmont3/veramkt-sub001/internal/notify"
	"github.com/vmont3/veramkt-sub001/internal/specialist"
	"github.com/vmont3/veramkt-sub001/policy"
	"github.com/vmont3/veramkt-sub001/store"
)

type Service struct {
	store        store.Store
	registry     *specialist.Registry
	notifier     notify.Notifier
	policyEngine *policy.Engine
	finance      *finance.Guard
	health       *health.Monitor
	config       *config.Config
}

func New(s store.Store, reg *specialist.Registry, n notify.Notifier, pe *policy.Engine, fg *finance.Guard, hm *health.Monitor, cfg *config.Config) *Service {
	return &Service{
		store:        s,
		registry:     reg,
		notifier:     n,
		policyEngine: pe,
		finance:      fg,
		health:       hm,
		config:       cfg,
	}
}
