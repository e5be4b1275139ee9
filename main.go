package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/vmont3/veramkt-sub001/config"
	"github.com/vmont3/veramkt-sub001/internal/containment"
	"github.com/vmont3/veramkt-sub001/internal/finance"
	"github.com/vmont3/veramkt-sub001/internal/health"
	"github.com/vmont3/veramkt-sub001/internal/notify"
	"github.com/vmont3/veramkt-sub001/internal/router"
	"github.com/vmont3/veramkt-sub001/internal/scheduler"
	"github.com/vmont3/veramkt-sub001/internal/service"
	"github.com/vmont3/veramkt-sub001/internal/specialist"
	v1 "github.com/vmont3/veramkt-sub001/internal/transport/http/v1"
	"github.com/vmont3/veramkt-sub001/policy"
	"github.com/vmont3/veramkt-sub001/store"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log.Printf("Starting orchestrator...")
	log.Printf("HTTP Port: %d", cfg.HTTPPort)
	log.Printf("Database: %s", cfg.DatabaseURL)
	log.Printf("Cycle interval: %s, batch size: %d", cfg.CycleInterval, cfg.BatchSize)

	// Initialize store
	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	// Initialize notifier
	notifier := notify.NewClient(cfg.NotifyWebhookURL)

	// Initialize policy engine
	ctx := context.Background()
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}

	// Initialize specialist registry. Workers register here by capability;
	// endpoints come from SPECIALIST_<CAPABILITY>_URL style env wiring in
	// the deployment, defaulting all known capabilities to one worker.
	registry := specialist.NewRegistry()
	workerURL := os.Getenv("SPECIALIST_WORKER_URL")
	if workerURL != "" {
		agent := specialist.NewHTTPAgent(workerURL, 2*time.Minute)
		for _, t := range router.KnownTypes() {
			registry.Register(router.Resolve(t).Capability, agent)
		}
		registry.Register(router.DefaultCapability, agent)
	} else {
		log.Printf("WARN: SPECIALIST_WORKER_URL not set, no specialists registered")
	}

	// Initialize containment, finance guard and health monitor
	controller := containment.NewController(db, notifier)
	guard := finance.NewGuard(finance.Limits{
		MaxCPA:       cfg.MaxCPA,
		MinROAS:      cfg.MinROAS,
		MinCTR:       cfg.MinCTR,
		MaxFrequency: cfg.MaxFrequency,
	}, controller)
	monitor := health.NewMonitor(db)

	// Initialize scheduler
	sched := scheduler.New(db, registry, controller, notifier, &scheduler.Config{
		CycleInterval: cfg.CycleInterval,
		BatchSize:     cfg.BatchSize,
		MaxRetries:    cfg.MaxRetries,
	})
	sched.Start()
	defer sched.Stop()

	// Initialize service and handlers
	svc := service.New(db, registry, notifier, policyEngine, guard, monitor, cfg)
	h := v1.NewHandler(svc)

	// Create Echo server
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	h.RegisterRoutes(e)

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("API started on port %d", cfg.HTTPPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down orchestrator...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown server gracefully: %v", err)
	}

	log.Println("Orchestrator stopped")
}
