package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/surveillance-engine/internal/config"
	auditHandler "github.com/jwalitptl/surveillance-engine/internal/handler/audit"
	healthHandler "github.com/jwalitptl/surveillance-engine/internal/handler/health"
	surveillanceHandler "github.com/jwalitptl/surveillance-engine/internal/handler/surveillance"
	"github.com/jwalitptl/surveillance-engine/internal/repository/postgres"
	"github.com/jwalitptl/surveillance-engine/internal/router"
	auditService "github.com/jwalitptl/surveillance-engine/internal/service/audit"
	"github.com/jwalitptl/surveillance-engine/internal/service/protocol"
	surveillanceService "github.com/jwalitptl/surveillance-engine/internal/service/surveillance"
	"github.com/jwalitptl/surveillance-engine/pkg/logger"
	"github.com/jwalitptl/surveillance-engine/pkg/metrics"
	"github.com/jwalitptl/surveillance-engine/pkg/validator"
)

func main() {
	lg := logger.NewLogger(nil)

	cfg, err := config.LoadConfig()
	if err != nil {
		lg.Fatal(err, "failed to load configuration")
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		lg.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	catalog, err := protocol.LoadFile(cfg.Surveillance.ProtocolFile, validator.New())
	if err != nil {
		lg.Fatal(err, "failed to load protocol catalog")
	}

	m := metrics.NewMetrics("surveillance", "api")

	scheduleRepo := postgres.NewScheduleRepository(db)
	auditRepo := postgres.NewAuditRepository(db)

	auditor := auditService.NewService(auditRepo)
	engine := surveillanceService.NewService(scheduleRepo, catalog, auditor, lg, m)

	r := router.New(router.Config{
		RateLimit: rate.Limit(cfg.Server.RateLimitRPS),
		RateBurst: cfg.Server.RateLimitBurst,
		Timeout:   time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
	}, lg,
		surveillanceHandler.NewHandler(engine),
		auditHandler.NewHandler(auditor),
	)
	healthHandler.NewHandler(db).RegisterRoutes(r)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		lg.Info("api listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			lg.Fatal(err, "server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	lg.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		lg.Error(err, "forced shutdown")
	}
}
