package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jwalitptl/surveillance-engine/internal/config"
	"github.com/jwalitptl/surveillance-engine/internal/email"
	"github.com/jwalitptl/surveillance-engine/internal/repository/postgres"
	"github.com/jwalitptl/surveillance-engine/internal/service/notification"
	"github.com/jwalitptl/surveillance-engine/internal/worker"
	"github.com/jwalitptl/surveillance-engine/pkg/logger"
	"github.com/jwalitptl/surveillance-engine/pkg/messaging"
	redisbroker "github.com/jwalitptl/surveillance-engine/pkg/messaging/redis"
	"github.com/jwalitptl/surveillance-engine/pkg/metrics"
)

// workerEnv overlays worker tuning from the environment on top of the
// shared config file.
type workerEnv struct {
	Sweeper      worker.SweeperConfig
	Reminder     worker.ReminderConfig
	AuditCleanup worker.AuditCleanupConfig
	MetricsPort  int `envconfig:"METRICS_PORT" default:"9091"`
}

func main() {
	lg := logger.NewLogger(nil)

	cfg, err := config.LoadConfig()
	if err != nil {
		lg.Fatal(err, "failed to load configuration")
	}

	var env workerEnv
	if err := envconfig.Process("", &env); err != nil {
		lg.Fatal(err, "failed to load worker environment")
	}
	if env.Sweeper.EscalationDaysOverdue == 0 {
		env.Sweeper.EscalationDaysOverdue = cfg.Surveillance.EscalationDaysOverdue
	}
	if env.Sweeper.GraceDaysOverdue == 0 {
		env.Sweeper.GraceDaysOverdue = cfg.Surveillance.GraceDaysOverdue
	}
	if env.Reminder.ReminderDaysBefore == 0 {
		env.Reminder.ReminderDaysBefore = cfg.Surveillance.ReminderDaysBefore
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		lg.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	var broker messaging.Broker
	if cfg.Redis.URL != "" {
		broker, err = redisbroker.NewRedisBroker(redisbroker.Config{
			URL:          cfg.Redis.URL,
			MaxRetries:   cfg.Redis.MaxRetries,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		}, &lg.ZL)
		if err != nil {
			lg.Fatal(err, "failed to connect to redis")
		}
		defer broker.Close()
	}

	m := metrics.NewMetrics("surveillance", "worker")

	scheduleRepo := postgres.NewScheduleRepository(db)
	patientDir := postgres.NewPatientDirectory(db)
	clinicianDir := postgres.NewClinicianDirectory(db)
	notificationRepo := postgres.NewNotificationRepository(db)
	auditRepo := postgres.NewAuditRepository(db)

	notifier := notification.NewService(
		notificationRepo,
		email.NewSMTPSender(cfg.SMTP),
		broker,
		lg, m,
		cfg.Surveillance.NotifyTimeout(),
	)

	sweeper := worker.NewSweeper(scheduleRepo, clinicianDir, notifier, env.Sweeper, lg, m)
	reminder := worker.NewReminderWorker(scheduleRepo, patientDir, notifier, env.Reminder, lg, m)
	auditCleanup := worker.NewAuditCleanupWorker(auditRepo, env.AuditCleanup, lg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	for name, start := range map[string]func(context.Context){
		"sweeper":       sweeper.Start,
		"reminder":      reminder.Start,
		"audit_cleanup": auditCleanup.Start,
	} {
		wg.Add(1)
		go func(name string, start func(context.Context)) {
			defer wg.Done()
			lg.Info("worker started", "worker", name)
			start(ctx)
			lg.Info("worker stopped", "worker", name)
		}(name, start)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", env.MetricsPort),
		Handler: metricsMux(db),
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			lg.Error(err, "metrics server failed")
		}
	}()

	<-ctx.Done()
	lg.Info("shutting down workers")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error(err, "metrics server forced shutdown")
	}
	wg.Wait()
	os.Exit(0)
}

func metricsMux(pinger interface {
	PingContext(ctx context.Context) error
}) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := pinger.PingContext(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	return mux
}
