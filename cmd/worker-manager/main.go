// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"lead-intake-workers/internal/channel"
	"lead-intake-workers/internal/common/camunda"
	"lead-intake-workers/internal/common/config"
	"lead-intake-workers/internal/common/database"
	"lead-intake-workers/internal/common/logger"
	"lead-intake-workers/internal/common/observability"
	"lead-intake-workers/internal/followup"
	"lead-intake-workers/internal/followup/redislock"
	"lead-intake-workers/internal/intake"
	"lead-intake-workers/internal/repository/cache"
	"lead-intake-workers/internal/repository/postgres"
	"lead-intake-workers/pkg/catalog"

	cf "lead-intake-workers/internal/workers/followup/cancel-followup"
	df "lead-intake-workers/internal/workers/followup/deliver-followup"
	dd "lead-intake-workers/internal/workers/followup/dispatch-due"
	lf "lead-intake-workers/internal/workers/followup/list-followups"
	sm "lead-intake-workers/internal/workers/followup/schedule-manual"
	ql "lead-intake-workers/internal/workers/leads/qualify-lead"
	ul "lead-intake-workers/internal/workers/leads/update-lead"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("app", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Zeebe ---
	zeebe, err := camunda.NewClient(ctx, camunda.ConfigFrom(cfg.Camunda), log)
	if err != nil {
		zapLog.Fatal("zeebe client failed", zap.Error(err))
	}
	defer zeebe.Close()

	// --- PostgreSQL ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		if err := pg.Ping(ctx); err != nil {
			pg.Close()
			return err
		}
		return nil
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	store := postgres.New(pg.DB)
	var templates followup.TemplateReader = store
	var locker followup.Locker
	var invalidator catalog.Invalidator

	// --- Redis (optional) ---
	if cfg.Database.Redis.Enabled {
		rdb := database.NewRedis(cfg.Database.Redis)
		err = retryWithBackoff(func() error {
			return rdb.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer rdb.Close()

		locker = redislock.New(rdb.Client, config.GetDuration(cfg.Delivery.LockTTL))
		cached := cache.NewTemplates(store, rdb.Client, time.Duration(cfg.Templates.CacheTTL)*time.Second, log)
		templates = cached
		invalidator = cached
		zapLog.Info("Redis connected successfully")
	} else {
		zapLog.Info("Redis disabled, using in-process dispatch locks")
	}

	// --- Transports ---
	router, err := channel.NewRouterFromConfig(ctx, cfg, log)
	if err != nil {
		zapLog.Fatal("channel setup failed", zap.Error(err))
	}

	// --- Template catalog ---
	if cfg.Templates.SeedOnStart && cfg.Templates.CatalogPath != "" {
		c, err := catalog.Load(cfg.Templates.CatalogPath)
		if err != nil {
			zapLog.Fatal("template catalog load failed", zap.String("path", cfg.Templates.CatalogPath), zap.Error(err))
		}
		n, err := catalog.Seed(ctx, c, store, invalidator)
		if err != nil {
			zapLog.Fatal("template catalog seed failed", zap.Error(err))
		}
		zapLog.Info("Template catalog seeded", zap.Int("templates", n))
	}

	// --- Services ---
	scheduler := followup.NewScheduler(templates, store, log)
	dispatcher := followup.NewDispatcher(followup.DispatcherDependencies{
		Leads:     store,
		Templates: templates,
		Jobs:      store,
		Senders:   router,
		Locker:    locker,
		Logger:    log,
	}, followup.DispatcherConfig{
		SendTimeout:    config.GetDuration(cfg.Delivery.SendTimeout),
		ClaimTTL:       config.GetDuration(cfg.Delivery.LockTTL),
		DefaultSubject: cfg.Delivery.DefaultSubject,
	})
	leads := intake.NewService(store, scheduler, log)

	// --- Workers ---
	qualifyHandler, err := ql.NewHandler(ql.HandlerOptions{AppConfig: cfg, Service: leads, Observability: obs, Logger: log})
	if err != nil {
		zapLog.Fatal("failed to create lead-qualify handler", zap.Error(err))
	}
	qc := qualifyHandler.Config()
	startWorker(zeebe, ql.TaskType, qc.Enabled, qc.MaxJobsActive, qc.Timeout, qualifyHandler.Handle, zapLog)

	updateHandler, err := ul.NewHandler(ul.HandlerOptions{AppConfig: cfg, Service: leads, Observability: obs, Logger: log})
	if err != nil {
		zapLog.Fatal("failed to create lead-update handler", zap.Error(err))
	}
	uc := updateHandler.Config()
	startWorker(zeebe, ul.TaskType, uc.Enabled, uc.MaxJobsActive, uc.Timeout, updateHandler.Handle, zapLog)

	manualHandler, err := sm.NewHandler(sm.HandlerOptions{AppConfig: cfg, Scheduler: dispatcher, Observability: obs, Logger: log})
	if err != nil {
		zapLog.Fatal("failed to create followup-schedule-manual handler", zap.Error(err))
	}
	mc := manualHandler.Config()
	startWorker(zeebe, sm.TaskType, mc.Enabled, mc.MaxJobsActive, mc.Timeout, manualHandler.Handle, zapLog)

	deliverHandler, err := df.NewHandler(df.HandlerOptions{AppConfig: cfg, Dispatcher: dispatcher, Observability: obs, Logger: log})
	if err != nil {
		zapLog.Fatal("failed to create followup-deliver handler", zap.Error(err))
	}
	dc := deliverHandler.Config()
	startWorker(zeebe, df.TaskType, dc.Enabled, dc.MaxJobsActive, dc.Timeout, deliverHandler.Handle, zapLog)

	dueHandler, err := dd.NewHandler(dd.HandlerOptions{AppConfig: cfg, Dispatcher: dispatcher, Observability: obs, Logger: log})
	if err != nil {
		zapLog.Fatal("failed to create followup-dispatch-due handler", zap.Error(err))
	}
	ddc := dueHandler.Config()
	startWorker(zeebe, dd.TaskType, ddc.Enabled, ddc.MaxJobsActive, ddc.Timeout, dueHandler.Handle, zapLog)

	cancelHandler, err := cf.NewHandler(cf.HandlerOptions{AppConfig: cfg, Dispatcher: dispatcher, Observability: obs, Logger: log})
	if err != nil {
		zapLog.Fatal("failed to create followup-cancel handler", zap.Error(err))
	}
	cc := cancelHandler.Config()
	startWorker(zeebe, cf.TaskType, cc.Enabled, cc.MaxJobsActive, cc.Timeout, cancelHandler.Handle, zapLog)

	listHandler, err := lf.NewHandler(lf.HandlerOptions{AppConfig: cfg, Dispatcher: dispatcher, Observability: obs, Logger: log})
	if err != nil {
		zapLog.Fatal("failed to create followup-list handler", zap.Error(err))
	}
	lc := listHandler.Config()
	startWorker(zeebe, lf.TaskType, lc.Enabled, lc.MaxJobsActive, lc.Timeout, listHandler.Handle, zapLog)

	zapLog.Info("Workers registered", zap.Strings("taskTypes", zeebe.TaskTypes()))

	// --- Health / metrics ---
	srv := &http.Server{Addr: cfg.Metrics.Address, Handler: newHealthMux(zeebe, pg)}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Metrics.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLog.Info("Shutdown signal received, stopping workers...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	zeebe.CloseWorkers()

	zapLog.Info("Worker manager stopped gracefully")
}

func startWorker(client *camunda.Client, taskType string, enabled bool, maxJobsActive int, timeout time.Duration, handler worker.JobHandler, log *zap.Logger) {
	if !enabled {
		log.Info("worker disabled", zap.String("taskType", taskType))
		return
	}
	if err := client.StartWorker(taskType, handler, camunda.WorkerOptions{MaxJobsActive: maxJobsActive, Timeout: timeout}); err != nil {
		log.Fatal("failed to start worker", zap.String("taskType", taskType), zap.Error(err))
	}
}

func newHealthMux(zeebe *camunda.Client, pg *database.PostgresClient) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		body := map[string]string{"status": "ready", "time": time.Now().Format(time.RFC3339)}
		code := http.StatusOK
		if err := zeebe.HealthCheck(ctx); err != nil {
			body["status"], body["zeebe"] = "not ready", err.Error()
			code = http.StatusServiceUnavailable
		}
		if err := pg.Ping(ctx); err != nil {
			body["status"], body["postgres"] = "not ready", err.Error()
			code = http.StatusServiceUnavailable
		}
		writeStatus(w, code, body)
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func writeStatus(w http.ResponseWriter, code int, body map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
