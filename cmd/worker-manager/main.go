package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.uber.org/zap"

	"hajj-assistant/internal/api"
	"hajj-assistant/internal/app"
	"hajj-assistant/internal/common/camunda"
	"hajj-assistant/internal/common/config"
	"hajj-assistant/internal/common/logger"
	"hajj-assistant/internal/common/observability"
	"hajj-assistant/pkg/registry"

	ci "hajj-assistant/internal/workers/assistant/classify-intent"
	ffr "hajj-assistant/internal/workers/assistant/file-fraud-report"
	ma "hajj-assistant/internal/workers/assistant/match-agency"
	ru "hajj-assistant/internal/workers/assistant/resolve-utterance"
	qa "hajj-assistant/internal/workers/registry/query-agencies"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("info", "console").Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.NewWithOptions(logger.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)
	log.Info("Starting worker manager...", cfg.Summary())

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	assistant, err := app.Build(ctx, cfg, obs, log, app.Options{ConnectAttempts: 10, ConnectDelay: 2 * time.Second})
	if err != nil {
		zapLog.Fatal("assistant init failed", zap.Error(err))
	}
	defer assistant.Close()

	go assistant.RunIndexRefresh(ctx)

	// --- Zeebe workers ---
	var workers []worker.JobWorker
	if cfg.Camunda.Enabled {
		client, jobWorkers := startWorkers(ctx, cfg, assistant, log, zapLog)
		defer client.Close()
		workers = jobWorkers
	} else {
		log.Info("camunda disabled, serving HTTP only", nil)
	}

	// --- HTTP ---
	checks := map[string]api.Pinger{
		"database": assistant.DB,
		"redis":    assistant.Redis,
	}
	if assistant.Search != nil {
		checks["elasticsearch"] = assistant.Search
	}
	handler := api.NewHandler(assistant.Sessions, assistant.Stats, assistant.Composer, checks, log)
	srv := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           api.NewRouter(handler, log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("HTTP server listening", map[string]interface{}{"address": cfg.HTTP.Address})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("http server failed", zap.Error(err))
			stop()
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	log.Info("Shutdown signal received, stopping workers...", nil)

	for _, w := range workers {
		w.Close()
		w.AwaitClose()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("http shutdown failed", zap.Error(err))
	}

	log.Info("All workers stopped. Exiting.", nil)
}

func startWorkers(ctx context.Context, cfg *config.Config, assistant *app.App, log logger.Logger, zapLog *zap.Logger) (*camunda.Client, []worker.JobWorker) {
	var client *camunda.Client
	err := app.RetryWithBackoff(ctx, func() error {
		var err error
		client, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			ConnectionTimeout:      10 * time.Second,
			RetryConfig: &camunda.RetryConfig{
				MaxRetries:     camunda.DefaultRetryConfig.MaxRetries,
				BaseDelay:      camunda.DefaultRetryConfig.BaseDelay,
				MaxDelay:       camunda.DefaultRetryConfig.MaxDelay,
				AttemptTimeout: config.GetDuration(cfg.Camunda.RequestTimeout),
			},
		})
		return err
	}, 10, 2*time.Second, log, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	log.Info("Zeebe client connected successfully", map[string]interface{}{"gateway": cfg.Camunda.BrokerAddress})

	activities, err := registry.LoadRegistry(cfg.Registry.Path)
	if err != nil {
		zapLog.Fatal("activity registry load failed", zap.Error(err), zap.String("path", cfg.Registry.Path))
	}
	if err := activities.Validate(); err != nil {
		zapLog.Fatal("activity registry invalid", zap.Error(err))
	}

	timeout := func(taskType string) time.Duration {
		return config.GetDuration(config.GetWorkerConfig(cfg, taskType).Timeout)
	}
	jobs := make(map[string]*camunda.Jobs)
	for _, taskType := range []string{ru.TaskType, ci.TaskType, ma.TaskType, qa.TaskType, ffr.TaskType} {
		jobs[taskType] = camunda.NewJobs(taskType, client.Retry(), assistant.Obs,
			log.With(map[string]interface{}{"taskType": taskType}))
	}

	handlers := map[string]camunda.JobHandlerFunc{
		ru.TaskType:  ru.NewHandler(&ru.Config{Timeout: timeout(ru.TaskType), Jobs: jobs[ru.TaskType]}, assistant.Sessions, log).Handle,
		ci.TaskType:  ci.NewHandler(&ci.Config{Timeout: timeout(ci.TaskType), Jobs: jobs[ci.TaskType]}, assistant.Detector, assistant.Intents, log).Handle,
		ma.TaskType:  ma.NewHandler(&ma.Config{Timeout: timeout(ma.TaskType), Jobs: jobs[ma.TaskType]}, assistant.Matcher, log).Handle,
		qa.TaskType:  qa.NewHandler(&qa.Config{Timeout: timeout(qa.TaskType), Jobs: jobs[qa.TaskType]}, assistant.DB.DB, assistant.Schema, log).Handle,
		ffr.TaskType: ffr.NewHandler(&ffr.Config{Timeout: timeout(ffr.TaskType), Jobs: jobs[ffr.TaskType]}, assistant.Reports, log).Handle,
	}

	var workers []worker.JobWorker
	for taskType, handle := range handlers {
		activity, err := activities.Find(taskType)
		if err != nil {
			log.Warn("task type not registered, variables are not validated", map[string]interface{}{"taskType": taskType})
		} else {
			handle = camunda.ValidateVariables(activity, handle, jobs[taskType])
		}
		if jw := camunda.StartWorker(client.GetClient(), taskType, config.GetWorkerConfig(cfg, taskType), handle, log); jw != nil {
			workers = append(workers, jw)
		}
	}
	log.Info("workers registered", map[string]interface{}{"count": len(workers)})
	return client, workers
}
