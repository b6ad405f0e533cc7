// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"lendmarket-workers/internal/common/auth"
	"lendmarket-workers/internal/common/camunda"
	"lendmarket-workers/internal/common/config"
	"lendmarket-workers/internal/common/database"
	"lendmarket-workers/internal/common/logger"
	"lendmarket-workers/internal/common/observability"
	"lendmarket-workers/pkg/registry"

	// Risk & Matching Workers (3)
	ecr "lendmarket-workers/internal/workers/risk/evaluate-company-risk"
	rle "lendmarket-workers/internal/workers/risk/recommend-lenders"
	rlo "lendmarket-workers/internal/workers/risk/recommend-loans"

	// Loan Lifecycle Workers (4)
	clr "lendmarket-workers/internal/workers/loan/create-loan-request"
	fl "lendmarket-workers/internal/workers/loan/fund-loan"
	psf "lendmarket-workers/internal/workers/loan/parse-search-filters"
	vlr "lendmarket-workers/internal/workers/loan/validate-loan-request"

	// Directory & Data Access Workers (2)
	sc "lendmarket-workers/internal/workers/company/search-companies"
	qp "lendmarket-workers/internal/workers/data-access/query-postgresql"

	// User Lifecycle Workers (2)
	au "lendmarket-workers/internal/workers/user/approve-user"
	cur "lendmarket-workers/internal/workers/user/create-user-record"

	// Infrastructure Workers (3)
	br "lendmarket-workers/internal/workers/infrastructure/build-response"
	rlc "lendmarket-workers/internal/workers/infrastructure/rate-limit-check"
	vs "lendmarket-workers/internal/workers/infrastructure/validate-session"

	// Communication Workers (2)
	cm "lendmarket-workers/internal/workers/communication/contact-message"
	sn "lendmarket-workers/internal/workers/communication/send-notification"
)

const activityRegistryPath = "configs/activity-registry.json"

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
		fallback := logger.New("info", "console")
		fallback.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("app", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New("worker-manager")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init Zeebe Client with retry ---
	var camundaClient *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		camundaClient, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			ConnectionTimeout:      10 * time.Second,
			RequestTimeout:         30 * time.Second,
		})
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zeebeClient := camundaClient.GetClient()
	zapLog.Info("Zeebe client connected successfully")

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Keycloak Client ---
	keycloak := auth.NewKeycloakClient(
		cfg.Auth.Keycloak.URL,
		cfg.Auth.Keycloak.Realm,
		cfg.Auth.Keycloak.ClientID,
		cfg.Auth.Keycloak.ClientSecret,
	)
	zapLog.Info("All external service clients initialized")

	// --- Load Activity Registry ---
	activityReg, err := registry.LoadRegistry(activityRegistryPath)
	if err != nil {
		zapLog.Warn("activity registry unavailable", zap.Error(err))
		activityReg = &registry.ActivityRegistry{}
	} else {
		zapLog.Info("activity registry loaded",
			zap.Int("activities", len(activityReg.Activities)),
			zap.String("version", activityReg.Version),
		)
	}

	// --- 1. Risk & Matching Workers (3) ---
	if taskType := ecr.TaskType; config.IsWorkerEnabled(cfg, taskType) {
		wcfg := config.GetWorkerConfig(cfg, taskType)
		handler := ecr.NewHandler(
			&ecr.Config{
				Timeout:  config.GetDuration(wcfg.Timeout),
				CacheTTL: 15 * time.Minute,
			},
			pg.DB, redis.Client, log,
		)
		startWorker(zeebeClient, taskType, wcfg, handler.Handle, zapLog)
	}

	if taskType := rlo.TaskType; config.IsWorkerEnabled(cfg, taskType) {
		wcfg := config.GetWorkerConfig(cfg, taskType)
		handler := rlo.NewHandler(
			&rlo.Config{
				Timeout:               config.GetDuration(wcfg.Timeout),
				CacheTTL:              15 * time.Minute,
				EnrichmentConcurrency: cfg.Marketplace.Risk.EnrichmentConcurrency,
				MaxCandidates:         cfg.Marketplace.Risk.MaxCandidates,
			},
			pg.DB, redis.Client, log,
		)
		startWorker(zeebeClient, taskType, wcfg, handler.Handle, zapLog)
	}

	if taskType := rle.TaskType; config.IsWorkerEnabled(cfg, taskType) {
		wcfg := config.GetWorkerConfig(cfg, taskType)
		handler := rle.NewHandler(
			&rle.Config{
				Timeout:       config.GetDuration(wcfg.Timeout),
				CacheTTL:      15 * time.Minute,
				MaxCandidates: cfg.Marketplace.Risk.MaxCandidates,
			},
			pg.DB, redis.Client, log,
		)
		startWorker(zeebeClient, taskType, wcfg, handler.Handle, zapLog)
	}

	// --- 2. Loan Lifecycle Workers (4) ---
	if taskType := vlr.TaskType; config.IsWorkerEnabled(cfg, taskType) {
		wcfg := config.GetWorkerConfig(cfg, taskType)
		vcfg := vlr.LoadConfig()
		vcfg.Timeout = config.GetDuration(wcfg.Timeout)
		if cfg.Marketplace.Loans.MinAmount > 0 {
			vcfg.MinAmount = cfg.Marketplace.Loans.MinAmount
		}
		if cfg.Marketplace.Loans.MaxAmount > 0 {
			vcfg.MaxAmount = cfg.Marketplace.Loans.MaxAmount
		}
		handler := vlr.NewHandler(vcfg, log)
		startWorker(zeebeClient, taskType, wcfg, handler.Handle, zapLog)
	}

	if taskType := clr.TaskType; config.IsWorkerEnabled(cfg, taskType) {
		wcfg := config.GetWorkerConfig(cfg, taskType)
		handler := clr.NewHandler(
			&clr.Config{
				Timeout:    config.GetDuration(wcfg.Timeout),
				ExpiryDays: cfg.Marketplace.Loans.ExpiryDays,
			},
			pg.DB, log,
		)
		startWorker(zeebeClient, taskType, wcfg, handler.Handle, zapLog)
	}

	if taskType := fl.TaskType; config.IsWorkerEnabled(cfg, taskType) {
		wcfg := config.GetWorkerConfig(cfg, taskType)
		handler := fl.NewHandler(
			&fl.Config{Timeout: config.GetDuration(wcfg.Timeout)},
			pg.DB, log,
		)
		startWorker(zeebeClient, taskType, wcfg, handler.Handle, zapLog)
	}

	if taskType := psf.TaskType; config.IsWorkerEnabled(cfg, taskType) {
		wcfg := config.GetWorkerConfig(cfg, taskType)
		handler := psf.NewHandler(
			&psf.Config{
				Timeout:         config.GetDuration(wcfg.Timeout),
				DefaultPageSize: cfg.Marketplace.Search.DefaultPageSize,
				MaxPageSize:     cfg.Marketplace.Search.MaxPageSize,
				MaxAmount:       cfg.Marketplace.Loans.MaxAmount,
			},
			log,
		)
		startWorker(zeebeClient, taskType, wcfg, handler.Handle, zapLog)
	}

	// --- 3. Directory & Data Access Workers (2) ---
	if taskType := sc.TaskType; config.IsWorkerEnabled(cfg, taskType) {
		wcfg := config.GetWorkerConfig(cfg, taskType)
		handler := sc.NewHandler(
			&sc.Config{
				Timeout: config.GetDuration(wcfg.Timeout),
				Index:   cfg.Marketplace.Search.CompanyIndex,
			},
			esClient.Client, log,
		)
		startWorker(zeebeClient, taskType, wcfg, handler.Handle, zapLog)
	}

	if taskType := qp.TaskType; config.IsWorkerEnabled(cfg, taskType) {
		wcfg := config.GetWorkerConfig(cfg, taskType)
		handler := qp.NewHandler(
			&qp.Config{Timeout: config.GetDuration(wcfg.Timeout)},
			pg.DB, log,
		)
		startWorker(zeebeClient, taskType, wcfg, handler.Handle, zapLog)
	}

	// --- 4. User Lifecycle Workers (2) ---
	if taskType := cur.TaskType; config.IsWorkerEnabled(cfg, taskType) {
		wcfg := config.GetWorkerConfig(cfg, taskType)
		handler := cur.NewHandler(
			&cur.Config{Timeout: config.GetDuration(wcfg.Timeout)},
			pg.DB, keycloak, log,
		)
		startWorker(zeebeClient, taskType, wcfg, handler.Handle, zapLog)
	}

	if taskType := au.TaskType; config.IsWorkerEnabled(cfg, taskType) {
		wcfg := config.GetWorkerConfig(cfg, taskType)
		handler := au.NewHandler(
			&au.Config{Timeout: config.GetDuration(wcfg.Timeout)},
			pg.DB, log,
		)
		startWorker(zeebeClient, taskType, wcfg, handler.Handle, zapLog)
	}

	// --- 5. Infrastructure Workers (3) ---
	if taskType := vs.TaskType; config.IsWorkerEnabled(cfg, taskType) {
		wcfg := config.GetWorkerConfig(cfg, taskType)
		handler := vs.NewHandler(
			&vs.Config{
				Timeout:  config.GetDuration(wcfg.Timeout),
				CacheTTL: time.Duration(cfg.Auth.Session.TTLMinutes) * time.Minute,
			},
			pg.DB, redis.Client, keycloak, log,
		)
		startWorker(zeebeClient, taskType, wcfg, handler.Handle, zapLog)
	}

	if taskType := rlc.TaskType; config.IsWorkerEnabled(cfg, taskType) {
		wcfg := config.GetWorkerConfig(cfg, taskType)
		handler := rlc.NewHandler(
			&rlc.Config{
				Timeout:           config.GetDuration(wcfg.Timeout),
				RequestsPerWindow: cfg.Auth.RateLimit.RequestsPerMinute,
				Window:            time.Duration(cfg.Auth.RateLimit.WindowSeconds) * time.Second,
			},
			redis.Client, log,
		)
		startWorker(zeebeClient, taskType, wcfg, handler.Handle, zapLog)
	}

	if taskType := br.TaskType; config.IsWorkerEnabled(cfg, taskType) {
		wcfg := config.GetWorkerConfig(cfg, taskType)
		handler := br.NewHandler(
			&br.Config{
				TemplateRegistry: cfg.Template.RegistryPath,
				AppVersion:       cfg.App.Version,
				Timeout:          config.GetDuration(wcfg.Timeout),
				CacheTTL:         5 * time.Minute,
			},
			log,
		)
		startWorker(zeebeClient, taskType, wcfg, handler.Handle, zapLog)
	}

	// --- 6. Communication Workers (2) ---
	if taskType := sn.TaskType; config.IsWorkerEnabled(cfg, taskType) {
		wcfg := config.GetWorkerConfig(cfg, taskType)
		handler, err := sn.NewHandler(
			&sn.Config{
				Timeout:      config.GetDuration(wcfg.Timeout),
				AWSRegion:    cfg.Notifications.AWS.Region,
				FromEmail:    cfg.Notifications.Email.FromEmail,
				EmailEnabled: cfg.Notifications.Email.Enabled,
				SMSEnabled:   cfg.Notifications.SMS.Enabled,
			},
			pg.DB, log,
		)
		if err != nil {
			zapLog.Fatal("failed to create send-notification handler", zap.Error(err))
		}
		startWorker(zeebeClient, taskType, wcfg, handler.Handle, zapLog)
	}

	if taskType := cm.TaskType; config.IsWorkerEnabled(cfg, taskType) {
		wcfg := config.GetWorkerConfig(cfg, taskType)
		ccfg := cm.DefaultConfig()
		ccfg.Timeout = config.GetDuration(wcfg.Timeout)
		ccfg.AWSRegion = cfg.Notifications.AWS.Region
		handler, err := cm.NewHandler(ccfg, pg.DB, log)
		if err != nil {
			zapLog.Fatal("failed to create contact-message handler", zap.Error(err))
		}
		startWorker(zeebeClient, taskType, wcfg, handler.Handle, zapLog)
	}

	zapLog.Info("All 16 workers registered successfully")

	// --- Health, Metrics & Activity Catalog Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			status := "healthy"
			code := http.StatusOK
			if err := camundaClient.HealthCheck(r.Context()); err != nil {
				status = "degraded"
				code = http.StatusServiceUnavailable
			}
			w.WriteHeader(code)
			json.NewEncoder(w).Encode(map[string]string{
				"status": status,
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "ready",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.HandleFunc("/activities", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(activityReg)
		})
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening on :8080")
		if err := http.ListenAndServe(":8080", nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")

	if err := camundaClient.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func startWorker(client zbc.Client, taskType string, wcfg config.WorkerConfig, handlerFunc func(worker.JobClient, entities.Job), log *zap.Logger) {
	if !wcfg.Enabled {
		log.Info("worker disabled", zap.String("taskType", taskType))
		return
	}

	client.NewJobWorker().
		JobType(taskType).
		Handler(handlerFunc).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(time.Duration(wcfg.Timeout) * time.Millisecond).
		Open()

	log.Info("worker started",
		zap.String("taskType", taskType),
		zap.Int("maxJobsActive", wcfg.MaxJobsActive),
		zap.Int("timeout_ms", wcfg.Timeout),
	)
}
