package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/eodatahub/action-creator/internal/ades"
	"github.com/eodatahub/action-creator/internal/catalog"
	"github.com/eodatahub/action-creator/internal/config"
	"github.com/eodatahub/action-creator/internal/cwl"
	"github.com/eodatahub/action-creator/internal/events"
	"github.com/eodatahub/action-creator/internal/janitor"
	"github.com/eodatahub/action-creator/internal/stac"
	"github.com/eodatahub/action-creator/internal/workflow"
	"github.com/eodatahub/action-creator/internal/workspace"
	"github.com/eodatahub/action-creator/pkg/api"
	"github.com/eodatahub/action-creator/pkg/api/handlers"
	"github.com/eodatahub/action-creator/pkg/api/middleware"
)

func main() {
	configFile := flag.String("config", "", "optional config file path")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.WithError(err).Fatal("configuration error")
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	log := logger.WithField("component", "server")

	registry, err := catalog.NewRegistry()
	if err != nil {
		logger.WithError(err).Fatal("loading task catalog")
	}
	templates, err := cwl.LoadTemplates()
	if err != nil {
		logger.WithError(err).Fatal("loading tool templates")
	}

	validator := workflow.NewValidator(registry, cfg.MaxTasks, cfg.AreaLimitKM2)
	synthesizer := cwl.NewSynthesizer(registry, templates)
	stacClient := stac.NewClient(cfg.STACBaseURL, nil, logger.WithField("component", "stac"))

	functionRegistry := ades.FunctionRegistry(cfg.FunctionRegistryHrefs)
	breaker := ades.NewBreaker(logger.WithField("component", "ades"))
	engines := func(ws, token string) handlers.EngineClient {
		return ades.NewClient(ades.Options{
			BaseURL:          cfg.ADESBaseURL,
			ProcessesSegment: cfg.ADESProcessesSegment,
			JobsSegment:      cfg.ADESJobsSegment,
			Workspace:        ws,
			Token:            token,
			Logger:           logger.WithField("component", "ades"),
			Registry:         functionRegistry,
			Breaker:          breaker,
			Timeout:          cfg.ADESTimeout(),
			ListJobsTimeout:  cfg.ADESListJobsTimeout(),
			MaxAttempts:      cfg.ADESMaxAttempts,
		})
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.WithError(err).Fatal("invalid redis_url")
		}
		rdb = redis.NewClient(redisOpts)
		defer rdb.Close()
	}
	tokenCache := workspace.NewTokenCache(rdb, logger.WithField("component", "tokencache"))

	var workspaceClient *workspace.Client
	if cfg.WorkspaceServicesURL != "" {
		workspaceClient = workspace.NewClient(cfg.WorkspaceServicesURL, nil, tokenCache,
			logger.WithField("component", "workspace"))
	}

	publisher, err := events.Connect(cfg.NATSURL, logger.WithField("component", "events"))
	if err != nil {
		log.WithError(err).Warn("event bus unavailable, submission events disabled")
	}
	defer publisher.Close()

	submissions := handlers.NewSubmissionHandler(validator, synthesizer, stacClient,
		stacClient, engines, publisher, logger.WithField("component", "submissions"))
	ws := handlers.NewWSHandler([]byte(cfg.JWTSecret), validator, synthesizer, stacClient,
		engines, workspaceClient, publisher, cfg.PollInterval(),
		logger.WithField("component", "ws"))
	auth := handlers.NewAuthHandler(cfg.TokenEndpoint, cfg.IntrospectionURL, nil,
		logger.WithField("component", "auth"))
	functions := handlers.NewFunctionsHandler(registry)

	limiter := middleware.NewRateLimiter(10, 20)
	defer limiter.Stop()

	if os.Getenv("ENV") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(api.RouterOptions{
		JWTSecret:   []byte(cfg.JWTSecret),
		Logger:      logger,
		Auth:        auth,
		Functions:   functions,
		Submissions: submissions,
		WS:          ws,
		Limiter:     limiter,
	})

	if cfg.JanitorSchedule != "" && cfg.JanitorWorkspace != "" {
		sweeper := engines(cfg.JanitorWorkspace, os.Getenv("ACTION_CREATOR_JANITOR_TOKEN")).(*ades.Client)
		statuses := make([]ades.Status, 0, len(cfg.JanitorStatuses))
		for _, s := range cfg.JanitorStatuses {
			statuses = append(statuses, ades.Status(s))
		}
		sweep, err := janitor.New(sweeper, janitor.Options{
			Schedule: cfg.JanitorSchedule,
			MaxAge:   time.Duration(cfg.JanitorMaxAgeHrs) * time.Hour,
			Statuses: statuses,
			Prober:   stacClient,
			Logger:   logger.WithField("component", "janitor"),
		})
		if err != nil {
			logger.WithError(err).Fatal("invalid janitor schedule")
		}
		sweep.Start()
		defer sweep.Stop()
	}

	server := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.WithField("address", cfg.ListenAddress).Info("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("forced shutdown")
	}
}
