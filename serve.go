package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"paperlens/internal/api"
	"paperlens/internal/auth"
	"paperlens/internal/cache"
	"paperlens/internal/config"
	"paperlens/internal/logger"
	"paperlens/internal/metrics"
	"paperlens/internal/redis"
	"paperlens/internal/service/ai"
	"paperlens/internal/service/assistant"
	"paperlens/internal/storage"
	"paperlens/internal/worker"
	"paperlens/internal/workspace"
)

const shutdownTimeout = 15 * time.Second

func serveCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web server",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return serve(*cfgPath)
		},
	}
}

func serve(cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	client, err := ai.NewClient(ctx, cfg.Gemini.APIKey)
	if err != nil {
		return fmt.Errorf("init gemini client: %w", err)
	}
	m := metrics.New()

	dispatcher := worker.NewDispatcher(worker.Config{
		MinWorkers: 1,
		MaxWorkers: cfg.BasicConfig.Workers,
		QueueSize:  cfg.BasicConfig.QueueSize,
	}, log.Named("worker"))
	defer dispatcher.Stop()

	assistantService, err := assistant.NewService(assistant.Deps{
		Store:           workspace.NewStore(),
		Analyzer:        ai.NewAnalyzer(client.Models(), cfg.Gemini.AnalysisModel, cfg.Gemini.ThinkingBudget, log.Named("analyzer")),
		Chat:            ai.NewChatOpener(client.Chats(), cfg.Gemini.ChatModel, log.Named("chat")),
		Related:         ai.NewRelatedFinder(client.Models(), cfg.Gemini.SearchModel, log.Named("related")),
		Narrator:        ai.NewNarrator(client.Models(), cfg.Gemini.SpeechModel, cfg.Gemini.Voice, log.Named("narrator")),
		Dispatcher:      dispatcher,
		Cache:           st.cache,
		Metrics:         m,
		Logger:          log,
		AnalysisTimeout: config.Seconds(cfg.BasicConfig.AnalysisTimeout, assistant.DefaultAnalysisTimeout),
		ChatTimeout:     config.Seconds(cfg.BasicConfig.ChatTimeout, assistant.DefaultChatTimeout),
	})
	if err != nil {
		return fmt.Errorf("init assistant service: %w", err)
	}
	assistantService.StartWorkspaceJanitor(ctx,
		config.Minutes(cfg.BasicConfig.JanitorInterval, assistant.DefaultJanitorInterval),
		config.Minutes(cfg.BasicConfig.WorkspaceTTL, assistant.DefaultWorkspaceTTL))

	handlers, err := api.NewHandler(assistantService, auth.NewService(auth.DefaultCookieMaxAge), m, log)
	if err != nil {
		return fmt.Errorf("init handlers: %w", err)
	}
	if st.redis != nil {
		handlers.AddHealthCheck("redis", st.redis.Ping)
	}
	if st.db != nil {
		handlers.AddHealthCheck("database", st.db.PingContext)
	}

	router := gin.New()
	router.Use(api.RequestLogger(log.Named("http")), gin.Recovery())
	handlers.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.BasicConfig.ServerAddress,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server stopped: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// stores holds the optional cache backends.
type stores struct {
	db    *sql.DB
	redis *redis.Client
	cache *cache.Analyses
}

func openStores(cfg *config.Config, log *zap.Logger) (*stores, error) {
	st := &stores{}
	var hot cache.Hot
	var cold cache.Cold

	if cfg.Database.Driver != "" {
		db, err := storage.Open(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if err := storage.Migrate(db, cfg.Database.Driver); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		st.db = db
		cold = storage.NewAnalysisStore(db)
		log.Info("analysis store enabled", zap.String("driver", cfg.Database.Driver))
	}
	if cfg.Redis.Enabled {
		rdb, err := redis.NewRedisClient(cfg.Redis)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("create redis client: %w", err)
		}
		st.redis = rdb
		hot = rdb
		log.Info("redis cache enabled")
	}
	st.cache = cache.New(hot, cold, config.Minutes(cfg.Redis.TTL, 24*time.Hour), log.Named("cache"))
	return st, nil
}

func (s *stores) Close() {
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}
