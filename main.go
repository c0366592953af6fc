package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"insightsnap/internal/api"
	"insightsnap/internal/auth"
	"insightsnap/internal/automl"
	"insightsnap/internal/chart"
	"insightsnap/internal/config"
	"insightsnap/internal/ocr"
	"insightsnap/internal/redis"
	"insightsnap/internal/service/credential"
	"insightsnap/internal/service/insight"
	"insightsnap/internal/service/modeling"
	"insightsnap/internal/service/recognition"
	"insightsnap/internal/storage"
	"insightsnap/internal/worker"
	"insightsnap/internal/workspace"
	"insightsnap/pkg/logging"
)

func main() {
	cfg, err := config.Load(os.Getenv("INSIGHTSNAP_CONFIG"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, err := logging.New(cfg.BasicConfig.Debug)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	dbType := os.Getenv("INSIGHTSNAP_DB")
	if dbType == "" {
		dbType = "sqlite3"
	}
	if err := ensureSQLiteDir(dbType, cfg); err != nil {
		logger.Fatal("prepare database directory", zap.Error(err))
	}
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		logger.Fatal("open database", zap.String("driver", dbType), zap.Error(err))
	}
	defer db.Close()
	if err := storage.Migrate(db, dbType); err != nil {
		logger.Fatal("migrate database", zap.Error(err))
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = redis.NewRedisClient(cfg)
		if err != nil {
			logger.Fatal("create redis client", zap.Error(err))
		}
		defer rdb.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessionTTL := time.Duration(cfg.BasicConfig.SessionTTL) * time.Minute
	store, err := newCredentialStore(cfg, rdb, sessionTTL)
	if err != nil {
		logger.Fatal("init credential store", zap.Error(err))
	}

	ws := workspace.New(rdb, sessionTTL, logger.Named("workspace"))
	ws.Listen(ctx)

	var modeler modeling.Modeler = automl.Baseline{}
	if cfg.AutoML.Endpoint != "" {
		modeler = automl.NewClient(cfg.AutoML.Endpoint, nil, logger.Named("automl"))
	}
	insightService, err := insight.NewService(cfg, nil, logger.Named("insight"))
	if err != nil {
		logger.Fatal("init insight service", zap.Error(err))
	}

	workers := worker.NewManager(worker.DispatcherConfig{
		MinWorkers:  cfg.BasicConfig.MinWorkers,
		MaxWorkers:  cfg.BasicConfig.MaxWorkers,
		QueueSize:   cfg.BasicConfig.QueueSize,
		IdleTimeout: time.Duration(cfg.BasicConfig.WorkerIdleTimeout) * time.Minute,
	}, logger)
	defer workers.Stop()

	authService := auth.NewService(db, rdb, sessionTTL, logger.Named("auth"))
	authService.SetCSRFSecret(cfg.BasicConfig.CSRFSecret)
	authService.StartSweeper(ctx, time.Duration(cfg.BasicConfig.SweepInterval)*time.Minute)

	engine := ocr.NewTesseract(cfg.OCR.TessdataPrefix)
	handlers := api.NewHandler(api.Services{
		DB:          db,
		Auth:        authService,
		Credentials: credential.NewHolder(store, logger.Named("credential")),
		Workspace:   ws,
		Recognition: recognition.NewAdapter(engine, logger.Named("ocr")),
		Modeling:    modeling.NewAdapter(modeler, chart.Plotly{}, cfg.AutoML.Seed, logger.Named("modeling")),
		Insight:     insightService,
		Workers:     workers,
	}, api.OptionsFromConfig(cfg), logger.Named("api"))

	if !cfg.BasicConfig.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.MaxMultipartMemory = cfg.BasicConfig.MaxUploadBytes
	router.Use(gin.Recovery(), logging.GinMiddleware(logger.Named("http")))
	handlers.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.BasicConfig.ServerAddress,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown", zap.Error(err))
		}
	}()

	logger.Info("listening",
		zap.String("addr", srv.Addr),
		zap.String("db", dbType),
		zap.String("ocr", engine.Name()),
		zap.Bool("redis", rdb.Enabled()),
		zap.String("llm", insightService.Provider()),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

// newCredentialStore keeps secrets in process memory unless redis storage is enabled.
func newCredentialStore(cfg *config.Config, rdb *redis.Client, ttl time.Duration) (credential.Store, error) {
	if !cfg.Redis.StoreCredentials {
		return credential.NewMemoryStore(), nil
	}
	if !rdb.Enabled() {
		return nil, errors.New("redis.store_credentials needs redis.enabled")
	}
	cipher, err := credential.NewCipherFromEnv()
	if err != nil {
		return nil, err
	}
	return credential.NewRedisStore(rdb, cipher, ttl)
}

func ensureSQLiteDir(dbType string, cfg *config.Config) error {
	if !strings.HasPrefix(strings.ToLower(dbType), "sqlite") {
		return nil
	}
	dsn := cfg.Databases[dbType].DSN
	if dsn == "" || dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return nil
	}
	return os.MkdirAll(filepath.Dir(dsn), 0o755)
}
