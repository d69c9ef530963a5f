package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"carbon-scribe/parcel-survey/parcel-survey-backend/internal/config"
	"carbon-scribe/parcel-survey/parcel-survey-backend/internal/elevation"
	"carbon-scribe/parcel-survey/parcel-survey-backend/internal/geocoding"
	"carbon-scribe/parcel-survey/parcel-survey-backend/internal/measurement"
	"carbon-scribe/parcel-survey/parcel-survey-backend/internal/observability"
	"carbon-scribe/parcel-survey/parcel-survey-backend/internal/session"
	"carbon-scribe/parcel-survey/parcel-survey-backend/internal/terrain"
	"carbon-scribe/parcel-survey/parcel-survey-backend/pkg/storage"
	"carbon-scribe/parcel-survey/parcel-survey-backend/pkg/units"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.json"
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	metrics, err := observability.NewCollector(nil)
	if err != nil {
		logger.Fatal("Failed to register metrics", zap.Error(err))
	}

	// Terrain analysis
	provider := elevation.NewHTTPClient(cfg.Elevation.BaseURL, cfg.Elevation.APIKey,
		cfg.Elevation.BatchSize, cfg.Elevation.Timeout.Std())
	engine := terrain.NewEngine(provider, logger.Named("terrain"),
		terrain.WithMetricsRecorder(metrics),
		terrain.WithResolution(cfg.Analysis.Resolution, cfg.Analysis.MaxResolution))

	// Measurements (optional, needs Postgres)
	var measurementService measurement.Service
	if cfg.Database.Enabled {
		db, err := connectDatabase(cfg.Database, logger)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		var archive storage.S3Client
		if cfg.Archive.Enabled {
			archive, err = storage.NewS3Client(context.Background(), cfg.Archive.Region)
			if err != nil {
				logger.Fatal("Failed to initialise archive storage", zap.Error(err))
			}
		}

		measurementService = measurement.NewService(
			measurement.NewRepository(db),
			archive,
			measurement.ArchiveOptions{Bucket: cfg.Archive.Bucket, Prefix: cfg.Archive.Prefix},
			logger.Named("measurement"),
		)
	} else {
		logger.Warn("Database disabled, measurements will not be persisted")
	}

	// Editing sessions
	registry := session.NewRegistry(session.RegistryConfig{
		IdleTTL:     cfg.Sessions.IdleTTL.Std(),
		SweepSpec:   cfg.Sessions.SweepSpec,
		DefaultUnit: units.MeasurementUnit(cfg.Sessions.DefaultUnit),
	}, logger.Named("session"), metrics)
	if err := registry.Start(); err != nil {
		logger.Fatal("Failed to start session sweeper", zap.Error(err))
	}
	defer registry.Stop()

	var saver session.Saver
	if measurementService != nil {
		saver = measurementService
	}
	sessionHandler := session.NewHandler(registry, engine, saver, cfg.Location.MaxAccuracyMeters, logger.Named("gps"))

	geocoder := geocoding.NewClient(cfg.Geocoding.BaseURL, cfg.Geocoding.UserAgent,
		cfg.Geocoding.Limit, cfg.Geocoding.Timeout.Std())
	geocodingHandler := geocoding.NewHandler(geocoder, logger.Named("geocoding"))

	// Setup Router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger), metrics.Middleware())

	// CORS Middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// Register Routes
	api := router.Group("/api/v1")
	{
		sessionHandler.RegisterRoutes(api)
		geocodingHandler.RegisterRoutes(api)
		if measurementService != nil {
			measurement.NewHandler(measurementService, logger.Named("measurements")).RegisterRoutes(api)
		}
	}

	// Health Check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"sessions":  registry.Len(),
			"timestamp": time.Now(),
		})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Start Server
	srv := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
		IdleTimeout:  cfg.Server.IdleTimeout.Std(),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("addr", srv.Addr))

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func connectDatabase(cfg config.DatabaseConfig, logger *zap.Logger) (*sqlx.DB, error) {
	logger.Info("Connecting to database",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("db", cfg.DBName))

	db, err := sqlx.Connect("postgres", cfg.GetDatabaseURL())
	if err != nil {
		return nil, err
	}
	if cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.MaxConnections)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.MaxLifetime.Std())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := measurement.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
