package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/Ramsey-B/aster/config"
	"github.com/Ramsey-B/aster/internal/repositories/candidateevent"
	"github.com/Ramsey-B/aster/internal/repositories/canonicalevent"
	"github.com/Ramsey-B/aster/internal/repositories/coder"
	"github.com/Ramsey-B/aster/internal/repositories/eventflag"
	"github.com/Ramsey-B/aster/internal/repositories/fieldlink"
	"github.com/Ramsey-B/aster/internal/repositories/fieldrecord"
	"github.com/Ramsey-B/aster/internal/repositories/recentevent"
	"github.com/Ramsey-B/aster/internal/repositories/relationship"
	"github.com/Ramsey-B/aster/pkg/database"
	"github.com/Ramsey-B/aster/pkg/events"
	"github.com/Ramsey-B/aster/pkg/graph"
	"github.com/Ramsey-B/aster/pkg/kafka"
	"github.com/Ramsey-B/aster/pkg/middleware"
	"github.com/Ramsey-B/aster/pkg/reconcile"
	adjudicationroutes "github.com/Ramsey-B/aster/pkg/routes/adjudication"
	canonicaleventroutes "github.com/Ramsey-B/aster/pkg/routes/canonicalevent"
	"github.com/Ramsey-B/aster/pkg/routes/health"
	"github.com/Ramsey-B/aster/pkg/search"
	"github.com/Ramsey-B/aster/pkg/startup"
	"github.com/Ramsey-B/aster/pkg/tracing"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	_ = godotenv.Load()

	cfg := &config.Config{}
	if err := ectoenv.BindEnv(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	logger.WithFields(map[string]any{"app": cfg.AppName, "version": version}).Info("Starting service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var shutdownTracing func(context.Context) error
	if cfg.TracingEnabled {
		var err error
		shutdownTracing, err = setupTracing(ctx, cfg)
		if err != nil {
			logger.WithError(err).Error("Failed to set up tracing")
			os.Exit(1)
		}
	}

	var (
		db          database.DB
		producer    *kafka.Producer
		graphClient *graph.Client
	)

	boot := startup.New(logger, cfg.StartupMaxAttempts)
	boot.AddDependency(&startup.FuncDependency{
		Name: "postgres",
		StartFunc: func(ctx context.Context) error {
			conn, err := database.Connect(ctx, database.Config{
				Driver:          cfg.DatabaseDriver,
				Host:            cfg.DatabaseHost,
				Port:            cfg.DatabasePort,
				UserName:        cfg.DatabaseUserName,
				Password:        cfg.DatabasePassword,
				Name:            cfg.DatabaseName,
				SSLMode:         cfg.DatabaseSSLMode,
				MaxOpenConns:    cfg.DatabaseMaxOpenConns,
				MaxIdleConns:    cfg.DatabaseMaxIdleConns,
				ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
			}, logger)
			if err != nil {
				return err
			}
			driver, err := migratepg.WithInstance(conn.Unsafe().DB, &migratepg.Config{})
			if err != nil {
				return err
			}
			if err := database.Migrate(cfg.DatabaseName, cfg.DatabaseMigrationFolderPath, driver, logger); err != nil {
				return err
			}
			db = conn
			return nil
		},
		StopFunc: func(ctx context.Context) error {
			if db == nil {
				return nil
			}
			return db.Close()
		},
	})
	if cfg.KafkaEnabled {
		boot.AddDependency(&startup.FuncDependency{
			Name: "kafka",
			StartFunc: func(ctx context.Context) error {
				producer = kafka.NewProducer(kafka.ProducerConfig{
					Brokers:      cfg.KafkaBrokers,
					Topic:        cfg.KafkaOutputTopic,
					BatchSize:    cfg.KafkaBatchSize,
					BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
					RequiredAcks: cfg.KafkaRequiredAcks,
					Compression:  cfg.KafkaCompression,
				}, logger)
				return nil
			},
			StopFunc: func(ctx context.Context) error {
				if producer == nil {
					return nil
				}
				return producer.Close()
			},
		})
	}
	if cfg.GraphDBEnabled {
		boot.AddDependency(&startup.FuncDependency{
			Name: "graph",
			StartFunc: func(ctx context.Context) error {
				client, err := graph.NewClient(graph.Config{
					Host:     cfg.GraphDBHost,
					Port:     cfg.GraphDBPort,
					Username: cfg.GraphDBUser,
					Password: cfg.GraphDBPassword,
				}, logger)
				if err != nil {
					return err
				}
				if err := client.VerifyConnectivity(ctx); err != nil {
					_ = client.Close(ctx)
					return err
				}
				graphClient = client
				return nil
			},
			StopFunc: func(ctx context.Context) error {
				if graphClient == nil {
					return nil
				}
				return graphClient.Close(ctx)
			},
		})
	}

	if err := boot.Start(ctx); err != nil {
		logger.WithError(err).Error("Startup failed")
		os.Exit(1)
	}

	coderRepo := coder.NewRepository(db, logger)
	candidateEventRepo := candidateevent.NewRepository(db, logger)
	fieldRecordRepo := fieldrecord.NewRepository(db, logger)
	canonicalEventRepo := canonicalevent.NewRepository(db, logger)
	fieldLinkRepo := fieldlink.NewRepository(db, logger)
	relationshipRepo := relationship.NewRepository(db, logger)
	eventFlagRepo := eventflag.NewRepository(db, logger)
	recentEventRepo := recentevent.NewRepository(db, logger)

	emitter := events.NewEmitter(producer, logger)
	projection := graph.NewProjection(graphClient, logger)

	executor := search.NewExecutor(
		candidateEventRepo,
		canonicalEventRepo,
		fieldLinkRepo,
		eventFlagRepo,
		coderRepo,
		logger,
		cfg.SearchResultCap,
	)
	service := reconcile.NewService(
		candidateEventRepo,
		fieldRecordRepo,
		canonicalEventRepo,
		fieldLinkRepo,
		relationshipRepo,
		eventFlagRepo,
		recentEventRepo,
		emitter,
		projection,
		logger,
		cfg.RecentLimit,
	)

	container, err := ectoinject.NewDIDefaultContainer()
	if err != nil {
		logger.WithError(err).Error("Failed to create DI container")
		os.Exit(1)
	}
	if err := ectoinject.RegisterInstance[*search.Executor](container, executor); err != nil {
		logger.WithError(err).Error("Failed to register search executor")
		os.Exit(1)
	}
	if err := ectoinject.RegisterInstance[*reconcile.Service](container, service); err != nil {
		logger.WithError(err).Error("Failed to register reconciliation service")
		os.Exit(1)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))
	if cfg.TracingEnabled {
		e.Use(otelecho.Middleware(cfg.AppName))
	}
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))

	api := e.Group("/api/v1")
	adjudicationroutes.Register(api.Group("/adjudication"))
	canonicaleventroutes.Register(api.Group("/canonical-events"))

	checker := health.NewChecker(db, graphClient, version)
	checker.RegisterRoutes(e)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           e,
		ReadTimeout:       time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		logger.WithField("port", cfg.Port).Infof("Listening on port %d", cfg.Port)
		checker.SetReady(true)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("HTTP server stopped unexpectedly")
			cancel()
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.WithField("signal", sig.String()).Info("Shutdown signal received")
	case <-ctx.Done():
	}

	checker.SetReady(false)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("HTTP server shutdown failed")
	}
	if err := boot.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Error("Dependency shutdown failed")
	}
	if shutdownTracing != nil {
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.WithError(err).Error("Tracer shutdown failed")
		}
	}
	logger.Info("Shutdown complete")
}

func newLogger(cfg *config.Config) ectologger.Logger {
	return ectologger.NewEctoLogger(func(msg ectologger.EctoLogMessage) {
		var out []byte
		if cfg.PrettyLogs {
			out, _ = json.MarshalIndent(msg, "", "  ")
		} else {
			out, _ = json.Marshal(msg)
		}
		fmt.Fprintln(os.Stdout, string(out))
	})
}

func setupTracing(ctx context.Context, cfg *config.Config) (func(context.Context) error, error) {
	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.TracingOTLPAddress),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res, err := sdkresource.Merge(
		sdkresource.Default(),
		sdkresource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.AppName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	tracing.SetTracer(provider.Tracer(cfg.AppName))
	return provider.Shutdown, nil
}
