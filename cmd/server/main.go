package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/pesio-ai/be-prepress-worklist/internal/client"
	"github.com/pesio-ai/be-prepress-worklist/internal/handler"
	"github.com/pesio-ai/be-prepress-worklist/internal/platform/config"
	"github.com/pesio-ai/be-prepress-worklist/internal/platform/database"
	"github.com/pesio-ai/be-prepress-worklist/internal/platform/docstore"
	"github.com/pesio-ai/be-prepress-worklist/internal/platform/logger"
	"github.com/pesio-ai/be-prepress-worklist/internal/repository"
	"github.com/pesio-ai/be-prepress-worklist/internal/rules"
	"github.com/pesio-ai/be-prepress-worklist/internal/service"
	"github.com/pesio-ai/be-prepress-worklist/internal/workitem"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:       cfg.Service.LogLevel,
		Environment: cfg.Service.Environment,
		ServiceName: cfg.Service.Name,
		Version:     cfg.Service.Version,
	})

	log.Info().
		Str("service", cfg.Service.Name).
		Str("version", cfg.Service.Version).
		Str("environment", cfg.Service.Environment).
		Msg("Starting Prepress Worklist Service")

	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize shard pools
	dbs, err := database.NewManager(ctx, map[string]database.Config{
		workitem.ShardA.String(): databaseConfig(cfg.ShardA),
		workitem.ShardB.String(): databaseConfig(cfg.ShardB),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to shard databases")
	}
	defer dbs.Close()
	log.Info().Strs("shards", dbs.Names()).Msg("Shard connections established")

	// Initialize document store
	docs, err := docstore.Connect(ctx, docstore.Config{
		URI:      cfg.Documents.URI,
		Database: cfg.Documents.Database,
		Timeout:  cfg.Documents.TimeoutDuration(),
		MaxPool:  cfg.Documents.MaxPool,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to document store")
	}
	defer func() {
		if err := docs.Disconnect(context.Background()); err != nil {
			log.Error().Err(err).Msg("Document store disconnect failed")
		}
	}()
	log.Info().Str("database", docs.DatabaseName()).Msg("Document store connection established")

	// Event publishing is optional
	var natsConn *nats.Conn
	if cfg.NATS.URL != "" {
		natsConn, err = client.ConnectNATS(cfg.NATS.URL, cfg.Service.Name, log.Logger)
		if err != nil {
			log.Warn().Err(err).Msg("NATS unavailable, update events disabled")
		} else {
			defer natsConn.Drain()
			log.Info().Str("url", cfg.NATS.URL).Msg("NATS connection established")
		}
	}
	publisher := client.NewNotificationPublisher(natsConn, cfg.NATS.SubjectPrefix, log.Logger)

	// Initialize repositories
	shardA := repository.NewShardRepository(dbs, workitem.ShardA)
	shardB := repository.NewShardRepository(dbs, workitem.ShardB)
	jobs := repository.NewDocumentRepository(docs, cfg.Documents.JobsCollection)
	ledgerUsers := repository.NewLedgerUserRepository(dbs)
	docUsers := repository.NewDocumentUserRepository(docs, cfg.Documents.UsersCollection)

	// Initialize services
	identityService := service.NewIdentityService(ledgerUsers, docUsers, log)
	pendingService := service.NewPendingService(identityService, []service.ShardWorklist{shardA, shardB}, jobs, log)
	updateService := service.NewUpdateService(
		map[workitem.Provenance]service.WorkItemStore{
			workitem.ShardA:   shardA,
			workitem.ShardB:   shardB,
			workitem.Document: jobs,
		},
		identityService,
		rules.New(time.Now),
		publisher,
		log,
	)

	// Setup HTTP routes
	httpHandler := handler.NewHTTPHandler(pendingService, updateService, log)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Routes(cfg.Server.RequestTimeoutDuration()),
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
		IdleTimeout:  cfg.Server.IdleTimeoutDuration(),
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	// Start gRPC health server
	monitor := handler.NewHealthMonitor(cfg.Documents.TimeoutDuration(), log.Logger)
	monitor.Register(handler.HealthShardA, shardProbe(dbs, workitem.ShardA))
	monitor.Register(handler.HealthShardB, shardProbe(dbs, workitem.ShardB))
	monitor.Register(handler.HealthDocuments, docs.Ping)
	go monitor.Run(ctx, healthInterval(cfg.ShardA.HealthCheck))

	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(handler.UnaryLoggingInterceptor(log.Logger)))
	healthpb.RegisterHealthServer(grpcServer, monitor.Server())
	reflection.Register(grpcServer) // Enable reflection for debugging

	grpcListener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create gRPC listener")
	}

	go func() {
		log.Info().Int("port", cfg.Server.GRPCPort).Msg("Starting gRPC server")
		if err := grpcServer.Serve(grpcListener); err != nil {
			log.Error().Err(err).Msg("gRPC server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	monitor.Shutdown()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeoutDuration())
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	// Stop gRPC server gracefully
	grpcServer.GracefulStop()

	log.Info().Msg("Server stopped")
}

func databaseConfig(c config.Database) database.Config {
	return database.Config{
		Host:        c.Host,
		Port:        c.Port,
		User:        c.User,
		Password:    c.Password,
		Database:    c.Database,
		SSLMode:     c.SSLMode,
		MaxConns:    c.MaxConns,
		MinConns:    c.MinConns,
		MaxConnTime: c.MaxConnTime,
		MaxIdleTime: c.MaxIdleTime,
		HealthCheck: c.HealthCheck,
	}
}

func shardProbe(dbs *database.Manager, shard workitem.Provenance) handler.Probe {
	return func(ctx context.Context) error {
		return dbs.Ping(ctx, shard.String())
	}
}

func healthInterval(seconds int) time.Duration {
	if seconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(seconds) * time.Second
}
