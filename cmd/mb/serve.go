package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/modelbase/internal/config"
	"github.com/alfredjeanlab/modelbase/internal/events"
	"github.com/alfredjeanlab/modelbase/internal/logging"
	"github.com/alfredjeanlab/modelbase/internal/server"
	"github.com/alfredjeanlab/modelbase/internal/store"
	"github.com/alfredjeanlab/modelbase/internal/store/memory"
	"github.com/alfredjeanlab/modelbase/internal/store/postgres"
	mbsync "github.com/alfredjeanlab/modelbase/internal/sync"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the modelbase HTTP and gRPC server",
	GroupID: "system",
	Args:    cobra.NoArgs,
	// The server needs no client connection.
	PersistentPreRunE: noConnect,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		logCfg := logging.DefaultConfig()
		logCfg.Level = cfg.LogLevel
		logCfg.FilePath = cfg.LogFile
		closeLog, err := logging.Setup(logCfg)
		if err != nil {
			return err
		}
		defer closeLog()
		logger := slog.Default()

		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		logger.Info("store opened", "store", cfg.Store)

		// Create event publisher.
		var publisher events.Publisher
		var nats *events.NATSPublisher
		if cfg.NATSURL != "" {
			nats, err = events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				st.Close()
				return err
			}
			publisher = nats
			logger.Info("events enabled", "nats_url", cfg.NATSURL)
		} else {
			publisher = &events.NoopPublisher{Logger: logger}
			logger.Info("events disabled (MODELBASE_NATS_URL not set)")
		}

		srv := server.NewServer(st, publisher, server.Options{
			StrictRequired: cfg.StrictRequired,
			ModelCacheSize: cfg.ModelCacheSize,
			ModelCacheTTL:  cfg.ModelCacheTTL,
		})

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Relay events from other replicas to this replica's SSE clients.
		if nats != nil {
			sub := events.NewNATSSubscriberFromConn(nats.Conn())
			go func() {
				if err := srv.RelayEvents(ctx, sub); err != nil {
					logger.Error("event relay stopped", "error", err)
				}
			}()
		}

		grpcServer := server.NewGRPCServer(srv, cfg.AuthToken)
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			publisher.Close()
			st.Close()
			return err
		}
		go func() {
			logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC server error", "error", err)
			}
		}()

		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           srv.NewHTTPHandler(cfg.AuthToken),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server error", "error", err)
			}
		}()

		scheduler := startSync(ctx, cfg, st, logger)

		logger.Info("modelbase server started",
			"grpc_addr", cfg.GRPCAddr,
			"http_addr", cfg.HTTPAddr,
			"strict_required", cfg.StrictRequired,
			"auth", cfg.AuthToken != "",
		)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		cancel()
		if scheduler != nil {
			scheduler.Stop()
			logger.Info("sync scheduler stopped")
		}

		grpcServer.GracefulStop()
		logger.Info("gRPC server stopped")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "error", err)
		}
		logger.Info("HTTP server stopped")

		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "error", err)
		}
		if err := st.Close(); err != nil {
			logger.Error("error closing store", "error", err)
		}

		logger.Info("shutdown complete")
		return nil
	},
}

func openStore(cfg *config.Config) (store.Store, error) {
	if cfg.Store == config.StoreMemory {
		return memory.New(), nil
	}
	return postgres.New(cfg.DatabaseDriver, cfg.DatabaseURL)
}

// startSync starts the backup scheduler when an interval and at least one
// destination are configured.
func startSync(ctx context.Context, cfg *config.Config, st store.Store, logger *slog.Logger) *mbsync.Scheduler {
	if cfg.SyncInterval <= 0 {
		return nil
	}
	var dests []mbsync.Destination

	if cfg.SyncS3Bucket != "" {
		s3Dest, err := mbsync.NewS3Destination(ctx, mbsync.S3Options{
			Bucket:   cfg.SyncS3Bucket,
			Key:      cfg.SyncS3Key,
			Region:   cfg.SyncS3Region,
			Endpoint: cfg.SyncS3Endpoint,
		})
		if err != nil {
			logger.Error("failed to create S3 sync destination", "error", err)
		} else {
			dests = append(dests, s3Dest)
			logger.Info("sync S3 destination enabled", "bucket", cfg.SyncS3Bucket, "key", cfg.SyncS3Key)
		}
	}

	if cfg.SyncGitRepo != "" {
		dests = append(dests, mbsync.NewGitDestination(cfg.SyncGitRepo, cfg.SyncGitFile, cfg.SyncGitBranch))
		logger.Info("sync git destination enabled", "repo", cfg.SyncGitRepo, "file", cfg.SyncGitFile)
	}

	if len(dests) == 0 {
		return nil
	}
	scheduler := mbsync.NewScheduler(st, dests, cfg.SyncInterval, logger)
	scheduler.Start()
	logger.Info("sync scheduler started", "interval", cfg.SyncInterval)
	return scheduler
}
