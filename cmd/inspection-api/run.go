package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	apiserver "github.com/fieldform/inspection-api/internal/api_server"
	"github.com/fieldform/inspection-api/internal/blob"
	"github.com/fieldform/inspection-api/internal/config"
	"github.com/fieldform/inspection-api/internal/handlers"
	"github.com/fieldform/inspection-api/internal/mail"
	"github.com/fieldform/inspection-api/internal/render"
	"github.com/fieldform/inspection-api/internal/service"
	"github.com/fieldform/inspection-api/internal/store"
	"github.com/fieldform/inspection-api/pkg/log"
	"github.com/fieldform/inspection-api/pkg/migrations"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the inspection api",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			zap.S().Fatalf("reading configuration: %v", err)
		}

		logLvl, err := zap.ParseAtomicLevel(cfg.Service.LogLevel)
		if err != nil {
			logLvl = zap.NewAtomicLevelAt(zap.InfoLevel)
		}

		logger := log.InitLog(logLvl)
		defer func() { _ = logger.Sync() }()
		undo := zap.ReplaceGlobals(logger)
		defer undo()

		zap.S().Info("Starting API service")
		defer zap.S().Info("API service stopped")

		zap.S().Named("main").Info("Initializing data store")
		db, err := store.InitDB(cfg)
		if err != nil {
			zap.S().Named("main").Fatalf("initializing data store: %v", err)
		}

		s := store.NewStore(db)
		defer s.Close()

		if cfg.Service.MigrationFolder != "" {
			if err := migrations.MigrateStore(db, cfg.Service.MigrationFolder); err != nil {
				zap.S().Named("main").Fatalf("running db migration: %v", err)
			}
		} else {
			if err := s.InitialMigration(); err != nil {
				zap.S().Named("main").Fatalf("running initial migration: %v", err)
			}
		}

		var blobStore blob.Store
		if minioStore, err := blob.NewMinioStoreFromConfig(cfg); err != nil {
			zap.S().Named("main").Fatalf("initializing blob store: %v", err)
		} else if minioStore != nil {
			blobStore = minioStore
		}

		channel := newMailChannel(cfg)

		inspectionSrv := service.NewInspectionService(s, blobStore)
		deliverySrv := service.NewDeliveryService(s, blobStore, render.NewTextRenderer())
		dispatcher := service.NewDispatcher(s, channel, blobStore, cfg)

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
		defer cancel()

		go dispatcher.Run(ctx)

		go func() {
			defer cancel()
			listener, err := newListener(cfg.Service.Address)
			if err != nil {
				zap.S().Named("main").Fatalf("creating listener: %s", err)
			}

			server := apiserver.New(cfg, handlers.NewServiceHandler(inspectionSrv, deliverySrv, dispatcher), listener)
			if err := server.Run(ctx); err != nil {
				zap.S().Named("main").Fatalf("Error running server: %s", err)
			}
		}()

		go func() {
			defer cancel()
			listener, err := newListener(cfg.Service.MetricsAddress)
			if err != nil {
				zap.S().Named("main").Fatalf("creating metrics listener: %s", err)
			}

			metricsServer := apiserver.NewMetricServer(cfg.Service.MetricsAddress, listener)
			if err := metricsServer.Run(ctx); err != nil {
				zap.S().Named("main").Fatalf("Error running metrics server: %s", err)
			}
		}()

		<-ctx.Done()
		return nil
	},
}

// newMailChannel selects the delivery transport from configuration. An
// unconfigured channel leaves jobs pending until an operator completes the
// mail settings.
func newMailChannel(cfg *config.Config) mail.Channel {
	switch cfg.Delivery.Channel {
	case "sendgrid":
		return mail.NewSendgridChannel(cfg)
	case "smtp":
		return mail.NewSmtpChannel(cfg)
	default:
		zap.S().Named("main").Warn("no mail channel configured, deliveries will stay pending")
		return mail.NewUnconfiguredChannel()
	}
}

func newListener(address string) (net.Listener, error) {
	if address == "" {
		address = "localhost:0"
	}
	return net.Listen("tcp", address)
}
