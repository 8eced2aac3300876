package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fieldform/inspection-api/internal/config"
	"github.com/fieldform/inspection-api/internal/store"
	"github.com/fieldform/inspection-api/pkg/log"
	"github.com/fieldform/inspection-api/pkg/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate the db",
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
			zap.S().Named("main").Info("Db migrated")
			return nil
		}

		if err := s.InitialMigration(); err != nil {
			zap.S().Named("main").Fatalf("running initial migration: %v", err)
		}

		zap.S().Named("main").Info("Db migrated")
		return nil
	},
}
