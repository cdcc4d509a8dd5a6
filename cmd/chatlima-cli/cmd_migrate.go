package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"chatlima-server/internal/config"
	"chatlima-server/internal/infrastructure/database"
	"chatlima-server/internal/infrastructure/logger"
)

func newMigrateCmd() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration commands",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations to DATABASE_URL",
		Long:  `Apply the embedded SQL migrations. Useful when the server runs with AUTO_MIGRATE=false.`,
		RunE:  runMigrateUp,
	}

	migrateCmd.AddCommand(upCmd)
	return migrateCmd
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if _, err := logger.New(cfg.LogLevel, cfg.LogFormat); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	db, err := database.NewDB(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	if err := database.AutoMigrate(db); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
	return nil
}
