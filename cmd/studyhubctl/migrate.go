package main

import (
	"errors"

	"github.com/spf13/cobra"

	"studyhub/internal/config"
	"studyhub/internal/docstore"
)

func init() {
	MigrateCommand.AddCommand(&MigrateUpCommand)
	MigrateCommand.AddCommand(&MigrateDownCommand)
	RootCmd.AddCommand(&MigrateCommand)
}

var MigrateCommand = cobra.Command{
	Use:   "migrate",
	Short: "Manage the PostgreSQL schema",
}

var MigrateUpCommand = cobra.Command{
	Use:   "up",
	Short: "Apply every pending migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		url, err := databaseURL()
		if err != nil {
			return err
		}
		if err := docstore.Migrate(url); err != nil {
			return err
		}
		logger.Info("migrations applied")
		return nil
	},
}

var MigrateDownCommand = cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		url, err := databaseURL()
		if err != nil {
			return err
		}
		if err := docstore.Rollback(url); err != nil {
			return err
		}
		logger.Info("migration rolled back")
		return nil
	},
}

func databaseURL() (string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	if cfg.StoreDriver != config.DriverPostgres {
		return "", errors.New("migrations only apply to the postgres store")
	}
	return cfg.DatabaseURL, nil
}
