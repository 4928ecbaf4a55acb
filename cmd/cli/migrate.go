package cli

import (
	"fmt"

	"bomflow/internal/database"

	"github.com/spf13/cobra"
)

var seedDemo bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := logger()
		db, err := database.Open(cfg.Database, false, log)
		if err != nil {
			return err
		}
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}

		log.Info("Starting database migration...")
		if err := database.Migrate(db); err != nil {
			return err
		}
		log.Info("Database migration completed")

		if seedDemo {
			res, err := database.Seed(db)
			if err != nil {
				return fmt.Errorf("seed: %w", err)
			}
			log.Infof("Seeded %d task types, %d templates, %d triggers", res.TaskTypes, res.Templates, res.Triggers)
		}
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&seedDemo, "seed", false, "insert demo task types, BOM templates and triggers")
	rootCmd.AddCommand(migrateCmd)
}
