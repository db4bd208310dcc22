package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bigkaa/fileattach/internal/config"
	"github.com/bigkaa/fileattach/internal/database"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Миграции схемы БД",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Применить все миграции",
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				cfg, err := config.Load()
				if err != nil {
					return fmt.Errorf("загрузка конфигурации: %w", err)
				}
				return database.Migrate(cfg, config.SetupLogger(cfg))
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Откатить последнюю миграцию",
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				cfg, err := config.Load()
				if err != nil {
					return fmt.Errorf("загрузка конфигурации: %w", err)
				}
				return database.MigrateDown(cfg, config.SetupLogger(cfg))
			},
		},
	)

	return cmd
}
