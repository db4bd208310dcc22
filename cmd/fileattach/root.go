package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bigkaa/fileattach/internal/config"
)

func newRootCmd() *cobra.Command {
	serve := newServeCmd()

	cmd := &cobra.Command{
		Use:           "fileattach",
		Short:         "Сервис вложений: файлы в объектном хранилище, метаданные в PostgreSQL",
		Version:       config.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		// Без подкоманды запускается сервер
		RunE: serve.RunE,
	}

	cmd.AddCommand(
		serve,
		newMigrateCmd(),
		newVersionCmd(),
	)

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Показать версию",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), config.Version)
			return err
		},
	}
}
