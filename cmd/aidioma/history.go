package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aidioma/aidioma/internal/config"
	"github.com/aidioma/aidioma/internal/history"
)

func newHistoryCommand() *cobra.Command {
	var limit int

	command := &cobra.Command{
		Use:   "history",
		Short: "Show recent evaluation results recorded in the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if !cfg.Database.Enabled() {
				return errors.New("no database is configured; set database.host in the config file")
			}

			db, err := history.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("history.Open > %w", err)
			}
			defer func() {
				_ = db.Close()
			}()

			entries, err := history.NewRepository(db).Recent(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("repository.Recent > %w", err)
			}
			if len(entries) == 0 {
				fmt.Println("No evaluations recorded yet")
				return nil
			}

			for _, entry := range entries {
				printHistoryEntry(entry)
			}
			return nil
		},
	}

	command.Flags().IntVar(&limit, "limit", 20, "maximum number of entries to show")
	return command
}

func printHistoryEntry(entry history.Entry) {
	line := fmt.Sprintf("%s  %-20s %-12s %-12s score=%-3d cached=%t fallback=%t",
		entry.CreatedAt.Format("2006-01-02 15:04:05"),
		entry.Word, entry.PageContext, entry.Difficulty,
		entry.Score, entry.Cached, entry.Fallback)
	switch entry.Status {
	case "correct":
		color.Green("%s", line)
	case "close":
		color.Yellow("%s", line)
	default:
		color.Red("%s", line)
	}
}
