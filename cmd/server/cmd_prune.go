package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ashureev/agentdesk/internal/notify"
	"github.com/ashureev/agentdesk/internal/scheduler"
	"github.com/ashureev/agentdesk/internal/store"
)

func init() {
	pruneCmd.Flags().Bool("reminders", false, "also send overdue handoff reminders")
	rootCmd.AddCommand(pruneCmd)
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete read notifications past retention once and exit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		setupLogging()
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		repo, err := store.NewSQLite(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("initialize database: %w", err)
		}
		defer repo.Close()

		notifications := notify.NewService(repo, notify.NewHub())
		jobs, err := scheduler.New(repo, notifications, notifications, schedulerConfig(cfg))
		if err != nil {
			return err
		}

		if withReminders, _ := cmd.Flags().GetBool("reminders"); withReminders {
			return jobs.RunOnce(cmd.Context())
		}
		n, err := jobs.PruneNotifications(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d notifications\n", n)
		return nil
	},
}
