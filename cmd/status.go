package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print scheduler, credential and cache status as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := newApp(ctx, GetConfig())
		if err != nil {
			return err
		}
		defer a.Close()

		rep, err := a.pipeline.Status(ctx)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), rep)
	},
}

// schedulerCmd groups scheduler maintenance subcommands.
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Scheduler utilities",
}

var schedulerResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the persisted scheduler state",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := newApp(ctx, GetConfig())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.pipeline.Scheduler.Reset(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "scheduler state cleared")
		return nil
	},
}

func init() {
	schedulerCmd.AddCommand(schedulerResetCmd)
	rootCmd.AddCommand(statusCmd, schedulerCmd)
}
