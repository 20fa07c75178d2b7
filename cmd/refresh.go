package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var refreshForce bool

// refreshCmd runs one pipeline pass and prints the result as JSON.
var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Run one refresh and print the ranked items as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := newApp(ctx, GetConfig())
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.pipeline.Refresh(ctx, refreshForce)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), res)
	},
}

func init() {
	refreshCmd.Flags().BoolVar(&refreshForce, "force", false, "bypass the scheduler throttle")
	rootCmd.AddCommand(refreshCmd)
}
