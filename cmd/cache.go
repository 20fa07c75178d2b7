package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// cacheCmd groups cache subcommands.
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Cache utilities",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show entry counts per cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := newApp(ctx, GetConfig())
		if err != nil {
			return err
		}
		defer a.Close()

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "CACHE\tTOTAL\tVALID\tEXPIRED\tHITS\tMISSES")
		for _, s := range a.pipeline.CacheStats() {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\n", s.Name, s.Total, s.Valid, s.Expired, s.Hits, s.Misses)
		}
		return tw.Flush()
	},
}

var cacheCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove expired cache entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := newApp(ctx, GetConfig())
		if err != nil {
			return err
		}
		defer a.Close()

		removed := 0
		for _, c := range a.cleaners() {
			n, err := c.Cleanup(ctx)
			if err != nil {
				return err
			}
			removed += n
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired entries\n", removed)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd, cacheCleanupCmd)
	rootCmd.AddCommand(cacheCmd)
}
