package cmd

import (
	"context"
	"fmt"
	"time"

	"news-radar/internal/redisclient"

	"github.com/spf13/cobra"
)

// redisCmd groups Redis-related subcommands.
var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "Redis utilities",
}

// pingCmd pings the configured Redis server and counts the keys under the
// storage prefix.
var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Ping Redis and report how many radar keys it holds",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		rdb, err := redisclient.Connect(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()
		fmt.Fprintln(cmd.OutOrStdout(), "PONG")

		var keys int
		iter := rdb.Scan(ctx, 0, cfg.Storage.KeyPrefix+":*", 200).Iterator()
		for iter.Next(ctx) {
			keys++
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("scan %s:*: %w", cfg.Storage.KeyPrefix, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d keys under prefix %q\n", keys, cfg.Storage.KeyPrefix)
		return nil
	},
}

func init() {
	redisCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(redisCmd)
}
