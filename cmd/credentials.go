package cmd

import (
	"fmt"

	"news-radar/internal/credentials"

	"github.com/spf13/cobra"
)

// credentialsCmd lists the configured classifier keys, masked.
var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "List configured classifier keys (masked)",
	Long:  "List the classifier keys from configuration and the environment, masked.\nHealth and cooldowns are tracked in memory by the process using the keys and are not shown here.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		pool := credentials.NewPool(cfg.Classifier.APIKeys, credentials.Config{})
		st := pool.Stats()

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%d keys configured\n", st.Total)
		if st.Total == 0 {
			fmt.Fprintln(out, "set classifier.api_keys or CLASSIFIER_API_KEYS to enable the remote classifier")
			return nil
		}
		for _, s := range pool.DetailedStatus() {
			fmt.Fprintln(out, s.Key)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(credentialsCmd)
}
