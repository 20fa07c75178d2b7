package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"news-radar/internal/digest"
	"news-radar/internal/pipeline"

	"github.com/spf13/cobra"
)

var (
	digestOutDir string
	digestForce  bool
)

// digestCmd renders the current ranked output to a dated Markdown file.
var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Write the ranked items as a Markdown digest",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		ctx := context.Background()
		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.pipeline.Refresh(ctx, digestForce)
		if errors.Is(err, pipeline.ErrNoData) {
			return errors.New("no items available yet, try again after a successful fetch")
		}
		if err != nil {
			return err
		}

		dir := cfg.Digest.OutputDir
		if digestOutDir != "" {
			dir = digestOutDir
		}
		now := time.Now()
		path, err := digest.WriteFile(dir, digest.FromResult(res, cfg.Digest.Title, cfg.Digest.Preface, now), now)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d items)\n", path, len(res.Items))
		return nil
	},
}

// digestInspectCmd parses a digest file and prints its frontmatter.
var digestInspectCmd = &cobra.Command{
	Use:   "inspect <file.md>",
	Short: "Parse a digest file and print its frontmatter",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := digest.ParseFile(args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(doc.Frontmatter) == 0 {
			fmt.Fprintln(out, "no frontmatter found")
		}
		for _, k := range doc.Keys() {
			fmt.Fprintf(out, "%s: %v\n", k, doc.Frontmatter[k])
		}
		fmt.Fprintf(out, "body: %d bytes\n", len(doc.Body))
		return nil
	},
}

func init() {
	digestCmd.Flags().StringVar(&digestOutDir, "out", "", "output directory (default: digest.output_dir)")
	digestCmd.Flags().BoolVar(&digestForce, "force", false, "bypass the scheduler throttle")
	digestCmd.AddCommand(digestInspectCmd)
	rootCmd.AddCommand(digestCmd)
}
