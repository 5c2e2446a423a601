package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ai-letter/digest"
)

func runCmd() *cobra.Command {
	var printText bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once and publish a digest",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := bootstrap(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			rep, err := a.pipeline.Run(ctx)
			if err != nil {
				return err
			}
			if rep.NoOp {
				fmt.Fprintln(cmd.OutOrStdout(), "no new digest this run")
				return nil
			}
			if printText {
				fmt.Fprintln(cmd.OutOrStdout(), digest.Render(rep.Digest))
				return nil
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rep.Digest)
		},
	}

	cmd.Flags().BoolVar(&printText, "text", false, "print the plain-text digest instead of JSON")
	return cmd
}
