package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func pruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete history records older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := bootstrap(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.memory.Prune(ctx, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pruned %d history records\n", n)
			return nil
		},
	}
}
