package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/keepclip/internal/grpcservice"
)

func newClearCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:     "clear",
		Short:   "Remove every unlocked entry from the history",
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := connect(v)
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, cancel := rpcContext(cmd.Context())
			defer cancel()
			resp, err := c.ClearHistory(ctx, &grpcservice.ClearHistoryRequest{})
			if err != nil {
				return fmt.Errorf("clear: %w", err)
			}
			fmt.Printf("Removed %d %s.\n", resp.Removed, plural(resp.Removed, "entry", "entries"))
			return nil
		},
	}
	addClientFlags(cmd)
	return cmd
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
