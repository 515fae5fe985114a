package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/keepclip/internal/grpcservice"
)

func newLockCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "lock <id>",
		Short: "Toggle the lock on an entry",
		Long: `Locks the entry with the given ID, or unlocks it if it is already
locked. Locked entries survive eviction and "keepclip clear".`,
		Args:    cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect(v)
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, cancel := rpcContext(cmd.Context())
			defer cancel()
			resp, err := c.ToggleLock(ctx, &grpcservice.ToggleLockRequest{ID: args[0]})
			if err != nil {
				return fmt.Errorf("lock: %w", err)
			}
			state := "unlocked"
			if resp.Entry.Locked {
				state = "locked"
			}
			fmt.Printf("%s %s\n", resp.Entry.ID, state)
			return nil
		},
	}
	addClientFlags(cmd)
	return cmd
}
