package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/keepclip/internal/grpcservice"
)

func newDeleteCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete one entry from the history",
		Long: `Deletes the entry with the given ID. Locked entries are kept unless
--force is given.`,
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
			resp, err := c.DeleteEntry(ctx, &grpcservice.DeleteEntryRequest{ID: args[0], Force: v.GetBool("force")})
			if err != nil {
				return fmt.Errorf("delete: %w", err)
			}
			if !resp.Deleted {
				return fmt.Errorf("entry %s not deleted: unknown id, or locked (use --force)", args[0])
			}
			return nil
		},
	}
	cmd.Flags().Bool("force", false, "delete the entry even if it is locked")
	addClientFlags(cmd)
	return cmd
}
