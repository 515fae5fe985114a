package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/keepclip/internal/grpcservice"
)

func newCopyCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:     "copy <id>",
		Short:   "Put a history entry back on the system clipboard",
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
			resp, err := c.CopyToClipboard(ctx, &grpcservice.CopyToClipboardRequest{ID: args[0]})
			if err != nil {
				return fmt.Errorf("copy: %w", err)
			}
			if !resp.OK {
				return fmt.Errorf("entry %s could not be copied (image file missing or unreadable)", args[0])
			}
			return nil
		},
	}
	addClientFlags(cmd)
	return cmd
}
