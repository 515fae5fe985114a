package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"go.klb.dev/keepclip/internal/grpcservice"
	"go.klb.dev/keepclip/internal/history"
)

func newWatchCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream history changes as they happen",
		Long: `Prints one line per history event until interrupted: "changed" for new,
refreshed or re-locked entries, "removed" for evicted or deleted entries, and
"cleared" after a clear.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, _ []string) error { return runWatch(cmd, v) },
	}
	cmd.Flags().Bool("json", false, "output one JSON object per event")
	addClientFlags(cmd)
	return cmd
}

func runWatch(cmd *cobra.Command, v *viper.Viper) error {
	c, err := connect(v)
	if err != nil {
		return err
	}
	defer c.Close()

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stream, err := c.Watch(ctx, &grpcservice.WatchRequest{})
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	enc := json.NewEncoder(os.Stdout)
	for {
		ev, err := stream.Recv()
		switch {
		case err == nil:
		case errors.Is(err, io.EOF), status.Code(err) == codes.Canceled, ctx.Err() != nil:
			return nil
		default:
			return fmt.Errorf("watch: %w", err)
		}

		if v.GetBool("json") {
			if err := enc.Encode(ev); err != nil {
				return err
			}
			continue
		}
		fmt.Println(formatEvent(ev, time.Now()))
	}
}

// formatEvent renders ev as one human-readable line.
func formatEvent(ev *grpcservice.WatchEvent, now time.Time) string {
	line := now.Format("15:04:05") + " " + ev.Type
	if ev.Entry == nil {
		return line
	}
	e, err := history.FromRecord(*ev.Entry)
	if err != nil {
		return line + " " + ev.Entry.ID
	}
	line += " " + e.ID + " " + describe(e)
	if e.Locked {
		line += " [locked]"
	}
	return line
}
