package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/keepclip/internal/grpcservice"
)

func newStatusCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon state and connected watchers",
		Long: `Displays the daemon's clipboard backend, history size, and every client
currently streaming "keepclip watch".

The request goes to the local daemon over the IPC Unix socket. Pass --server
to target a daemon's TCP listener instead.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, _ []string) error { return runStatus(cmd, v) },
	}
	cmd.Flags().Bool("json", false, "output raw JSON")
	addClientFlags(cmd)
	return cmd
}

func runStatus(cmd *cobra.Command, v *viper.Viper) error {
	c, err := connect(v)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := rpcContext(cmd.Context())
	defer cancel()
	resp, err := c.Status(ctx, &grpcservice.StatusRequest{})
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}

	if v.GetBool("json") {
		enc, _ := json.MarshalIndent(resp, "", "  ")
		fmt.Println(string(enc))
		return nil
	}

	printStatus(resp, v.GetString("source"), c.transport)
	return nil
}

func printStatus(resp *grpcservice.StatusResponse, mySource, transport string) {
	w := tabwriter.NewWriter(os.Stdout, 1, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Version:\t%s\n", resp.Version)
	fmt.Fprintf(w, "Transport:\t%s\n", transport)
	fmt.Fprintf(w, "Clipboard:\t%s\n", resp.Backend)
	fmt.Fprintf(w, "Entries:\t%d / %d (%d locked)\n", resp.Entries, resp.Capacity, resp.Locked)
	fmt.Fprintf(w, "Images:\t%s\n", resp.ImageDir)
	fmt.Fprintf(w, "Started:\t%s\n", humanize.Time(resp.StartedAt))
	fmt.Fprintln(w)
	_ = w.Flush()

	if len(resp.Subscribers) == 0 {
		fmt.Println("No watchers connected.")
		return
	}

	tw := tabwriter.NewWriter(os.Stdout, 1, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "\tSOURCE\tADDR\tCONNECTED\tLAST EVENT\n")
	_, _ = fmt.Fprintf(tw, "\t------\t----\t---------\t----------\n")
	for _, s := range resp.Subscribers {
		marker := ""
		if s.Source == mySource {
			marker = "*"
		}
		lastSeen := "-"
		if !s.LastSeen.IsZero() {
			lastSeen = humanize.Time(s.LastSeen)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			marker, s.Source, s.Addr, humanize.Time(s.ConnectedAt), lastSeen)
	}
	_ = tw.Flush()
}
