package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/keepclip/internal/grpcservice"
	"go.klb.dev/keepclip/internal/history"
)

// previewWidth is the number of runes of text content shown by list and watch.
const previewWidth = 60

func newListCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the clipboard history, most recent first",
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, _ []string) error { return runList(cmd, v) },
	}
	cmd.Flags().Bool("json", false, "output raw JSON")
	addClientFlags(cmd)
	return cmd
}

func runList(cmd *cobra.Command, v *viper.Viper) error {
	c, err := connect(v)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := rpcContext(cmd.Context())
	defer cancel()
	resp, err := c.GetHistory(ctx, &grpcservice.GetHistoryRequest{})
	if err != nil {
		return fmt.Errorf("list: %w", err)
	}

	if v.GetBool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(history.Document{Entries: resp.Entries})
	}

	if len(resp.Entries) == 0 {
		fmt.Println("History is empty.")
		return nil
	}
	tw := tabwriter.NewWriter(os.Stdout, 1, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "ID\tTYPE\tLOCKED\tCOPIED\tCONTENT\n")
	for _, r := range resp.Entries {
		e, err := history.FromRecord(r)
		if err != nil {
			return err
		}
		locked := ""
		if e.Locked {
			locked = "yes"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.ID, e.Kind, locked, humanize.Time(e.RecordedAt), describe(e))
	}
	return tw.Flush()
}

// describe renders an entry's payload on one line.
func describe(e history.Entry) string {
	if e.Kind == history.KindImage {
		return "[image " + e.File + "]"
	}
	return preview(e.Text, previewWidth) + " (" + humanize.Bytes(uint64(len(e.Text))) + ")"
}

// preview collapses whitespace in s and truncates it to n runes.
func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}
