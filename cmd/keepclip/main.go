// keepclip: persistent clipboard history daemon and CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"go.klb.dev/keepclip/internal/logging"
)

// Version is set at build time via -ldflags "-X main.Version=x.y.z".
var Version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "keepclip",
		Short: "Persistent clipboard history",
		Long: `keepclip watches the system clipboard and keeps a bounded, persistent
history of the text and images copied to it. Entries can be locked so they
survive eviction and "clear".

Run "keepclip daemon" once per desktop session. The other commands talk to
the daemon over its IPC socket, or over TCP with --server.

Config file search order (first found wins):
  /etc/keepclip/keepclip.toml
  $HOME/.config/keepclip/keepclip.toml
  path supplied via --config

All flags can be set via KEEPCLIP_<FLAG> env vars or config-file keys.
See "keepclip daemon --help" for the full flag reference.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newDaemonCmd(),
		newListCmd(),
		newClearCmd(),
		newDeleteCmd(),
		newLockCmd(),
		newCopyCmd(),
		newWatchCmd(),
		newStatusCmd(),
		newVersionCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("keepclip %s\n", Version)
		},
	}
}

// resolveLogging sets up the global slog logger after flags are parsed.
func resolveLogging(interactive bool, formatStr, levelStr string) {
	format := logging.ParseFormat(formatStr)
	level := logging.ParseLevel(levelStr)
	if levelStr == "" {
		if interactive {
			level = logging.ParseLevel("debug")
		} else {
			level = logging.ParseLevel("info")
		}
	}
	logging.Setup(format, level)
}
