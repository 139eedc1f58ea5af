// clipstack: clipboard history and paste stack daemon with a CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"go.klb.dev/clipstack/internal/logging"
)

// Version is set at build time via -ldflags "-X main.Version=x.y.z".
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "clipstack",
		Short: "Clipboard history with a paste stack",
		Long: `clipstack records everything copied to the system clipboard, keeps it
searchable, and pastes it back. A paste stack pastes a selection of clips one
by one, in order, each time "clipstack stack next" is run (bind it to a key).

Run "clipstack daemon" once per session. The other commands talk to it over
a local socket, or over TLS with --server and --token.

Config file search order (first found wins):
  /etc/clipstack/clipstack.toml
  $HOME/.config/clipstack/clipstack.toml
  path supplied via --config

All flags can be set via CLIPSTACK_<FLAG> env vars or config-file keys.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newDaemonCmd(),
		newCopyCmd(),
		newPasteCmd(),
		newHistoryCmd(),
		newSearchCmd(),
		newPinCmd(true),
		newPinCmd(false),
		newEditCmd(),
		newDeleteCmd(),
		newClearCmd(),
		newCollectionCmd(),
		newStackCmd(),
		newWatchCmd(),
		newStatusCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "clipstack %s\n", Version)
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
