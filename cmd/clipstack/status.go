package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/clipstack/internal/rpc"
)

func newStatusCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the daemon's state",
		Long: `Displays the daemon version, history size, clipboard backend, paste stack
and event subscribers.

The local daemon is asked over the IPC socket. Pass --server to ask a
remote daemon over TCP.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, _ []string) error { return runStatus(cmd, v) },
	}

	f := cmd.Flags()
	f.String("server", "", "remote daemon address host:port (default: local socket)")
	f.String("token", "", "shared secret of the remote daemon")
	f.String("source", defaultSource(), "source identifier")
	f.Bool("json", false, "output raw JSON")
	addConfigFlag(cmd)

	return cmd
}

func runStatus(cmd *cobra.Command, v *viper.Viper) error {
	c, transport, err := connect(v)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()
	resp, err := c.Status(ctx)
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}

	if v.GetBool("json") {
		return printJSON(cmd.OutOrStdout(), resp)
	}
	printStatus(cmd.OutOrStdout(), resp, transport)
	return nil
}

func printStatus(out io.Writer, resp *rpc.StatusResponse, transport string) {
	w := tabwriter.NewWriter(out, 1, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Version:\t%s\n", resp.Version)
	fmt.Fprintf(w, "Transport:\t%s\n", transport)
	fmt.Fprintf(w, "Started:\t%s (%s)\n", resp.StartedAt.Local().Format(time.RFC3339), fmtAge(resp.StartedAt))
	if resp.TCP != "" {
		fmt.Fprintf(w, "TCP:\t%s\n", resp.TCP)
	}
	fmt.Fprintf(w, "Clips:\t%d\n", resp.Items)
	fmt.Fprintf(w, "Backend:\t%s\n", resp.Capture.Backend)
	fmt.Fprintf(w, "Captured:\t%d (last %s)\n", resp.Capture.Captured, fmtAge(resp.Capture.LastCapture))
	fmt.Fprintf(w, "Stack:\t%s\n", strings.ReplaceAll(describeStack(resp.Stack), "\n", "\n\t"))
	fmt.Fprintln(w)
	_ = w.Flush()

	if len(resp.Subscribers) == 0 {
		fmt.Fprintln(out, "No watchers.")
		return
	}
	tw := tabwriter.NewWriter(out, 1, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "WATCHER\tKINDS\tSINCE\n")
	for _, s := range resp.Subscribers {
		kinds := "*"
		if len(s.Kinds) > 0 {
			parts := make([]string, len(s.Kinds))
			for i, k := range s.Kinds {
				parts[i] = string(k)
			}
			kinds = strings.Join(parts, ",")
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", s.ID, kinds, fmtAge(s.Since))
	}
	_ = tw.Flush()
}
