package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/clipstack/internal/hub"
	"go.klb.dev/clipstack/internal/rpc"
)

func newWatchCmd() *cobra.Command {
	cmd := newWatchKindsCmd("watch", "Print daemon events as they happen", nil)
	cmd.Flags().StringSlice("kind", nil, `event kinds, e.g. clip.added or "stack.*" (default: all)`)
	return cmd
}

func newWatchKindsCmd(use, short string, kinds []hub.Kind) *cobra.Command {
	cmd := &cobra.Command{Use: use, Short: short, Args: cobra.NoArgs}
	cmd.Flags().Bool("json", false, "one JSON object per event")
	return clientCmd(cmd, func(ctx context.Context, cmd *cobra.Command, c *rpc.Client, v *viper.Viper, _ []string) error {
		want := kinds
		for _, k := range v.GetStringSlice("kind") {
			want = append(want, hub.Kind(k))
		}
		out := cmd.OutOrStdout()
		asJSON := v.GetBool("json")
		return c.Watch(ctx, want, func(ev hub.Event) error {
			if asJSON {
				return printJSON(out, ev)
			}
			printEvent(out, ev)
			return nil
		})
	})
}

func printEvent(w io.Writer, ev hub.Event) {
	ts := ev.At.Local().Format("15:04:05")
	switch ev.Kind {
	case hub.KindStackShown:
		fmt.Fprintf(w, "%s  stack shown: %d clips\n", ts, ev.Total)
	case hub.KindStackProgress:
		fmt.Fprintf(w, "%s  stack %d/%d\n", ts, ev.Current, ev.Total)
	case hub.KindStackHidden:
		fmt.Fprintf(w, "%s  stack hidden\n", ts)
	default:
		fmt.Fprintf(w, "%s  %-12s %s %s %s\n", ts, ev.Kind, ev.ClipID, ev.ContentKind, oneLine(ev.Preview, 60))
	}
}
