package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/clipstack/internal/rpc"
)

func newPasteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "paste [id...]",
		Short: "Print a clip to stdout, or put it back on the clipboard",
		Long: `Without flags, writes the clip to stdout (like pbpaste). With no ID the
newest clip is used. Images and other binary clips are written raw:

  clipstack paste 01928f... > screenshot.png

--to-clipboard puts the clip on the system clipboard instead; --keystroke
also sends the paste shortcut to the focused application. Several IDs are
joined by --separator and pasted as plain text.`,
	}
	f := cmd.Flags()
	f.Bool("to-clipboard", false, "write the clip to the system clipboard")
	f.Bool("keystroke", false, "write to the clipboard and send the paste keystroke")
	f.Bool("plain", false, "drop rich formatting")
	f.String("separator", "\n", "separator when pasting several clips")
	return clientCmd(cmd, runPaste)
}

func runPaste(ctx context.Context, cmd *cobra.Command, c *rpc.Client, v *viper.Viper, args []string) error {
	req := &rpc.PasteRequest{Mode: rpc.PasteReturn, Separator: v.GetString("separator")}
	switch {
	case v.GetBool("keystroke"):
		req.Mode = rpc.PasteKeystroke
	case v.GetBool("to-clipboard"):
		req.Mode = rpc.PasteClipboard
	}
	if cmd.Flags().Changed("plain") {
		plain := v.GetBool("plain")
		req.Plain = &plain
	}
	switch len(args) {
	case 0:
	case 1:
		req.ID = args[0]
	default:
		req.IDs = args
	}

	resp, err := c.Paste(ctx, req)
	if err != nil {
		return fmt.Errorf("paste: %w", err)
	}
	if req.Mode != rpc.PasteReturn {
		return nil
	}

	out := cmd.OutOrStdout()
	for i, it := range resp.Items {
		if i > 0 {
			fmt.Fprint(out, req.Separator)
		}
		if t := it.Content.Text(); t != "" {
			fmt.Fprint(out, t)
			continue
		}
		if _, err := out.Write(it.Content.Active()); err != nil {
			return err
		}
	}
	return nil
}
