package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/clipstack/internal/message"
	"go.klb.dev/clipstack/internal/rpc"
)

func newCopyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "copy",
		Short: "Copy stdin to the clipboard and history (like pbcopy)",
		Long: `Reads stdin, puts it on the system clipboard through the daemon and
records it in the history. The daemon does not record it a second time when
it sees its own clipboard write.

  echo hello | clipstack copy
  clipstack copy --mime image/png < screenshot.png`,
		Args: cobra.NoArgs,
	}
	cmd.Flags().String("mime", message.MIMEText, "MIME type of the data being copied")
	cmd.Flags().Bool("print-id", false, "print the ID of the recorded clip")
	return clientCmd(cmd, runCopy)
}

func runCopy(ctx context.Context, cmd *cobra.Command, c *rpc.Client, v *viper.Viper, _ []string) error {
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var item message.Item
	if mime := v.GetString("mime"); mime == message.MIMEText {
		item = message.NewTextItem(string(data))
	} else {
		item = message.NewBinaryItem(mime, data)
	}

	resp, err := c.Copy(ctx, []message.Item{item})
	if err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	slog.Debug("copied", "id", resp.Item.ID, "kind", resp.Item.Content.Kind, "new", resp.New)
	if v.GetBool("print-id") {
		fmt.Fprintln(cmd.OutOrStdout(), resp.Item.ID)
	}
	return nil
}
