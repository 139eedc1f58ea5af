package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/clipstack/internal/hub"
	"go.klb.dev/clipstack/internal/rpc"
	"go.klb.dev/clipstack/internal/stack"
)

func newStackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stack",
		Short: "Paste a selection of clips one at a time",
		Long: `A paste stack holds an ordered selection of clips. Each "stack next"
pastes the next clip into the focused application; "stack skip" passes over
one without pasting. The stack closes shortly after its last paste, on
"stack cancel", or when a new stack replaces it.

  clipstack stack activate $(clipstack history --kind text --limit 3 --json | jq -r '.[].id')
  clipstack stack next     # bind to a hotkey`,
	}

	activate := &cobra.Command{Use: "activate <id>...", Short: "Start a paste stack over the clips, in order", Args: cobra.MinimumNArgs(1)}
	activate.Flags().Bool("plain", false, "paste plain text")

	cmd.AddCommand(
		clientCmd(activate, func(ctx context.Context, cmd *cobra.Command, c *rpc.Client, v *viper.Viper, args []string) error {
			var plain *bool
			if cmd.Flags().Changed("plain") {
				p := v.GetBool("plain")
				plain = &p
			}
			resp, err := c.StackActivate(ctx, args, plain)
			return printStack(cmd.OutOrStdout(), resp, err)
		}),
		stackCall("next", "Paste the next clip of the stack", (*rpc.Client).StackNext),
		stackCall("skip", "Move past the next clip without pasting it", (*rpc.Client).StackSkip),
		stackCall("cancel", "Close the paste stack", (*rpc.Client).StackCancel),
		stackCall("status", "Show the paste stack", (*rpc.Client).StackStatus),
		newWatchKindsCmd("watch", "Print paste stack progress as it happens", []hub.Kind{"stack.*"}),
	)
	return cmd
}

func stackCall(name, short string, call func(*rpc.Client, context.Context) (*rpc.StackResponse, error)) *cobra.Command {
	cmd := &cobra.Command{Use: name, Short: short, Args: cobra.NoArgs}
	return clientCmd(cmd, func(ctx context.Context, cmd *cobra.Command, c *rpc.Client, _ *viper.Viper, _ []string) error {
		resp, err := call(c, ctx)
		return printStack(cmd.OutOrStdout(), resp, err)
	})
}

func printStack(w io.Writer, resp *rpc.StackResponse, err error) error {
	if err != nil {
		return fmt.Errorf("stack: %w", err)
	}
	if resp.Pasted != nil {
		fmt.Fprintf(w, "Pasted %s  %s\n", resp.Pasted.ID, oneLine(resp.Pasted.Label, 60))
	}
	fmt.Fprintln(w, describeStack(resp.State))
	return nil
}

func describeStack(st stack.State) string {
	if !st.Active {
		return "Paste stack inactive."
	}
	s := fmt.Sprintf("Paste stack: %d of %d pasted, %d remaining.", st.Cursor, st.Total, st.Remaining)
	if st.Current != nil {
		s += fmt.Sprintf("\nNext: %s  %s", st.Current.ID, oneLine(st.Current.Label, 60))
	}
	return s
}
