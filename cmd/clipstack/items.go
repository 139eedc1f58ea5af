package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/clipstack/internal/rpc"
)

func newPinCmd(pin bool) *cobra.Command {
	use, short := "pin <id>", "Pin a clip so it is never trimmed"
	if !pin {
		use, short = "unpin <id>", "Unpin a clip"
	}
	cmd := &cobra.Command{Use: use, Short: short, Args: cobra.ExactArgs(1)}
	return clientCmd(cmd, func(ctx context.Context, cmd *cobra.Command, c *rpc.Client, _ *viper.Viper, args []string) error {
		it, err := c.Pin(ctx, args[0], pin)
		if err != nil {
			return err
		}
		printItem(cmd.OutOrStdout(), it)
		return nil
	})
}

func newEditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <id> <text>...",
		Short: "Replace the text of a text, link or color clip",
		Long: `Replaces the text a clip pastes. The captured value is kept; editing back
to it clears the edit. Images and files cannot be edited.`,
		Args: cobra.MinimumNArgs(2),
	}
	return clientCmd(cmd, func(ctx context.Context, cmd *cobra.Command, c *rpc.Client, _ *viper.Viper, args []string) error {
		it, err := c.Edit(ctx, args[0], strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		printItem(cmd.OutOrStdout(), it)
		return nil
	})
}

func newDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "delete <id>...",
		Aliases: []string{"rm"},
		Short:   "Delete clips from the history",
		Args:    cobra.MinimumNArgs(1),
	}
	return clientCmd(cmd, func(ctx context.Context, _ *cobra.Command, c *rpc.Client, _ *viper.Viper, args []string) error {
		for _, id := range args {
			if err := c.Delete(ctx, id); err != nil {
				return fmt.Errorf("delete %s: %w", id, err)
			}
		}
		return nil
	})
}

func newClearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every unpinned clip",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().Bool("all", false, "also delete pinned clips")
	return clientCmd(cmd, func(ctx context.Context, cmd *cobra.Command, c *rpc.Client, v *viper.Viper, _ []string) error {
		n, err := c.Clear(ctx, v.GetBool("all"))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d clips.\n", n)
		return nil
	})
}
