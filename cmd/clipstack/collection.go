package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/clipstack/internal/history"
	"go.klb.dev/clipstack/internal/rpc"
)

func newCollectionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "collection",
		Aliases: []string{"col"},
		Short:   "Manage collections",
		Long: `Collections group clips. Links, Images and Colors are smart collections:
they always contain every clip of their kind and cannot be changed.
Collections are referred to by name or ID.`,
	}

	list := &cobra.Command{Use: "list", Short: "List collections with clip counts", Args: cobra.NoArgs}
	list.Flags().Bool("json", false, "output raw JSON")

	create := &cobra.Command{Use: "create <name>", Short: "Create a collection", Args: cobra.ExactArgs(1)}
	create.Flags().String("icon", "", "icon name (default folder)")
	create.Flags().String("color", "", "hex color, e.g. #FF9500 (default #007AFF)")

	cmd.AddCommand(
		clientCmd(list, func(ctx context.Context, cmd *cobra.Command, c *rpc.Client, v *viper.Viper, _ []string) error {
			cols, err := c.Collections(ctx)
			if err != nil {
				return err
			}
			if v.GetBool("json") {
				return printJSON(cmd.OutOrStdout(), cols)
			}
			printCollections(cmd.OutOrStdout(), cols)
			return nil
		}),
		clientCmd(create, func(ctx context.Context, cmd *cobra.Command, c *rpc.Client, v *viper.Viper, args []string) error {
			return editCollection(ctx, cmd, c, &rpc.CollectionEditRequest{
				Action: rpc.CollectionCreate,
				Name:   args[0],
				Icon:   v.GetString("icon"),
				Color:  v.GetString("color"),
			})
		}),
		clientCmd(&cobra.Command{Use: "rename <collection> <new-name>", Short: "Rename a collection", Args: cobra.ExactArgs(2)},
			func(ctx context.Context, cmd *cobra.Command, c *rpc.Client, _ *viper.Viper, args []string) error {
				return editCollection(ctx, cmd, c, &rpc.CollectionEditRequest{Action: rpc.CollectionRename, Collection: args[0], Name: args[1]})
			}),
		clientCmd(&cobra.Command{Use: "delete <collection>", Short: "Delete a collection; its clips stay in the history", Args: cobra.ExactArgs(1)},
			func(ctx context.Context, cmd *cobra.Command, c *rpc.Client, _ *viper.Viper, args []string) error {
				return editCollection(ctx, cmd, c, &rpc.CollectionEditRequest{Action: rpc.CollectionDelete, Collection: args[0]})
			}),
		clientCmd(&cobra.Command{Use: "add <collection> <id>...", Short: "Add clips to a collection", Args: cobra.MinimumNArgs(2)},
			func(ctx context.Context, cmd *cobra.Command, c *rpc.Client, _ *viper.Viper, args []string) error {
				return editMembers(ctx, cmd, c, rpc.CollectionAdd, args[0], args[1:])
			}),
		clientCmd(&cobra.Command{Use: "remove <collection> <id>...", Short: "Remove clips from a collection", Args: cobra.MinimumNArgs(2)},
			func(ctx context.Context, cmd *cobra.Command, c *rpc.Client, _ *viper.Viper, args []string) error {
				return editMembers(ctx, cmd, c, rpc.CollectionRemove, args[0], args[1:])
			}),
	)
	return cmd
}

func editCollection(ctx context.Context, cmd *cobra.Command, c *rpc.Client, req *rpc.CollectionEditRequest) error {
	resp, err := c.CollectionEdit(ctx, req)
	if err != nil {
		return fmt.Errorf("collection %s: %w", req.Action, err)
	}
	if resp.Collection != nil {
		printCollections(cmd.OutOrStdout(), []history.CollectionInfo{{Collection: *resp.Collection}})
	}
	return nil
}

func editMembers(ctx context.Context, cmd *cobra.Command, c *rpc.Client, action rpc.CollectionAction, col string, ids []string) error {
	for _, id := range ids {
		resp, err := c.CollectionEdit(ctx, &rpc.CollectionEditRequest{Action: action, Collection: col, ItemID: id})
		if err != nil {
			return fmt.Errorf("collection %s %s: %w", action, id, err)
		}
		if resp.Item != nil {
			printItem(cmd.OutOrStdout(), *resp.Item)
		}
	}
	return nil
}

func printCollections(w io.Writer, cols []history.CollectionInfo) {
	tw := tabwriter.NewWriter(w, 1, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "ID\tNAME\tCLIPS\tCOLOR\tICON\tTYPE\n")
	for _, c := range cols {
		typ := "user"
		if c.IsSmart() {
			typ = "smart (" + string(c.Smart) + ")"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n", c.ID, c.Name, c.Count, c.Color, c.Icon, typ)
	}
	_ = tw.Flush()
}
