package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/clipstack/internal/content"
	"go.klb.dev/clipstack/internal/history"
	"go.klb.dev/clipstack/internal/rpc"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "history",
		Aliases: []string{"ls"},
		Short:   "List clips, newest first",
		Args:    cobra.NoArgs,
	}
	addQueryFlags(cmd)
	return clientCmd(cmd, func(ctx context.Context, cmd *cobra.Command, c *rpc.Client, v *viper.Viper, _ []string) error {
		return listItems(ctx, cmd, c, v, "")
	})
}

func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Find clips by text, link title, file name or OCR text",
		Args:  cobra.MinimumNArgs(1),
	}
	addQueryFlags(cmd)
	return clientCmd(cmd, func(ctx context.Context, cmd *cobra.Command, c *rpc.Client, v *viper.Viper, args []string) error {
		return listItems(ctx, cmd, c, v, strings.Join(args, " "))
	})
}

func addQueryFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringSlice("kind", nil, "only these kinds: text,richText,image,file,link,color")
	f.String("collection", "", "only clips in this collection (name or ID)")
	f.Bool("pinned", false, "only pinned clips")
	f.Int("limit", 20, "maximum number of clips (0 = all)")
	f.Bool("json", false, "output raw JSON")
}

func listItems(ctx context.Context, cmd *cobra.Command, c *rpc.Client, v *viper.Viper, text string) error {
	q := history.Query{
		Text:       text,
		Collection: v.GetString("collection"),
		PinnedOnly: v.GetBool("pinned"),
		Limit:      v.GetInt("limit"),
	}
	for _, s := range v.GetStringSlice("kind") {
		k, err := content.ParseKind(s)
		if err != nil {
			return err
		}
		q.Kinds = append(q.Kinds, k)
	}

	items, err := c.History(ctx, q)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}
	if v.GetBool("json") {
		return printJSON(cmd.OutOrStdout(), items)
	}
	if len(items) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No clips.")
		return nil
	}
	printItems(cmd.OutOrStdout(), items)
	return nil
}

func printItems(w io.Writer, items []history.Item) {
	tw := tabwriter.NewWriter(w, 1, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "ID\tKIND\tCOPIED\tUSED\t\tPREVIEW\n")
	for _, it := range items {
		pin := ""
		if it.Pinned {
			pin = "📌"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			it.ID, it.Content.Kind, fmtAge(it.CopiedAt), it.UseCount, pin, oneLine(it.Preview(), 60))
	}
	_ = tw.Flush()
}

func printItem(w io.Writer, it history.Item) {
	printItems(w, []history.Item{it})
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
