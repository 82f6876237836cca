package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/chansearch/internal/crawler"
)

func newChannelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channel",
		Short: "Manages the channels chansearch crawls",
	}
	cmd.AddCommand(newChannelAddCmd())
	cmd.AddCommand(newChannelListCmd())
	cmd.AddCommand(newChannelStatusCmd())
	return cmd
}

func newChannelAddCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "add <channel-id>",
		Short: "Seeds a channel for crawling",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			ch, existed, err := crawler.SeedChannel(cmd.Context(), a.Store(), crawler.SeedRequest{
				ChannelID: args[0],
				Name:      name,
			})
			if err != nil {
				return err
			}
			if existed {
				fmt.Fprintf(cmd.OutOrStdout(), "channel %s is already indexed (status %s)\n", ch.ID, ch.Status)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "channel %s added\n", ch.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name (defaults to the channel id)")
	return cmd
}

func newChannelListCmd() *cobra.Command {
	var (
		status string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Lists channels, least recently crawled first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			st := crawler.ChannelStatus(status)
			if st != "" && !st.Valid() {
				return fmt.Errorf("invalid status %q", status)
			}
			channels, err := a.Store().ListChannels(cmd.Context(), crawler.ChannelQuery{Status: st, Limit: limit})
			if err != nil {
				return fmt.Errorf("list channels: %w", err)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tLAST SEEN\tLAST CRAWLED")
			for _, ch := range channels {
				crawled := "never"
				if at := ch.LastCrawledAt(); !at.IsZero() {
					crawled = at.Format(time.RFC3339)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", ch.ID, ch.Name, ch.Status, ch.LastSeenMessageID, crawled)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only list channels with this status")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of channels to list (0 lists all)")
	return cmd
}

func newChannelStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <channel-id> <active|paused|archived>",
		Short: "Pauses, resumes or archives a channel",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			ch, err := crawler.SetChannelStatus(cmd.Context(), a.Store(), crawler.StatusRequest{
				ChannelID: args[0],
				Status:    crawler.ChannelStatus(args[1]),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "channel %s is now %s\n", ch.ID, ch.Status)
			return nil
		},
	}
}
