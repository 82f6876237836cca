package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newCrawlCmd creates the 'crawl' subcommand, which runs crawl passes on the configured interval
// until interrupted.
func newCrawlCmd() *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawls active channels into the message store",
		Long: `Repeatedly selects the least recently crawled active channels and pages
backward through their history down to the stored watermark. Each pass waits
for crawler.interval before the next one starts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := resolveApp(ctx)
			if err != nil {
				return err
			}
			platform, err := a.ConnectPlatform(ctx)
			if err != nil {
				return err
			}
			crawler, err := a.Crawler(platform)
			if err != nil {
				return err
			}
			work := a.CrawlWork(crawler)
			if once {
				return work(ctx)
			}

			loop, err := a.NewLoop("crawl", a.Config().Crawler.Interval)
			if err != nil {
				return fmt.Errorf("init crawl loop: %w", err)
			}
			startOpsServer(ctx, a)
			if err := loop.Run(ctx, work); err != nil {
				return fmt.Errorf("run crawl loop: %w", err)
			}
			a.Logger().Info("crawl command finished")
			return nil
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single crawl pass and exit")
	return cmd
}
