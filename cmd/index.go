package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newIndexCmd creates the 'index' subcommand, which sweeps the message store into the search
// engine on the configured interval.
func newIndexCmd() *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Indexes stored messages into the search engine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := resolveApp(ctx)
			if err != nil {
				return err
			}
			ix, err := a.Indexer()
			if err != nil {
				return err
			}
			work := a.IndexWork(ix)
			if once {
				return work(ctx)
			}

			loop, err := a.NewLoop("index", a.Config().Indexer.Interval)
			if err != nil {
				return fmt.Errorf("init index loop: %w", err)
			}
			startOpsServer(ctx, a)
			if err := loop.Run(ctx, work); err != nil {
				return fmt.Errorf("run index loop: %w", err)
			}
			a.Logger().Info("index command finished")
			return nil
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single sweep and exit")
	return cmd
}
