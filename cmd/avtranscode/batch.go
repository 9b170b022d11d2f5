package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/zsiec/avtranscode/internal/config"
	"github.com/zsiec/avtranscode/internal/job"
)

func newBatchCommand(a *app) *cobra.Command {
	var keepGoing bool

	cmd := &cobra.Command{
		Use:   "batch JOBFILE",
		Short: "Run the jobs of a yaml, json or toml job file in parallel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := config.LoadBatch(args[0])
			if err != nil {
				return err
			}
			mgr := job.NewManager(a.log)

			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(a.cfg.Parallel)
			for _, j := range b.Jobs {
				g.Go(func() error {
					if _, err := runJob(ctx, j, a.loader, mgr, a.log); err != nil {
						if keepGoing {
							a.log.Warn("job failed", "output", j.Output, "error", err)
							return nil
						}
						return fmt.Errorf("job %s: %w", j.Output, err)
					}
					return nil
				})
			}
			runErr := g.Wait()

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(mgr.Snapshots()); err != nil {
				return err
			}
			return runErr
		},
	}

	cmd.Flags().IntP("parallel", "p", 0, "Number of jobs run at once (default from config, 2)")
	cmd.Flags().BoolVarP(&keepGoing, "keep-going", "k", false, "Keep running the other jobs when one fails")
	_ = a.v.BindPFlag("parallel", cmd.Flags().Lookup("parallel"))
	return cmd
}
