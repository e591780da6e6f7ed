package main

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vango-dev/cells/internal/errors"
	"github.com/vango-dev/cells/pkg/cell"
)

func fetchCmd(rt *env) *cobra.Command {
	var (
		waiters int
		delay   time.Duration
		value   float64
		fail    bool
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Read a lazily fetched remote cell from concurrent waiters",
		Long: `Start several concurrent readers of one remote cell that is not yet
loaded. The readers share a single pull; all of them settle together
once the simulated backend answers after --delay.

Examples:
  cellctl fetch --waiters 8 --delay 50ms
  cellctl fetch --fail`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if waiters < 1 {
				return errors.New("C050").WithDetail("--waiters must be at least 1")
			}
			out := cmd.OutOrStdout()

			var pulls atomic.Int32
			remote := cell.NewRemote(cell.RemoteBinding[float64]{
				Pull: func(r *cell.Remote[float64]) {
					pulls.Add(1)
					rt.logger.Debug("pull started", "cell", "backend", "delay", delay)
					go func() {
						time.Sleep(delay)
						if fail {
							r.FailFetch(fmt.Errorf("backend unavailable"))
							return
						}
						r.ReceiveFromOnce(value)
					}()
				},
			}, cell.WithName("backend"))

			ctx, cancel := context.WithTimeout(cmd.Context(), delay+5*time.Second)
			defer cancel()

			results := make([]float64, waiters)
			start := time.Now()
			g, gctx := errgroup.WithContext(ctx)
			for i := 0; i < waiters; i++ {
				i := i
				res := remote.Get()
				g.Go(func() error {
					v, err := res.Await(gctx)
					results[i] = v
					return err
				})
			}

			if err := g.Wait(); err != nil {
				warn(out, "fetch failed after %s: %v", time.Since(start).Round(time.Millisecond), err)
				info(out, "pulls: %d", pulls.Load())
				return nil
			}

			success(out, "%d waiters resolved with %v", waiters, results[0])
			info(out, "pulls: %d", pulls.Load())
			info(out, "elapsed: %s", time.Since(start).Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().IntVarP(&waiters, "waiters", "n", 4, "Number of concurrent readers")
	cmd.Flags().DurationVar(&delay, "delay", 20*time.Millisecond, "Simulated backend latency")
	cmd.Flags().Float64Var(&value, "value", 42, "Value the backend returns")
	cmd.Flags().BoolVar(&fail, "fail", false, "Make the backend fail instead")

	return cmd
}
