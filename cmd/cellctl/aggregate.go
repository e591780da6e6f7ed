package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vango-dev/cells/internal/config"
	"github.com/vango-dev/cells/internal/errors"
	"github.com/vango-dev/cells/pkg/cell"
)

const (
	kindSum     = config.KindSum
	kindAverage = config.KindAverage
)

func aggregateCmd(rt *env, kind string) *cobra.Command {
	var (
		values []float64
		target float64
	)

	cmd := &cobra.Command{
		Use:   kind,
		Short: fmt.Sprintf("Build a %s over source cells and optionally write through it", kind),
		Long: fmt.Sprintf(`Build one cell per --values entry and a %[1]s aggregate over them.

With --set, the target is written to the aggregate, which spreads it
over the sources. The source values and the recomputed %[1]s are printed.

Examples:
  cellctl %[1]s --values 2,3
  cellctl %[1]s --values 2,3 --set 11`, kind),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(values) == 0 {
				return errors.New("C050").WithDetail("--values needs at least one number")
			}
			out := cmd.OutOrStdout()

			cells := make([]*cell.Cell[float64], len(values))
			srcs := make([]cell.Observable[float64], len(values))
			for i, v := range values {
				cells[i] = cell.New(v, cell.WithName(fmt.Sprintf("%s%d", kind, i)))
				srcs[i] = cells[i]
			}
			agg := newAggregate(kind, srcs, cell.WithName(kind))

			agg.AddListener(func(v float64, _ cell.Observable[float64]) {
				rt.logger.Debug("aggregate changed", "cell", kind, "value", v)
			}, false)

			total, err := agg.Get().Await(cmd.Context())
			if err != nil {
				return err
			}
			success(out, "%s of %v = %v", kind, values, total)

			if !cmd.Flags().Changed("set") {
				return nil
			}

			agg.Set(target)
			info(out, "set %s to %v", kind, target)
			for _, c := range cells {
				v, _ := c.Peek()
				info(out, "%s = %v", c.Name(), v)
			}
			total, err = agg.Get().Await(cmd.Context())
			if err != nil {
				return err
			}
			success(out, "%s = %v", kind, total)
			return nil
		},
	}

	cmd.Flags().Float64SliceVar(&values, "values", nil, "Initial source values (comma separated)")
	cmd.Flags().Float64Var(&target, "set", 0, "Value to write through the aggregate")

	return cmd
}

func newAggregate(kind string, srcs []cell.Observable[float64], opts ...cell.Option) *cell.Aggregate[float64] {
	if kind == kindAverage {
		return cell.NewAverage(srcs, opts...)
	}
	return cell.NewSum(srcs, opts...)
}
