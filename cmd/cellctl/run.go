package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/vango-dev/cells/internal/config"
	"github.com/vango-dev/cells/internal/errors"
	"github.com/vango-dev/cells/pkg/cell"
)

func runCmd(rt *env) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Play a scenario of cells, aggregates and steps",
		Long: `Build the cells and aggregates of a scenario and apply its steps in
order, printing every value after each step.

The scenario is read from --file, or from the scenario section of the
loaded cellctl.yaml.

Examples:
  cellctl run -f scenario.yaml
  cellctl run --log-level debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			scenario := rt.cfg.Scenario
			if file != "" {
				cfg, err := config.LoadFile(file)
				if err != nil {
					return err
				}
				if err := cfg.Validate(); err != nil {
					return err
				}
				scenario = cfg.Scenario
			}
			if len(scenario.Cells) == 0 {
				return errors.New("C050").WithDetail("the scenario defines no cells")
			}

			nodes, err := buildScenario(scenario, rt)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			names := scenario.Names()
			printValues(out, names, nodes)

			for i, st := range scenario.Steps {
				node := nodes[st.Target()]
				if st.Update != "" {
					node.Update()
					success(out, "step %d: update %s", i+1, st.Update)
				} else {
					node.Set(st.Value)
					success(out, "step %d: set %s = %v", i+1, st.Set, st.Value)
				}
				printValues(out, names, nodes)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Scenario file (YAML, same layout as cellctl.yaml)")

	return cmd
}

// buildScenario creates the scenario's cells, then its aggregates in
// declaration order. Every node gets a logging listener so aggregates
// stay subscribed to their sources for the whole run.
func buildScenario(s config.ScenarioConfig, rt *env) (map[string]cell.Observable[float64], error) {
	nodes := make(map[string]cell.Observable[float64], len(s.Cells)+len(s.Aggregates))

	for _, cs := range s.Cells {
		c := cell.New(cs.Value, cell.WithName(cs.Name))
		if cs.Min != nil || cs.Max != nil {
			c.WithLimiter(clamp(cs.Min, cs.Max))
		}
		nodes[cs.Name] = c
	}

	for _, as := range s.Aggregates {
		srcs := make([]cell.Observable[float64], len(as.Sources))
		for i, name := range as.Sources {
			src, ok := nodes[name]
			if !ok {
				return nil, errors.New("C040").
					WithDetail(fmt.Sprintf("aggregate %q uses %q before it is defined", as.Name, name)).
					WithSuggestion("List an aggregate after every aggregate it reads from.")
			}
			srcs[i] = src
		}
		nodes[as.Name] = newAggregate(as.Kind, srcs, cell.WithName(as.Name))
	}

	for _, name := range s.Names() {
		name := name
		nodes[name].AddListener(func(v float64, _ cell.Observable[float64]) {
			rt.logger.Debug("cell changed", "cell", name, "value", v)
		}, false)
	}

	return nodes, nil
}

func clamp(lo, hi *float64) cell.Limiter[float64] {
	return func(v float64, _ cell.Observable[float64]) (float64, bool) {
		if lo != nil && v < *lo {
			v = *lo
		}
		if hi != nil && v > *hi {
			v = *hi
		}
		return v, true
	}
}

func printValues(w io.Writer, names []string, nodes map[string]cell.Observable[float64]) {
	for _, name := range names {
		if v, ok := nodes[name].Get().Value(); ok {
			info(w, "%s = %v", name, v)
		} else {
			info(w, "%s = (pending)", name)
		}
	}
}
