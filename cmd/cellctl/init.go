package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vango-dev/cells/internal/config"
	"github.com/vango-dev/cells/internal/errors"
)

func initCmd() *cobra.Command {
	var (
		dir   string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter cellctl.yaml",
		Long: `Write a cellctl.yaml with default settings and a small scenario:
two cells, their sum, and a write through the sum.`,
		// init must work without an existing config.
		PersistentPreRunE:  func(*cobra.Command, []string) error { return nil },
		PersistentPostRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			path := filepath.Join(dir, config.ConfigFileName)
			if _, err := os.Stat(path); err == nil && !force {
				return errors.New("C050").WithDetail(path + " already exists; use --force to overwrite")
			}

			if err := starterConfig().SaveTo(path); err != nil {
				return err
			}
			success(cmd.OutOrStdout(), "Wrote %s", path)
			info(cmd.OutOrStdout(), "Try: cellctl run")
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "Directory to write into")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	return cmd
}

func starterConfig() *config.Config {
	ceiling := 100.0
	cfg := config.New()
	cfg.Scenario = config.ScenarioConfig{
		Cells: []config.CellSpec{
			{Name: "a", Value: 2},
			{Name: "b", Value: 3, Max: &ceiling},
		},
		Aggregates: []config.AggregateSpec{
			{Name: "total", Kind: config.KindSum, Sources: []string{"a", "b"}},
		},
		Steps: []config.Step{
			{Set: "total", Value: 11},
			{Set: "a", Value: 1},
		},
	}
	return cfg
}
