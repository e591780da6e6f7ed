package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs cellctl with args and returns the process exit code.
func execute(args []string, stdout, stderr io.Writer) int {
	rt := &env{}
	cmd := newRootCmd(rt)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.Execute(); err != nil {
		rt.printError(stderr, err)
		return 1
	}
	return 0
}

func newRootCmd(rt *env) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cellctl",
		Short: "Drive reactive value cells from the command line",
		Long: `cellctl builds observable cells, aggregates and lazily fetched remote
cells, then pushes values through them so their propagation can be
watched:

  • sum and average aggregates that distribute writes to their sources
  • remote cells that share one fetch between concurrent readers
  • YAML scenarios of cells, aggregates and steps
  • structured logs, Prometheus metrics and OpenTelemetry spans`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return rt.start(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return rt.stop(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&rt.flags.configPath, "config", "c", "", "Path to cellctl.yaml (default: ./cellctl.yaml if present)")
	flags.StringVar(&rt.flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVar(&rt.flags.logFormat, "log-format", "", "Log format: text or json")
	flags.BoolVar(&rt.flags.metrics, "metrics", false, "Print Prometheus metrics after the command")
	flags.BoolVar(&rt.flags.trace, "trace", false, "Export fetch spans to stdout")
	flags.BoolVar(&rt.flags.noColor, "no-color", false, "Disable colored error output")

	rootCmd.AddCommand(
		aggregateCmd(rt, kindSum),
		aggregateCmd(rt, kindAverage),
		fetchCmd(rt),
		runCmd(rt),
		initCmd(),
		explainCmd(rt),
		versionCmd(),
	)

	return rootCmd
}

// success prints a success message.
func success(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}
