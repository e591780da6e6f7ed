package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/cells/internal/errors"
)

func explainCmd(rt *env) *cobra.Command {
	return &cobra.Command{
		Use:   "explain <code>",
		Short: "Describe a diagnostic code",
		Long: `Print the message, detail and hint registered for a diagnostic code,
as reported in cell logs (code=C010) or by cellctl itself.

Examples:
  cellctl explain C010
  cellctl explain c042`,
		Args:               cobra.ExactArgs(1),
		PersistentPreRunE:  func(*cobra.Command, []string) error { return nil },
		PersistentPostRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			code := strings.ToUpper(args[0])
			if _, ok := errors.Lookup(code); !ok {
				return errors.New("C050").WithDetail(fmt.Sprintf("unknown diagnostic code %q", args[0]))
			}
			errors.SetColors(!rt.flags.noColor)
			fmt.Fprint(cmd.OutOrStdout(), errors.New(code).Format())
			return nil
		},
	}
}
