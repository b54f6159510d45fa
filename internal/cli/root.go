// Package cli implements the esgctl command tree.
package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "ESGCTL"

// Output formats accepted by --output.
const (
	OutputJSON  = "json"
	OutputYAML  = "yaml"
	OutputTable = "table"
)

// NewRootCmd builds esgctl with its own viper instance. Flags may also be set through
// ESGCTL_* environment variables, e.g. ESGCTL_ADDR or ESGCTL_OUTPUT.
func NewRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:           "esgctl",
		Short:         "Inspect ESG compliance scores",
		Long:          "esgctl scores metric entry files locally and queries a running ESG overview server.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch format := v.GetString("output"); format {
			case OutputJSON, OutputYAML, OutputTable:
				return nil
			default:
				return fmt.Errorf("unknown output format %q (json|yaml|table)", format)
			}
		},
	}

	root.PersistentFlags().StringP("output", "o", OutputJSON, "Output format (json|yaml|table)")
	_ = v.BindPFlag("output", root.PersistentFlags().Lookup("output"))

	root.AddCommand(newScoreCmd(v), newDashboardCmd(v))
	return root
}

// Execute runs esgctl against os.Args and returns the process exit code.
func Execute(stdout, stderr io.Writer) int {
	root := NewRootCmd()
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
