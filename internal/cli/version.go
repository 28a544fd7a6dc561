package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version is the recipebox release, set at build time with
// -ldflags "-X github.com/mesh-intelligence/recipebox/internal/cli.Version=...".
var Version = "0.1.0-dev"

const modulePath = "github.com/mesh-intelligence/recipebox"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the recipebox version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "recipebox v%s\nmodule: %s\ngo: %s\n", Version, modulePath, runtime.Version())
			return nil
		},
	}
}
