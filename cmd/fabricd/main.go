// Command fabricd is the process entry point for the fabric simulator:
// it loads a config document, builds the Rack and NOC it describes,
// and drives them through the interactive console described in spec
// section 6 until the operator exits or the process is signaled.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"fabricmesh/internal/logging"
)

func main() {
	var debug bool

	root := &cobra.Command{
		Use:           "fabricd",
		Short:         "Multicell routing fabric simulator",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := logging.LevelInfo
			if debug {
				level = logging.LevelDebug
			}
			return logging.Configure(level)
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	root.AddCommand(newRunCmd())
	root.AddCommand(newValidateCmd())

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
