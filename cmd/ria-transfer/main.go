// Command ria-transfer is a thin exerciser for the RIA Handler contract
// (spec.md §4.E-§4.G): it resolves a ria+<scheme>:// store URL and dataset
// id into a Handler and drives exactly one operation per invocation. It is
// not the git-annex special-remote protocol adapter itself (spec.md §1
// Non-goals) — that lives upstream, one process boundary away, speaking
// the line protocol over stdin/stdout; this binary is what such an adapter
// (or an operator debugging a store) would shell out to.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	rialog "github.com/datalad-ria/ria-remote/internal/log"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var debug bool

	root := &cobra.Command{
		Use:           "ria-transfer",
		Short:         "Drive a RIA (Remote Indexed Archive) store's transfer protocol",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if debug {
				rialog.SetLevel(rialog.LevelDebug)
			}
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newInitCmd(),
		newStoreCmd(),
		newRetrieveCmd(),
		newCheckpresentCmd(),
		newRemoveCmd(),
	)
	return root
}
