package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/datalad-ria/ria-remote/internal/transport"
)

func newRetrieveCmd() *cobra.Command {
	var flags storeFlags
	var key, file string

	cmd := &cobra.Command{
		Use:   "retrieve",
		Short: "Download an annex key from the store to a local file",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := flags.build(key)
			if err != nil {
				return err
			}
			defer h.Shutdown()

			if err := h.Prepare(); err != nil {
				return err
			}
			progress := func(done, total int64) {
				if total > 0 {
					fmt.Fprintf(cmd.ErrOrStderr(), "\r%s: %d/%d", key, done, total)
				}
			}
			if err := h.TransferRetrieve(key, file, transport.ProgressFunc(progress)); err != nil {
				return err
			}
			fmt.Println("ok")
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&key, "key", "", "annex key")
	cmd.Flags().StringVar(&file, "file", "", "local destination path")
	_ = cmd.MarkFlagRequired("key")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
