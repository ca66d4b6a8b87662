package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	var flags storeFlags

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Bootstrap a RIA store's dataset directory and layout version file",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := flags.build("init")
			if err != nil {
				return err
			}
			defer h.Shutdown()

			if err := h.Prepare(); err != nil {
				return err
			}
			fmt.Println("ok")
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}
