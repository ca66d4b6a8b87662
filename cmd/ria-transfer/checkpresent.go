package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newCheckpresentCmd() *cobra.Command {
	var flags storeFlags
	var key string

	cmd := &cobra.Command{
		Use:   "checkpresent",
		Short: "Report whether an annex key is present in the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := flags.build(key)
			if err != nil {
				return err
			}
			defer h.Shutdown()

			if err := h.Prepare(); err != nil {
				return err
			}
			present, err := h.Checkpresent(key)
			if err != nil {
				return err
			}
			if !present {
				fmt.Println("absent")
				os.Exit(1)
			}
			fmt.Println("present")
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&key, "key", "", "annex key")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}
