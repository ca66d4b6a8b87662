package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRemoveCmd() *cobra.Command {
	var flags storeFlags
	var key string

	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove an annex key from the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := flags.build(key)
			if err != nil {
				return err
			}
			defer h.Shutdown()

			if err := h.Prepare(); err != nil {
				return err
			}
			if err := h.Remove(key); err != nil {
				return err
			}
			fmt.Println("ok")
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&key, "key", "", "annex key")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}
