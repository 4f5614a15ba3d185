package main

import (
	"github.com/spf13/cobra"
)

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [NAME]",
		Short: "Delete an instance",
		Long:  "Delete an instance. The name defaults to $LEMMA_INSTANCE.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := a.v.GetString("instance")
			if len(args) == 1 {
				name = args[0]
			}
			manager, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			return manager.Delete(cmd.Context(), name)
		},
	}
}
