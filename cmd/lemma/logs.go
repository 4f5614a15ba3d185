package main

import (
	"github.com/spf13/cobra"

	"github.com/dadevel/lemma/api"
	"github.com/dadevel/lemma/backends/lambda"
)

func newLogsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs [NAME]",
		Short: "Print the latest logs of an instance",
		Long:  "Print the latest log stream of an instance. The name defaults to $LEMMA_INSTANCE.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := a.v.GetString("instance")
			if len(args) == 1 {
				name = args[0]
			}
			if name == "" {
				return api.Missing("name", "specify positional argument or set $LEMMA_INSTANCE")
			}
			tail, err := cmd.Flags().GetInt32("tail")
			if err != nil {
				return err
			}
			timestamps, _ := cmd.Flags().GetBool("timestamps")

			clients, _, err := a.clients(cmd.Context())
			if err != nil {
				return err
			}
						for event, err := range clients.Logs(a.logger).Events(cmd.Context(), name, tail) {
				if err != nil {
					return err
				}
				if err := lambda.WriteLogEvent(a.stdout, event, timestamps); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().Int32P("tail", "n", 0, "only print the last N events")
	cmd.Flags().Bool("timestamps", false, "prefix each line with its timestamp")
	return cmd
}
