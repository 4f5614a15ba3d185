package main

import (
	"github.com/spf13/cobra"

	"github.com/dadevel/lemma/agent"
	core "github.com/dadevel/lemma/backends/core"
)

func newRunCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [flags] [--] COMMAND [ARG...]",
		Short: "Run a command on a new instance and delete it afterwards",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return agent.ErrMissingCommand
			}
			spec, err := a.instanceSpec(cmd)
			if err != nil {
				return err
			}
			manager, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			session := core.NewSession(manager, a.invoker(), a.logger)
			return session.Run(cmd.Context(), core.RunRequest{
				Spec:    spec,
				Command: args,
				Stdin:   a.commandInput(cmd),
			}, a.stdout)
		},
	}
	cmd.Flags().SetInterspersed(false)
	addInstanceFlags(cmd.Flags())
	cmd.Flags().BoolP("stdin", "s", false, "forward standard input to the command")
	return cmd
}
