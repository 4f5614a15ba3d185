package main

import (
	"github.com/spf13/cobra"

	"github.com/dadevel/lemma/agent"
)

func newInvokeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invoke [flags] [--] COMMAND [ARG...]",
		Short: "Run a command on an existing instance",
		Long: `Run a command on an existing instance and stream its combined output.
The instance URL and key default to $LEMMA_URL and $LEMMA_API_KEY.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			timeout, err := cmd.Flags().GetInt("timeout")
			if err != nil {
				return err
			}
			stream, err := a.invoker().Invoke(cmd.Context(), a.v.GetString("url"), a.v.GetString("api-key"), agent.Request{
				Command: args,
				Stdin:   a.commandInput(cmd),
				Timeout: timeout,
			})
			if err != nil {
				return err
			}
			defer stream.Close()
			_, err = stream.WriteTo(a.stdout)
			return err
		},
	}
	// everything after the first positional argument belongs to the command
	cmd.Flags().SetInterspersed(false)
	cmd.Flags().StringP("url", "u", "", "instance URL [$LEMMA_URL]")
	cmd.Flags().StringP("api-key", "k", "", "instance key [$LEMMA_API_KEY]")
	cmd.Flags().IntP("timeout", "t", 0, "command timeout in seconds, 0 uses the instance default")
	cmd.Flags().BoolP("stdin", "s", false, "forward standard input to the command")
	return cmd
}
