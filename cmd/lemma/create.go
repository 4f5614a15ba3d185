package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dadevel/lemma/api"
	core "github.com/dadevel/lemma/backends/core"
)

func newCreateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an instance and print its shell variables",
		Long: `Create an instance and print LEMMA_INSTANCE, LEMMA_URL and LEMMA_API_KEY
as shell assignments, e.g.

  eval "$(lemma create --export --image URI --role ARN)"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := a.instanceSpec(cmd)
			if err != nil {
				return err
			}
			spec.Name = core.GenerateInstanceName()
			spec.Key = core.GenerateSecretKey()

			manager, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			url, err := manager.Create(cmd.Context(), spec)
			if err != nil {
				var configErr *api.ConfigError
				if !errors.As(err, &configErr) {
					a.logger.Warn().Str("instance", spec.Name).Msg("instance may exist partially, remove it with `lemma delete`")
				}
				return err
			}

			export, _ := cmd.Flags().GetBool("export")
			out, err := core.FormatEnv(api.Instance{Name: spec.Name, URL: url, Key: spec.Key}.Env(), export)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.stdout, out)
			return err
		},
	}
	addInstanceFlags(cmd.Flags())
	cmd.Flags().Bool("export", false, "prefix each line with export")
	return cmd
}
