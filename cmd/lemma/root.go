package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/dadevel/lemma/agent"
	"github.com/dadevel/lemma/api"
	core "github.com/dadevel/lemma/backends/core"
	"github.com/dadevel/lemma/backends/lambda"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// app carries the state shared by all subcommands of one execution.
type app struct {
	v      *viper.Viper
	logger zerolog.Logger
	stdin  io.Reader
	stdout io.Writer
	// httpClient is used for invocations, nil selects agent.NewClient's default.
	httpClient *http.Client
}

// envBindings maps configuration keys to the environment variables read when
// the flag is not given, in order of preference.
var envBindings = map[string][]string{
	"log-level":    {"LEMMA_LOG_LEVEL"},
	"region":       {"LEMMA_REGION", "AWS_DEFAULT_REGION"},
	"endpoint-url": {"LEMMA_ENDPOINT_URL"},
	"image":        {"LEMMA_IMAGE"},
	"role":         {"LEMMA_ROLE"},
	"timeout":      {api.EnvTimeout},
	"instance":     {api.EnvInstance},
	"url":          {api.EnvURL},
	"api-key":      {api.EnvAPIKey},
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	a := &app{
		v:      viper.New(),
		logger: zerolog.Nop(),
		stdin:  stdin,
		stdout: stdout,
	}
	for key, names := range envBindings {
		_ = a.v.BindEnv(append([]string{key}, names...)...)
	}

	root := &cobra.Command{
		Use:           "lemma",
		Short:         "Run commands in throwaway AWS Lambda instances",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// flags of the executing command only, several commands share keys
			if err := a.v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			level, err := zerolog.ParseLevel(a.v.GetString("log-level"))
			if err != nil {
				return &api.ConfigError{Field: "log-level", Message: fmt.Sprintf("invalid log level %q", a.v.GetString("log-level"))}
			}
			a.logger = zerolog.New(zerolog.ConsoleWriter{Out: stderr}).
				Level(level).
				With().Timestamp().Str("component", "lemma").Logger()
			return nil
		},
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &api.ConfigError{Field: "flags", Message: err.Error()}
	})

	pf := root.PersistentFlags()
	pf.String("log-level", "info", "log level (trace, debug, info, warn, error) [$LEMMA_LOG_LEVEL]")
	pf.StringP("region", "r", "", "AWS region [$LEMMA_REGION, $AWS_DEFAULT_REGION]")
	pf.String("endpoint-url", "", "custom AWS endpoint, e.g. a local simulator [$LEMMA_ENDPOINT_URL]")

	root.AddCommand(
		newCreateCmd(a),
		newDeleteCmd(a),
		newInvokeCmd(a),
		newListCmd(a),
		newRunCmd(a),
		newLogsCmd(a),
		newVersionCmd(),
	)
	return root
}

// addInstanceFlags registers the options describing a new instance.
func addInstanceFlags(fs *pflag.FlagSet) {
	fs.String("image", "", "container image URI [$LEMMA_IMAGE]")
	fs.String("role", "", "execution role ARN [$LEMMA_ROLE]")
	fs.Int("memory", 128, "memory in MB")
	fs.Int("storage", 512, "ephemeral storage in MB")
	fs.IntP("timeout", "t", 300, "default and maximum command timeout in seconds [$LEMMA_TIMEOUT]")
	fs.StringArrayP("env", "e", nil, "environment variable KEY=VALUE, a bare KEY copies it from the local environment")
	fs.Duration("poll-timeout", 0, "give up waiting for the instance after this long, 0 waits indefinitely")
	fs.Duration("poll-interval", lambda.DefaultPollInterval, "delay between readiness checks")
	_ = fs.MarkHidden("poll-interval")
}

// instanceSpec builds the create request from the executing command's flags.
func (a *app) instanceSpec(cmd *cobra.Command) (core.InstanceSpec, error) {
	envItems, err := cmd.Flags().GetStringArray("env")
	if err != nil {
		return core.InstanceSpec{}, err
	}
	spec := core.InstanceSpec{
		Image:     a.v.GetString("image"),
		Role:      a.v.GetString("role"),
		Env:       core.ParseEnv(envItems, os.LookupEnv),
		MemoryMB:  a.v.GetInt("memory"),
		StorageMB: a.v.GetInt("storage"),
		Timeout:   a.v.GetInt("timeout"),
	}
	// Lambda limits
	if spec.Timeout < 1 || spec.Timeout > 900 {
		return spec, &api.ConfigError{Field: "timeout", Message: "timeout must be between 1 and 900 seconds"}
	}
	if spec.MemoryMB < 128 || spec.MemoryMB > 10240 {
		return spec, &api.ConfigError{Field: "memory", Message: "memory must be between 128 and 10240 MB"}
	}
	if spec.StorageMB < 512 || spec.StorageMB > 10240 {
		return spec, &api.ConfigError{Field: "storage", Message: "storage must be between 512 and 10240 MB"}
	}
	return spec, nil
}

func (a *app) lambdaConfig() lambda.Config {
	return lambda.Config{
		Region:       a.v.GetString("region"),
		EndpointURL:  a.v.GetString("endpoint-url"),
		PollInterval: a.v.GetDuration("poll-interval"),
		PollTimeout:  a.v.GetDuration("poll-timeout"),
	}
}

func (a *app) clients(ctx context.Context) (*lambda.AWSClients, lambda.Config, error) {
	cfg := a.lambdaConfig()
	if err := cfg.Validate(); err != nil {
		return nil, cfg, err
	}
	clients, err := lambda.NewAWSClients(ctx, cfg)
	if err != nil {
		return nil, cfg, err
	}
	return clients, cfg, nil
}

func (a *app) manager(ctx context.Context) (*lambda.Manager, error) {
	clients, cfg, err := a.clients(ctx)
	if err != nil {
		return nil, err
	}
	return lambda.NewManager(clients.Platform(), cfg, a.logger), nil
}

func (a *app) invoker() *agent.Client {
	return agent.NewClient(a.httpClient, a.logger)
}

// commandInput returns the reader forwarded as the command's stdin, or nil
// when --stdin is not set.
func (a *app) commandInput(cmd *cobra.Command) io.Reader {
	if enabled, _ := cmd.Flags().GetBool("stdin"); enabled {
		return a.stdin
	}
	return nil
}
