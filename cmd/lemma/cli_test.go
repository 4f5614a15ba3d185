package main

import (
	"bytes"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dadevel/lemma/agent"
	"github.com/dadevel/lemma/api"
	"github.com/dadevel/lemma/simulators/lambdasim"
)

// setupEnv points the CLI at a fresh simulator and clears every variable the
// CLI reads.
func setupEnv(t *testing.T) *lambdasim.Server {
	t.Helper()
	sim := lambdasim.New(lambdasim.Options{}, zerolog.Nop())
	srv := httptest.NewServer(sim)
	t.Cleanup(srv.Close)

	for _, names := range envBindings {
		for _, name := range names {
			t.Setenv(name, "")
		}
	}
	t.Setenv("AWS_CONFIG_FILE", "/dev/null")
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", "/dev/null")
	t.Setenv("LEMMA_REGION", "us-east-1")
	t.Setenv("LEMMA_ENDPOINT_URL", srv.URL)
	t.Setenv("LEMMA_LOG_LEVEL", "warn")
	t.Setenv("LEMMA_IMAGE", "lemma:latest")
	t.Setenv("LEMMA_ROLE", "arn:aws:iam::123456789012:role/lemma")
	return sim
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(strings.NewReader(stdin), &stdout, &stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(t.Context())
	if stderr.Len() > 0 {
		t.Logf("stderr: %s", stderr.String())
	}
	return stdout.String(), err
}

// parseAssignments reads KEY=VALUE lines, dropping an export prefix and
// single quotes.
func parseAssignments(t *testing.T, out string) map[string]string {
	t.Helper()
	vars := map[string]string{}
	for line := range strings.Lines(strings.TrimSpace(out)) {
		line = strings.TrimPrefix(strings.TrimSpace(line), "export ")
		key, value, ok := strings.Cut(line, "=")
		require.True(t, ok, "not an assignment: %q", line)
		vars[key] = strings.Trim(value, "'")
	}
	return vars
}

func TestInstanceLifecycle(t *testing.T) {
	sim := setupEnv(t)

	out, err := execute(t, "", "create", "--export", "-e", "FOO=from create", "-t", "60")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "export "+api.EnvInstance+"="), out)
	vars := parseAssignments(t, out)
	require.Len(t, vars, 3)
	name := vars[api.EnvInstance]
	assert.Regexp(t, `^lemma-\d{8}-[0-9a-f]{16}$`, name)
	assert.Regexp(t, `^[0-9a-f]{64}$`, vars[api.EnvAPIKey])
	assert.Equal(t, []string{name}, sim.Functions())

	t.Setenv(api.EnvInstance, name)
	t.Setenv(api.EnvURL, vars[api.EnvURL])
	t.Setenv(api.EnvAPIKey, vars[api.EnvAPIKey])

	out, err = execute(t, "", "invoke", "/bin/sh", "-c", `echo "$FOO"; exit 3`)
	require.NoError(t, err)
	assert.Equal(t, "from create\nexit code 3\n", out)

	out, err = execute(t, "piped input", "invoke", "-s", "--", "cat")
	require.NoError(t, err)
	assert.Equal(t, "piped input", out)

	out, err = execute(t, "", "ls")
	require.NoError(t, err)
	assert.Equal(t, name+"\n", out)

	out, err = execute(t, "", "logs", "--tail", "3")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "START RequestId: "), lines[0])
	assert.True(t, strings.HasPrefix(lines[2], "REPORT RequestId: "), lines[2])

	_, err = execute(t, "", "delete")
	require.NoError(t, err)
	assert.Empty(t, sim.Functions())

	_, err = execute(t, "", "delete", name)
	var notFound *api.NotFoundError
	assert.ErrorAs(t, err, &notFound)
	assert.Equal(t, 1, exitCode(err))
}

func TestRun(t *testing.T) {
	sim := setupEnv(t)

	out, err := execute(t, "", "run", "-e", "WHO=run", "/bin/sh", "-c", `echo "$WHO on $LEMMA_INSTANCE"`)
	require.NoError(t, err)

	assert.Regexp(t, `^run on lemma-\d{8}-[0-9a-f]{16}\n$`, out)
	assert.Empty(t, sim.Functions(), "instance must be deleted")
	assert.Equal(t, 1, sim.Calls("CreateFunction"))
	assert.Equal(t, 1, sim.Calls("DeleteFunction"))
}

func TestRunWithoutCommand(t *testing.T) {
	sim := setupEnv(t)

	_, err := execute(t, "", "run")

	assert.ErrorIs(t, err, agent.ErrMissingCommand)
	assert.Equal(t, 2, exitCode(err))
	assert.Zero(t, sim.Calls("CreateFunction"))
}

func TestConfigErrors(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		args  []string
		field string
	}{
		{"missing region", map[string]string{"LEMMA_REGION": ""}, []string{"list"}, "region"},
		{"unknown flag", nil, []string{"list", "--bogus"}, "flags"},
		{"invalid log level", nil, []string{"--log-level", "loud", "list"}, "log-level"},
		{"timeout above limit", nil, []string{"create", "-t", "901"}, "timeout"},
		{"memory below limit", nil, []string{"create", "--memory", "64"}, "memory"},
		{"missing image", map[string]string{"LEMMA_IMAGE": ""}, []string{"create"}, "image"},
		{"missing instance", nil, []string{"delete"}, "name"},
		{"missing logs instance", nil, []string{"logs"}, "name"},
		{"missing url", nil, []string{"invoke", "id"}, "url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := setupEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := execute(t, "", tt.args...)

			var configErr *api.ConfigError
			require.ErrorAs(t, err, &configErr)
			assert.Equal(t, tt.field, configErr.Field)
			assert.Equal(t, 2, exitCode(err))
			assert.Empty(t, sim.Functions())
		})
	}
}

func TestRegionFallback(t *testing.T) {
	setupEnv(t)
	t.Setenv("LEMMA_REGION", "")
	t.Setenv("AWS_DEFAULT_REGION", "eu-west-1")

	out, err := execute(t, "", "list")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "lemma dev\n", out)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 2, exitCode(&api.ConfigError{Field: "x", Message: "y"}))
	assert.Equal(t, 1, exitCode(errors.New("boom")))
	assert.Equal(t, 1, exitCode(&api.TransportError{Err: io.ErrUnexpectedEOF}))
}
