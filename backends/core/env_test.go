package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestParseEnv(t *testing.T) {
	lookup := lookupFrom(map[string]string{"HOME": "/home/me"})

	env := ParseEnv([]string{"A=1", "B=x=y", "A=2", "HOME", "UNSET", "EMPTY="}, lookup)

	assert.Equal(t, map[string]string{
		"A":     "2",
		"B":     "x=y",
		"HOME":  "/home/me",
		"UNSET": "",
		"EMPTY": "",
	}, env)
}

func TestParseEnvEmpty(t *testing.T) {
	assert.Empty(t, ParseEnv(nil, lookupFrom(nil)))
}

func TestMergeEnvReservedWins(t *testing.T) {
	user := map[string]string{"LEMMA_API_KEY": "mine", "FOO": "bar"}
	reserved := map[string]string{"LEMMA_API_KEY": "minted", "LEMMA_INSTANCE": "lemma-x"}

	merged := MergeEnv(user, reserved)

	assert.Equal(t, map[string]string{
		"LEMMA_API_KEY":  "minted",
		"LEMMA_INSTANCE": "lemma-x",
		"FOO":            "bar",
	}, merged)
	assert.Equal(t, "mine", user["LEMMA_API_KEY"], "inputs must not be modified")
}

func TestFormatEnv(t *testing.T) {
	vars := [][2]string{
		{"LEMMA_INSTANCE", "lemma-20240101-0123456789abcdef"},
		{"LEMMA_URL", "https://abc.lambda-url.eu-central-1.on.aws/"},
	}

	out, err := FormatEnv(vars, false)
	require.NoError(t, err)
	assert.Equal(t, "LEMMA_INSTANCE=lemma-20240101-0123456789abcdef\nLEMMA_URL=https://abc.lambda-url.eu-central-1.on.aws/", out)

	out, err = FormatEnv(vars[:1], true)
	require.NoError(t, err)
	assert.Equal(t, "export LEMMA_INSTANCE=lemma-20240101-0123456789abcdef", out)
}

func TestFormatEnvRejectsInvalidName(t *testing.T) {
	_, err := FormatEnv([][2]string{{"NOT VALID", "x"}}, false)
	assert.Error(t, err)
}

// TestFormatEnvRoundTrip evaluates the output with a POSIX shell interpreter
// and checks every value survives unchanged.
func TestFormatEnvRoundTrip(t *testing.T) {
	vars := [][2]string{
		{"PLAIN", "abc"},
		{"SPACES", "a b  c"},
		{"QUOTES", `it's "quoted"`},
		{"META", "$HOME `id` ; | & *"},
		{"EMPTY", ""},
	}
	script, err := FormatEnv(vars, false)
	require.NoError(t, err)

	file, err := syntax.NewParser(syntax.Variant(syntax.LangPOSIX)).Parse(strings.NewReader(script), "")
	require.NoError(t, err)
	runner, err := interp.New(interp.Env(expand.ListEnviron()))
	require.NoError(t, err)
	require.NoError(t, runner.Run(t.Context(), file))

	for _, kv := range vars {
		assert.Equal(t, kv[1], runner.Vars[kv[0]].String(), kv[0])
	}
}
