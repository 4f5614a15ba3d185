package agent

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dadevel/lemma/api"
)

const testKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func newTestHandler() *Handler {
	return NewHandler(HandlerConfig{APIKey: testKey, DefaultTimeout: 10}, testLogger())
}

func urlRequest(t *testing.T, auth string, spec any, body []byte) *events.LambdaFunctionURLRequest {
	t.Helper()
	query := map[string]string{}
	if spec != nil {
		raw, err := json.Marshal(spec)
		require.NoError(t, err)
		query[api.ExecParam] = string(raw)
	}
	headers := map[string]string{}
	if auth != "" {
		headers["authorization"] = auth
	}
	return &events.LambdaFunctionURLRequest{
		Headers:               headers,
		QueryStringParameters: query,
		Body:                  base64.StdEncoding.EncodeToString(body),
		IsBase64Encoded:       true,
	}
}

func serve(t *testing.T, h *Handler, req *events.LambdaFunctionURLRequest) (int, string) {
	t.Helper()
	resp, err := h.Serve(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "text/plain", resp.Headers["Content-Type"])
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestHandlerRunsCommand(t *testing.T) {
	req := urlRequest(t, "Bearer "+testKey, api.ExecSpec{Command: []string{"/bin/sh", "-c", "echo hi; echo oops >&2; exit 4"}}, nil)

	status, body := serve(t, newTestHandler(), req)

	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "hi\n")
	assert.Contains(t, body, "oops\n")
	assert.Contains(t, body, "exit code 4\n")
}

func TestHandlerForwardsBodyAsStdin(t *testing.T) {
	req := urlRequest(t, "Bearer "+testKey, api.ExecSpec{Command: []string{"cat"}}, []byte("from stdin"))

	status, body := serve(t, newTestHandler(), req)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "from stdin", body)
}

func TestHandlerPlainBody(t *testing.T) {
	req := urlRequest(t, "Bearer "+testKey, api.ExecSpec{Command: []string{"cat"}}, nil)
	req.Body = "plain"
	req.IsBase64Encoded = false

	_, body := serve(t, newTestHandler(), req)

	assert.Equal(t, "plain", body)
}

func TestHandlerAuthentication(t *testing.T) {
	spec := api.ExecSpec{Command: []string{"true"}}
	tests := []struct {
		name   string
		auth   string
		status int
	}{
		{"missing header", "", http.StatusForbidden},
		{"wrong key", "Bearer nope", http.StatusForbidden},
		{"missing scheme", testKey, http.StatusForbidden},
		{"case insensitive scheme", "BEARER " + testKey, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := serve(t, newTestHandler(), urlRequest(t, tt.auth, spec, nil))
			assert.Equal(t, tt.status, status)
			if tt.status == http.StatusForbidden {
				assert.Equal(t, "error: validateAuthentication: go away", body)
			}
		})
	}
}

func TestHandlerRejectsBadRequests(t *testing.T) {
	tests := []struct {
		name string
		spec any
		want string
	}{
		{"missing exec", nil, "error: decodeQueryParams: "},
		{"empty command", api.ExecSpec{}, "error: decodeQueryParams: command missing"},
		{"negative timeout", api.ExecSpec{Command: []string{"true"}, Timeout: -1}, "error: decodeQueryParams: timeout out of range"},
		{"timeout above default", api.ExecSpec{Command: []string{"true"}, Timeout: 11}, "error: decodeQueryParams: timeout out of range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := serve(t, newTestHandler(), urlRequest(t, "bearer "+testKey, tt.spec, nil))
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Contains(t, body, tt.want)
		})
	}
}

func TestHandlerInvalidBase64(t *testing.T) {
	req := urlRequest(t, "bearer "+testKey, api.ExecSpec{Command: []string{"true"}}, nil)
	req.Body = "!!not base64!!"

	status, body := serve(t, newTestHandler(), req)

	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Contains(t, body, "error: decodeBody: ")
}

func TestHandlerStartFailure(t *testing.T) {
	req := urlRequest(t, "bearer "+testKey, api.ExecSpec{Command: []string{"/nonexistent/binary"}}, nil)

	status, body := serve(t, newTestHandler(), req)

	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Contains(t, body, "error: cmd.Start: ")
}

func TestLoadHandlerConfig(t *testing.T) {
	env := map[string]string{api.EnvAPIKey: "k", api.EnvTimeout: "300"}
	getenv := func(key string) string { return env[key] }

	cfg, err := LoadHandlerConfig(getenv)
	require.NoError(t, err)
	assert.Equal(t, HandlerConfig{APIKey: "k", DefaultTimeout: 300}, cfg)

	env[api.EnvTimeout] = "soon"
	_, err = LoadHandlerConfig(getenv)
	assert.Error(t, err)

	env[api.EnvTimeout] = "0"
	_, err = LoadHandlerConfig(getenv)
	assert.Error(t, err)

	delete(env, api.EnvAPIKey)
	env[api.EnvTimeout] = "300"
	_, err = LoadHandlerConfig(getenv)
	assert.ErrorContains(t, err, api.EnvAPIKey)
}
