package agent

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"

	"github.com/dadevel/lemma/api"
)

// HandlerConfig holds the in-instance handler configuration. Both values are
// injected by the lifecycle manager as reserved environment variables.
type HandlerConfig struct {
	APIKey         string
	DefaultTimeout int // seconds
	// Environ is the command environment. Nil inherits the handler's own,
	// which inside an instance already holds the instance variables.
	Environ []string
}

// LoadHandlerConfig reads the handler configuration through getenv.
func LoadHandlerConfig(getenv func(string) string) (HandlerConfig, error) {
	cfg := HandlerConfig{APIKey: getenv(api.EnvAPIKey)}
	if cfg.APIKey == "" {
		return cfg, fmt.Errorf("%s is required", api.EnvAPIKey)
	}
	timeout, err := strconv.Atoi(getenv(api.EnvTimeout))
	if err != nil {
		return cfg, fmt.Errorf("%s must be an integer: %w", api.EnvTimeout, err)
	}
	if timeout <= 0 {
		return cfg, fmt.Errorf("%s must be positive", api.EnvTimeout)
	}
	cfg.DefaultTimeout = timeout
	return cfg, nil
}

// Handler serves function URL invocations inside an instance: it checks the
// bearer key, runs the requested command and streams the combined output back.
type Handler struct {
	config HandlerConfig
	logger zerolog.Logger
}

// NewHandler creates a handler.
func NewHandler(config HandlerConfig, logger zerolog.Logger) *Handler {
	return &Handler{config: config, logger: logger}
}

// Serve handles one function URL request. Failures are reported to the caller
// as HTTP responses, never as Lambda errors.
func (h *Handler) Serve(ctx context.Context, req *events.LambdaFunctionURLRequest) (*events.LambdaFunctionURLStreamingResponse, error) {
	if err := checkBearer(req.Headers, h.config.APIKey); err != nil {
		h.logger.Warn().Str("source", req.RequestContext.HTTP.SourceIP).Msg("rejected unauthenticated request")
		return errorResponse(http.StatusForbidden, "validateAuthentication", err), nil
	}

	spec, err := h.decodeExecSpec(req)
	if err != nil {
		return errorResponse(http.StatusBadRequest, "decodeQueryParams", err), nil
	}

	input, err := decodeBody(req)
	if err != nil {
		return errorResponse(http.StatusInternalServerError, "decodeBody", err), nil
	}

	logger := h.logger.With().Str("request", req.RequestContext.RequestID).Logger()
	logger.Info().Strs("command", spec.Command).Int("timeout", spec.Timeout).Int("stdin", len(input)).Msg("executing command")

	output, err := startCommand(spec.Command, input, h.config.Environ, time.Duration(spec.Timeout)*time.Second, logger)
	if err != nil {
		return errorResponse(http.StatusInternalServerError, "cmd.Start", err), nil
	}

	return &events.LambdaFunctionURLStreamingResponse{
		StatusCode: http.StatusOK,
		Headers: map[string]string{
			"Content-Type": "text/plain",
		},
		Body: output,
	}, nil
}

func (h *Handler) decodeExecSpec(req *events.LambdaFunctionURLRequest) (api.ExecSpec, error) {
	var spec api.ExecSpec
	if err := json.Unmarshal([]byte(req.QueryStringParameters[api.ExecParam]), &spec); err != nil {
		return spec, err
	}
	if spec.Timeout == 0 {
		spec.Timeout = h.config.DefaultTimeout
	} else if spec.Timeout < 0 || spec.Timeout > h.config.DefaultTimeout {
		return spec, errors.New("timeout out of range")
	}
	if len(spec.Command) < 1 {
		return spec, errors.New("command missing")
	}
	return spec, nil
}

func decodeBody(req *events.LambdaFunctionURLRequest) ([]byte, error) {
	if req.IsBase64Encoded {
		return base64.StdEncoding.DecodeString(req.Body)
	}
	return []byte(req.Body), nil
}

func errorResponse(status int, stage string, err error) *events.LambdaFunctionURLStreamingResponse {
	return &events.LambdaFunctionURLStreamingResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type": "text/plain",
		},
		Body: strings.NewReader(fmt.Sprintf("error: %s: %v", stage, err)),
	}
}
