package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dadevel/lemma/api"
)

// maxErrorBody caps how much of a failed response is kept for the error.
const maxErrorBody = 64 * 1024

// Configuration errors returned by Client.Invoke before any network call.
var (
	ErrMissingURL     = api.Missing("url", "specify --url or set $LEMMA_URL")
	ErrMissingAPIKey  = api.Missing("api key", "specify --api-key or set $LEMMA_API_KEY")
	ErrMissingCommand = api.Missing("command", "specify positional argument(s)")
)

// Request is a single invocation.
type Request struct {
	Command []string
	// Stdin is read in full and sent as the request body. Nil sends no body.
	Stdin io.Reader
	// Timeout in seconds, forwarded to the instance. Zero selects the
	// instance default. It is not enforced client-side.
	Timeout int
}

// Client invokes commands on instance URLs.
type Client struct {
	http   *http.Client
	logger zerolog.Logger
}

// NewClient creates an invocation client. A nil httpClient uses a client
// without an overall timeout, since responses are unbounded streams.
func NewClient(httpClient *http.Client, logger zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{http: httpClient, logger: logger}
}

// Invoke sends req to the instance at rawURL, authenticated with key, and
// returns the response as a stream once the status line arrived. A
// non-success status is returned as *api.TransportError before any output.
func (c *Client) Invoke(ctx context.Context, rawURL, key string, req Request) (*Stream, error) {
	if rawURL == "" {
		return nil, ErrMissingURL
	}
	if key == "" {
		return nil, ErrMissingAPIKey
	}
	if len(req.Command) == 0 {
		return nil, ErrMissingCommand
	}

	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, &api.ConfigError{Field: "url", Message: fmt.Sprintf("invalid url %q: %v", rawURL, err)}
	}
	spec, err := json.Marshal(api.ExecSpec{Command: req.Command, Timeout: req.Timeout})
	if err != nil {
		return nil, err
	}
	query := target.Query()
	query.Set(api.ExecParam, string(spec))
	target.RawQuery = query.Encode()

	var body io.Reader
	if req.Stdin != nil {
		data, err := io.ReadAll(req.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+key)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/octet-stream")
	}

	c.logger.Debug().Str("url", rawURL).Strs("command", req.Command).Msg("invoking")
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &api.TransportError{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &api.TransportError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(msg)),
		}
	}
	return NewStream(resp.Body), nil
}
