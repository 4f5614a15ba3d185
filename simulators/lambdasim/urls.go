package lambdasim

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"maps"
	"net"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"github.com/dadevel/lemma/agent"
)

// FunctionURL is a function URL configuration.
type FunctionURL struct {
	FunctionURL  string `json:"FunctionUrl"`
	FunctionArn  string `json:"FunctionArn"`
	AuthType     string `json:"AuthType"`
	InvokeMode   string `json:"InvokeMode"`
	CreationTime string `json:"CreationTime"`
}

func (s *Server) handleCreateFunctionURL(w http.ResponseWriter, r *http.Request) {
	s.count("CreateFunctionUrlConfig")
	name := r.PathValue("name")
	var req struct {
		AuthType   string `json:"AuthType"`
		InvokeMode string `json:"InvokeMode"`
	}
	if err := readJSON(r, &req); err != nil {
		awsError(w, "InvalidParameterValueException", http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	if req.AuthType == "" {
		awsError(w, "InvalidParameterValueException", http.StatusBadRequest, "AuthType is required")
		return
	}
	if req.InvokeMode == "" {
		req.InvokeMode = "BUFFERED"
	}

	cfg := FunctionURL{
		FunctionURL:  fmt.Sprintf("http://%s/lambda-url/%s/", r.Host, name),
		FunctionArn:  functionArn(name),
		AuthType:     req.AuthType,
		InvokeMode:   req.InvokeMode,
		CreationTime: time.Now().UTC().Format(time.RFC3339),
	}
	exists := false
	ok := s.functions.Update(name, func(f *Function) {
		if f.url != nil {
			exists = true
			return
		}
		f.url = &cfg
	})
	if !ok {
		awsError(w, "ResourceNotFoundException", http.StatusNotFound, "Function not found: %s", functionArn(name))
		return
	}
	if exists {
		awsError(w, "ResourceConflictException", http.StatusConflict, "Failed to create function url config for [functionArn = %s]. Error message: FunctionUrlConfig exists for this Lambda function", functionArn(name))
		return
	}
	writeJSON(w, http.StatusCreated, cfg)
}

// handleInvokeURL plays the function URL frontend: it checks the resource
// policy, converts the HTTP request into a function URL event, runs the
// handler with the function's environment and streams the response.
func (s *Server) handleInvokeURL(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	fn, ok := s.functions.Get(name)
	if !ok || fn.url == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"Message": "Not Found"})
		return
	}
	if fn.url.AuthType == "NONE" && !fn.allowsPublicURL() {
		writeJSON(w, http.StatusForbidden, map[string]string{"Message": "Forbidden"})
		return
	}
	s.count("InvokeFunctionUrl")

	var env map[string]string
	if fn.Environment != nil {
		env = fn.Environment.Variables
	}
	requestID := uuid.NewString()
	s.appendLog(name, fmt.Sprintf("START RequestId: %s Version: %s", requestID, fn.Version))
	start := time.Now()
	defer func() {
		s.appendLog(name, "END RequestId: "+requestID)
		s.appendLog(name, fmt.Sprintf("REPORT RequestId: %s\tDuration: %.2f ms\tMemory Size: %d MB",
			requestID, float64(time.Since(start).Microseconds())/1000, fn.MemorySize))
	}()

	cfg, err := agent.LoadHandlerConfig(func(key string) string { return env[key] })
	if err != nil {
		s.appendLog(name, "init error: "+err.Error())
		writeJSON(w, http.StatusBadGateway, map[string]string{"Message": "Internal Server Error"})
		return
	}
	// commands run on the host, with the function's variables on top
	cfg.Environ = os.Environ()
	for _, key := range slices.Sorted(maps.Keys(env)) {
		cfg.Environ = append(cfg.Environ, key+"="+env[key])
	}

	event, err := newURLRequest(r, requestID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"Message": "Bad Request"})
		return
	}

	logger := s.logger.With().Str("function", name).Str("request", requestID).Logger()
	resp, err := agent.NewHandler(cfg, logger).Serve(r.Context(), event)
	if err != nil {
		s.appendLog(name, "handler error: "+err.Error())
		writeJSON(w, http.StatusBadGateway, map[string]string{"Message": "Internal Server Error"})
		return
	}

	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body == nil {
		return
	}
	if closer, ok := resp.Body.(io.Closer); ok {
		defer closer.Close()
	}
	if err := copyFlushing(w, resp.Body); err != nil {
		logger.Debug().Err(err).Msg("response stream interrupted")
	}
}

// newURLRequest converts r the way the function URL frontend does: header
// names are lowercased, repeated values joined with commas and the body is
// base64 encoded.
func newURLRequest(r *http.Request, requestID string) (*events.LambdaFunctionURLRequest, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	headers := make(map[string]string, len(r.Header))
	for k, vs := range r.Header {
		headers[strings.ToLower(k)] = strings.Join(vs, ",")
	}
	query := make(map[string]string)
	for k, vs := range r.URL.Query() {
		query[k] = strings.Join(vs, ",")
	}
	sourceIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		sourceIP = r.RemoteAddr
	}

	return &events.LambdaFunctionURLRequest{
		Version:               "2.0",
		RawPath:               r.URL.Path,
		RawQueryString:        r.URL.RawQuery,
		Headers:               headers,
		QueryStringParameters: query,
		Body:                  base64.StdEncoding.EncodeToString(body),
		IsBase64Encoded:       true,
		RequestContext: events.LambdaFunctionURLRequestContext{
			RequestID:  requestID,
			DomainName: r.Host,
			TimeEpoch:  time.Now().UnixMilli(),
			HTTP: events.LambdaFunctionURLRequestContextHTTPDescription{
				Method:    r.Method,
				Path:      r.URL.Path,
				Protocol:  r.Proto,
				SourceIP:  sourceIP,
				UserAgent: r.UserAgent(),
			},
		},
	}, nil
}

func copyFlushing(w http.ResponseWriter, body io.Reader) error {
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, 32*1024)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return werr
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
