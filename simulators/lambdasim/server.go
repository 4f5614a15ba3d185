// Package lambdasim simulates the parts of AWS Lambda and CloudWatch Logs
// that lemma uses: function CRUD with pending states and pagination,
// function URLs, resource policies and log retrieval. Function URLs run the
// in-instance handler locally, so commands execute on the host.
package lambdasim

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog"
)

const (
	defaultRegion   = "us-east-1"
	defaultAccount  = "123456789012"
	defaultPageSize = 50
)

// Options control simulated platform behavior.
type Options struct {
	// PendingPolls is the number of GetFunction calls answered with Pending
	// before a new function settles.
	PendingPolls int
	// FailReason, when set, makes new functions settle in Failed with this
	// reason instead of Active.
	FailReason string
	// PageSize caps ListFunctions pages when the caller sends no MaxItems.
	PageSize int
}

// Server is an http.Handler implementing the simulated APIs.
type Server struct {
	opts      Options
	mux       *http.ServeMux
	logger    zerolog.Logger
	functions *StateStore[Function]
	logs      *StateStore[logStream]
	logMu     sync.Mutex // serializes appendLog

	callsMu sync.Mutex
	calls   map[string]int
}

// New creates a simulator.
func New(opts Options, logger zerolog.Logger) *Server {
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	s := &Server{
		opts:      opts,
		mux:       http.NewServeMux(),
		logger:    logger,
		functions: NewStateStore[Function](),
		logs:      NewStateStore[logStream](),
		calls:     make(map[string]int),
	}

	s.mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	s.mux.HandleFunc("POST /2015-03-31/functions", s.handleCreateFunction)
	s.mux.HandleFunc("GET /2015-03-31/functions/{name}", s.handleGetFunction)
	s.mux.HandleFunc("DELETE /2015-03-31/functions/{name}", s.handleDeleteFunction)
	s.mux.HandleFunc("GET /2015-03-31/functions", s.handleListFunctions)
	s.mux.HandleFunc("GET /2015-03-31/functions/{$}", s.handleListFunctions)
	s.mux.HandleFunc("POST /2021-10-31/functions/{name}/url", s.handleCreateFunctionURL)
	s.mux.HandleFunc("POST /2015-03-31/functions/{name}/policy", s.handleAddPermission)
	s.mux.HandleFunc("POST /lambda-url/{name}/", s.handleInvokeURL)
	s.mux.HandleFunc("POST /{$}", s.handleLogs)

	return s
}

// ServeHTTP dispatches to the simulated APIs.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.logger.Debug().Str("method", r.Method).Str("path", r.URL.Path).Msg("request")
	s.mux.ServeHTTP(w, r)
}

// Calls returns how often an operation was called, e.g. "GetFunction".
func (s *Server) Calls(op string) int {
	s.callsMu.Lock()
	defer s.callsMu.Unlock()
	return s.calls[op]
}

func (s *Server) count(op string) {
	s.callsMu.Lock()
	defer s.callsMu.Unlock()
	s.calls[op]++
}

// AddFunction registers an Active function without a URL, for example one
// owned by another tool.
func (s *Server) AddFunction(name string) {
	s.functions.Put(name, newFunction(name, "", StateActive, 0))
}

// Functions returns the names of all functions in creation order.
func (s *Server) Functions() []string {
	var names []string
	for _, fn := range s.functions.List() {
		names = append(names, fn.FunctionName)
	}
	return names
}

// PolicyStatements returns the statement ids granted on a function, in the
// order they were added.
func (s *Server) PolicyStatements(name string) []string {
	fn, ok := s.functions.Get(name)
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(fn.policy))
	for _, stmt := range fn.policy {
		ids = append(ids, stmt.Sid)
	}
	return ids
}

// PublicURL reports whether the function's URL can be called without IAM
// authentication.
func (s *Server) PublicURL(name string) bool {
	fn, ok := s.functions.Get(name)
	return ok && fn.url != nil && fn.url.AuthType == "NONE" && fn.allowsPublicURL()
}

func functionArn(name string) string {
	return fmt.Sprintf("arn:aws:lambda:%s:%s:function:%s", defaultRegion, defaultAccount, name)
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// awsError writes an AWS-style JSON error response.
func awsError(w http.ResponseWriter, code string, statusCode int, format string, args ...any) {
	w.Header().Set("Content-Type", "application/x-amz-json-1.1")
	w.Header().Set("X-Amzn-Errortype", code)
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"__type":  code,
		"message": fmt.Sprintf(format, args...),
	})
}
