package lambdasim

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

// Function states.
const (
	StatePending = "Pending"
	StateActive  = "Active"
	StateFailed  = "Failed"
)

// Function is the simulated function configuration.
type Function struct {
	FunctionName     string            `json:"FunctionName"`
	FunctionArn      string            `json:"FunctionArn"`
	Role             string            `json:"Role"`
	PackageType      string            `json:"PackageType"`
	Timeout          int               `json:"Timeout"`
	MemorySize       int               `json:"MemorySize"`
	EphemeralStorage *EphemeralStorage `json:"EphemeralStorage,omitempty"`
	Architectures    []string          `json:"Architectures,omitempty"`
	Environment      *Environment      `json:"Environment,omitempty"`
	LoggingConfig    *LoggingConfig    `json:"LoggingConfig,omitempty"`
	LastModified     string            `json:"LastModified"`
	State            string            `json:"State"`
	StateReason      string            `json:"StateReason,omitempty"`
	Version          string            `json:"Version"`

	imageURI string
	tags     map[string]string
	pending  int
	settleTo string
	url      *FunctionURL
	policy   []Statement
}

// EphemeralStorage is the size of /tmp in MB.
type EphemeralStorage struct {
	Size int `json:"Size"`
}

// Environment holds function environment variables.
type Environment struct {
	Variables map[string]string `json:"Variables"`
}

// LoggingConfig is the function log configuration.
type LoggingConfig struct {
	LogFormat           string `json:"LogFormat,omitempty"`
	ApplicationLogLevel string `json:"ApplicationLogLevel,omitempty"`
	SystemLogLevel      string `json:"SystemLogLevel,omitempty"`
	LogGroup            string `json:"LogGroup,omitempty"`
}

type createFunctionRequest struct {
	FunctionName     string            `json:"FunctionName"`
	Role             string            `json:"Role"`
	PackageType      string            `json:"PackageType"`
	Code             functionCode      `json:"Code"`
	Timeout          int               `json:"Timeout"`
	MemorySize       int               `json:"MemorySize"`
	EphemeralStorage *EphemeralStorage `json:"EphemeralStorage"`
	Architectures    []string          `json:"Architectures"`
	Environment      *Environment      `json:"Environment"`
	LoggingConfig    *LoggingConfig    `json:"LoggingConfig"`
	Publish          bool              `json:"Publish"`
	Tags             map[string]string `json:"Tags"`
}

type functionCode struct {
	ImageURI string `json:"ImageUri"`
}

func newFunction(name, imageURI, settleTo string, pending int) Function {
	state := settleTo
	reason := ""
	if pending > 0 {
		state = StatePending
		reason = "The function is being created."
	}
	return Function{
		FunctionName: name,
		FunctionArn:  functionArn(name),
		PackageType:  "Image",
		Timeout:      3,
		MemorySize:   128,
		LastModified: time.Now().UTC().Format("2006-01-02T15:04:05.000+0000"),
		State:        state,
		StateReason:  reason,
		Version:      "$LATEST",
		imageURI:     imageURI,
		pending:      pending,
		settleTo:     settleTo,
	}
}

func (s *Server) handleCreateFunction(w http.ResponseWriter, r *http.Request) {
	s.count("CreateFunction")
	var req createFunctionRequest
	if err := readJSON(r, &req); err != nil {
		awsError(w, "InvalidParameterValueException", http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	if req.FunctionName == "" {
		awsError(w, "InvalidParameterValueException", http.StatusBadRequest, "FunctionName is required")
		return
	}
	if req.PackageType == "Image" && req.Code.ImageURI == "" {
		awsError(w, "InvalidParameterValueException", http.StatusBadRequest, "ImageUri is required for image functions")
		return
	}
	if _, exists := s.functions.Get(req.FunctionName); exists {
		awsError(w, "ResourceConflictException", http.StatusConflict, "Function already exist: %s", req.FunctionName)
		return
	}

	settleTo := StateActive
	if s.opts.FailReason != "" {
		settleTo = StateFailed
	}
	fn := newFunction(req.FunctionName, req.Code.ImageURI, settleTo, s.opts.PendingPolls)
	if fn.State == StateFailed {
		fn.StateReason = s.opts.FailReason
	}
	fn.Role = req.Role
	if req.PackageType != "" {
		fn.PackageType = req.PackageType
	}
	if req.Timeout > 0 {
		fn.Timeout = req.Timeout
	}
	if req.MemorySize > 0 {
		fn.MemorySize = req.MemorySize
	}
	fn.EphemeralStorage = req.EphemeralStorage
	fn.Architectures = req.Architectures
	fn.Environment = req.Environment
	fn.LoggingConfig = req.LoggingConfig
	if fn.LoggingConfig != nil && fn.LoggingConfig.LogGroup == "" {
		fn.LoggingConfig.LogGroup = logGroupName(req.FunctionName)
	}
	if req.Publish {
		fn.Version = "1"
	}
	fn.tags = req.Tags

	s.functions.Put(req.FunctionName, fn)
	s.logger.Info().Str("function", req.FunctionName).Str("state", fn.State).Msg("function created")
	writeJSON(w, http.StatusCreated, fn)
}

// handleGetFunction returns the function. Each call advances a pending
// function towards its settled state.
func (s *Server) handleGetFunction(w http.ResponseWriter, r *http.Request) {
	s.count("GetFunction")
	name := r.PathValue("name")
	var fn Function
	ok := s.functions.Update(name, func(f *Function) {
		if f.pending > 0 {
			f.pending--
			if f.pending == 0 {
				f.State = f.settleTo
				f.StateReason = ""
				if f.settleTo == StateFailed {
					f.StateReason = s.opts.FailReason
				}
			}
			// the pending answer is the state before this poll
			snapshot := *f
			snapshot.State = StatePending
			snapshot.StateReason = "The function is being created."
			fn = snapshot
			return
		}
		fn = *f
	})
	if !ok {
		awsError(w, "ResourceNotFoundException", http.StatusNotFound, "Function not found: %s", functionArn(name))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"Configuration": fn,
		"Code": map[string]string{
			"RepositoryType": "ECR",
			"ImageUri":       fn.imageURI,
		},
		"Tags": fn.tags,
	})
}

func (s *Server) handleDeleteFunction(w http.ResponseWriter, r *http.Request) {
	s.count("DeleteFunction")
	name := r.PathValue("name")
	if !s.functions.Delete(name) {
		awsError(w, "ResourceNotFoundException", http.StatusNotFound, "Function not found: %s", functionArn(name))
		return
	}
	s.logger.Info().Str("function", name).Msg("function deleted")
	w.WriteHeader(http.StatusNoContent)
}

// handleListFunctions pages through functions in creation order. The marker
// is the index of the first function of the page.
func (s *Server) handleListFunctions(w http.ResponseWriter, r *http.Request) {
	s.count("ListFunctions")
	all := s.functions.List()

	start := 0
	if marker := r.URL.Query().Get("Marker"); marker != "" {
		n, err := strconv.Atoi(marker)
		if err != nil || n < 0 || n > len(all) {
			awsError(w, "InvalidParameterValueException", http.StatusBadRequest, "invalid marker: %s", marker)
			return
		}
		start = n
	}
	size := s.opts.PageSize
	if maxItems := r.URL.Query().Get("MaxItems"); maxItems != "" {
		if n, err := strconv.Atoi(maxItems); err == nil && n > 0 && n < size {
			size = n
		}
	}
	end := min(start+size, len(all))

	resp := struct {
		Functions  []Function `json:"Functions"`
		NextMarker *string    `json:"NextMarker,omitempty"`
	}{Functions: all[start:end]}
	if end < len(all) {
		next := strconv.Itoa(end)
		resp.NextMarker = &next
	}
	writeJSON(w, http.StatusOK, resp)
}

func logGroupName(name string) string {
	return "/aws/lambda/" + name
}

// Statement is a resource policy statement.
type Statement struct {
	Sid       string         `json:"Sid"`
	Effect    string         `json:"Effect"`
	Principal string         `json:"Principal"`
	Action    string         `json:"Action"`
	Resource  string         `json:"Resource"`
	Condition map[string]any `json:"Condition,omitempty"`

	urlAuthType   string
	invokedViaURL bool
}

type addPermissionRequest struct {
	StatementID           string `json:"StatementId"`
	Action                string `json:"Action"`
	Principal             string `json:"Principal"`
	FunctionURLAuthType   string `json:"FunctionUrlAuthType"`
	InvokedViaFunctionURL bool   `json:"InvokedViaFunctionUrl"`
}

func (s *Server) handleAddPermission(w http.ResponseWriter, r *http.Request) {
	s.count("AddPermission")
	name := r.PathValue("name")
	var req addPermissionRequest
	if err := readJSON(r, &req); err != nil {
		awsError(w, "InvalidParameterValueException", http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	if req.StatementID == "" || req.Action == "" || req.Principal == "" {
		awsError(w, "InvalidParameterValueException", http.StatusBadRequest, "StatementId, Action and Principal are required")
		return
	}

	stmt := Statement{
		Sid:           req.StatementID,
		Effect:        "Allow",
		Principal:     req.Principal,
		Action:        req.Action,
		Resource:      functionArn(name),
		urlAuthType:   req.FunctionURLAuthType,
		invokedViaURL: req.InvokedViaFunctionURL,
	}
	switch {
	case req.FunctionURLAuthType != "":
		stmt.Condition = map[string]any{
			"StringEquals": map[string]string{"lambda:FunctionUrlAuthType": req.FunctionURLAuthType},
		}
	case req.InvokedViaFunctionURL:
		stmt.Condition = map[string]any{
			"Bool": map[string]string{"lambda:InvokedViaFunctionUrl": "true"},
		}
	}

	duplicate := false
	ok := s.functions.Update(name, func(f *Function) {
		for _, existing := range f.policy {
			if existing.Sid == stmt.Sid {
				duplicate = true
				return
			}
		}
		f.policy = append(f.policy, stmt)
	})
	if !ok {
		awsError(w, "ResourceNotFoundException", http.StatusNotFound, "Function not found: %s", functionArn(name))
		return
	}
	if duplicate {
		awsError(w, "ResourceConflictException", http.StatusConflict, "The statement id (%s) provided already exists", stmt.Sid)
		return
	}

	raw, _ := json.Marshal(stmt)
	writeJSON(w, http.StatusCreated, map[string]string{"Statement": string(raw)})
}

// allowsPublicURL reports whether the policy lets anyone invoke the function
// through its URL without IAM authentication. That takes two grants: calling
// the URL, and invoking the function when the call arrives via the URL.
func (f *Function) allowsPublicURL() bool {
	var callURL, invoke bool
	for _, stmt := range f.policy {
		if stmt.Effect != "Allow" || stmt.Principal != "*" {
			continue
		}
		switch stmt.Action {
		case "lambda:InvokeFunctionUrl":
			callURL = callURL || stmt.urlAuthType == "" || stmt.urlAuthType == "NONE"
		case "lambda:InvokeFunction":
			invoke = true
		}
	}
	return callURL && invoke
}
