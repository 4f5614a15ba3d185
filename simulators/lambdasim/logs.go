package lambdasim

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// logStream holds the events of one function. Streams outlive their
// function, like CloudWatch log groups do.
type logStream struct {
	Group  string
	Stream cwLogStream
	Events []cwLogEvent
}

type cwLogStream struct {
	LogStreamName       string `json:"logStreamName"`
	CreationTime        int64  `json:"creationTime"`
	FirstEventTimestamp int64  `json:"firstEventTimestamp,omitempty"`
	LastEventTimestamp  int64  `json:"lastEventTimestamp,omitempty"`
	LastIngestionTime   int64  `json:"lastIngestionTime,omitempty"`
	Arn                 string `json:"arn"`
}

type cwLogEvent struct {
	Timestamp     int64  `json:"timestamp"`
	Message       string `json:"message"`
	IngestionTime int64  `json:"ingestionTime"`
}

// appendLog adds a line to the function's log stream, creating it on first
// use.
func (s *Server) appendLog(function, message string) {
	s.logMu.Lock()
	defer s.logMu.Unlock()
	group := logGroupName(function)
	now := time.Now().UnixMilli()
	event := cwLogEvent{Timestamp: now, Message: message + "\n", IngestionTime: now}

	if s.logs.Update(group, func(ls *logStream) {
		ls.Events = append(ls.Events, event)
		ls.Stream.LastEventTimestamp = now
		ls.Stream.LastIngestionTime = now
	}) {
		return
	}

	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")
	name := fmt.Sprintf("%s/[$LATEST]%s", time.Now().UTC().Format("2006/01/02"), suffix)
	s.logs.Put(group, logStream{
		Group: group,
		Stream: cwLogStream{
			LogStreamName:       name,
			CreationTime:        now,
			FirstEventTimestamp: now,
			LastEventTimestamp:  now,
			LastIngestionTime:   now,
			Arn:                 fmt.Sprintf("arn:aws:logs:%s:%s:log-group:%s:log-stream:%s", defaultRegion, defaultAccount, group, name),
		},
		Events: []cwLogEvent{event},
	})
}

// handleLogs routes CloudWatch Logs JSON requests by X-Amz-Target.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	switch target := r.Header.Get("X-Amz-Target"); target {
	case "Logs_20140328.DescribeLogStreams":
		s.handleDescribeLogStreams(w, r)
	case "Logs_20140328.GetLogEvents":
		s.handleGetLogEvents(w, r)
	case "":
		awsError(w, "MissingAction", http.StatusBadRequest, "X-Amz-Target header is required")
	default:
		awsError(w, "UnknownOperationException", http.StatusBadRequest, "unsupported operation: %s", target)
	}
}

func (s *Server) handleDescribeLogStreams(w http.ResponseWriter, r *http.Request) {
	s.count("DescribeLogStreams")
	var req struct {
		LogGroupName string `json:"logGroupName"`
		OrderBy      string `json:"orderBy"`
		Descending   *bool  `json:"descending"`
		Limit        int    `json:"limit"`
	}
	if err := readJSON(r, &req); err != nil {
		awsError(w, "InvalidParameterException", http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.LogGroupName == "" {
		awsError(w, "InvalidParameterException", http.StatusBadRequest, "logGroupName is required")
		return
	}

	ls, ok := s.logs.Get(req.LogGroupName)
	if !ok {
		awsError(w, "ResourceNotFoundException", http.StatusBadRequest, "The specified log group does not exist.")
		return
	}
	streams := []cwLogStream{ls.Stream}
	desc := req.Descending != nil && *req.Descending
	sort.Slice(streams, func(i, j int) bool {
		if desc {
			return streams[i].LastEventTimestamp > streams[j].LastEventTimestamp
		}
		return streams[i].LastEventTimestamp < streams[j].LastEventTimestamp
	})
	if req.Limit > 0 && len(streams) > req.Limit {
		streams = streams[:req.Limit]
	}
	writeJSON(w, http.StatusOK, map[string]any{"logStreams": streams})
}

// handleGetLogEvents pages through a stream. Tokens carry the offset of the
// next event ("f/N" forward, "b/N" backward). Without a token and with
// startFromHead unset the newest events are returned.
func (s *Server) handleGetLogEvents(w http.ResponseWriter, r *http.Request) {
	s.count("GetLogEvents")
	var req struct {
		LogGroupName  string `json:"logGroupName"`
		LogStreamName string `json:"logStreamName"`
		Limit         int    `json:"limit"`
		StartFromHead *bool  `json:"startFromHead"`
		NextToken     string `json:"nextToken"`
	}
	if err := readJSON(r, &req); err != nil {
		awsError(w, "InvalidParameterException", http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.LogGroupName == "" || req.LogStreamName == "" {
		awsError(w, "InvalidParameterException", http.StatusBadRequest, "logGroupName and logStreamName are required")
		return
	}

	ls, ok := s.logs.Get(req.LogGroupName)
	if !ok || ls.Stream.LogStreamName != req.LogStreamName {
		awsError(w, "ResourceNotFoundException", http.StatusBadRequest, "The specified log stream does not exist.")
		return
	}
	events := ls.Events

	fromHead := req.StartFromHead != nil && *req.StartFromHead
	offset := 0
	if _, n, found := strings.Cut(req.NextToken, "/"); found {
		if v, err := strconv.Atoi(n); err == nil && v >= 0 {
			offset = min(v, len(events))
		}
		fromHead = true
	}
	if !fromHead && req.Limit > 0 && len(events) > req.Limit {
		offset = len(events) - req.Limit
	}

	page := events[offset:]
	if req.Limit > 0 && len(page) > req.Limit {
		page = page[:req.Limit]
	}
	if page == nil {
		page = []cwLogEvent{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events":            page,
		"nextForwardToken":  fmt.Sprintf("f/%d", offset+len(page)),
		"nextBackwardToken": fmt.Sprintf("b/%d", offset),
	})
}
