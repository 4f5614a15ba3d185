package api

import (
	"fmt"
	"net/http"
)

// StatusCoder is implemented by errors that have an associated HTTP status code.
type StatusCoder interface {
	StatusCode() int
}

// ConfigError indicates missing or invalid input. It is never retried and its
// message carries a remediation hint for the user.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}

func (e *ConfigError) StatusCode() int {
	return http.StatusBadRequest
}

// Missing builds a ConfigError for a required value and tells the user where
// it can be supplied.
func Missing(field, hint string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Message: fmt.Sprintf("%s missing, please %s", field, hint),
	}
}

// ProvisioningError indicates the platform reported the instance failed to start.
type ProvisioningError struct {
	Name   string
	Reason string
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("creation of %s failed: %s", e.Name, e.Reason)
}

func (e *ProvisioningError) StatusCode() int {
	return http.StatusBadGateway
}

// TransportError indicates the invocation endpoint answered with a
// non-success status, or the response stream broke mid-way.
type TransportError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invocation stream failed: %v", e.Err)
	}
	if e.Body == "" {
		return fmt.Sprintf("invocation failed with status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("invocation failed with status %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NotFoundError indicates a requested resource was not found.
type NotFoundError struct {
	Resource string
	ID       string
	Err      error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no such %s: %s", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}

func (e *NotFoundError) StatusCode() int {
	return http.StatusNotFound
}
