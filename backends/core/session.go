package core

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/dadevel/lemma/agent"
)

// InstanceSpec describes an instance to create. Name and Key are minted by
// the caller, usually with GenerateInstanceName and GenerateSecretKey.
type InstanceSpec struct {
	Name      string
	Key       string
	Image     string
	Role      string
	Env       map[string]string
	MemoryMB  int
	StorageMB int
	Timeout   int // seconds
}

// Provisioner creates and deletes instances.
type Provisioner interface {
	Create(ctx context.Context, spec InstanceSpec) (string, error)
	Delete(ctx context.Context, name string) error
}

// Invoker runs a command on an instance URL and streams its output.
type Invoker interface {
	Invoke(ctx context.Context, url, key string, req agent.Request) (*agent.Stream, error)
}

// RunRequest is the input of Session.Run.
type RunRequest struct {
	Spec    InstanceSpec
	Command []string
	Stdin   io.Reader // nil sends no body
	Timeout int       // per-invocation timeout, 0 selects the instance default
}

const defaultCleanupTimeout = 2 * time.Minute

// Session runs a command on a throwaway instance.
type Session struct {
	instances      Provisioner
	invoker        Invoker
	logger         zerolog.Logger
	CleanupTimeout time.Duration
}

// NewSession creates a session orchestrator.
func NewSession(instances Provisioner, invoker Invoker, logger zerolog.Logger) *Session {
	return &Session{
		instances:      instances,
		invoker:        invoker,
		logger:         logger,
		CleanupTimeout: defaultCleanupTimeout,
	}
}

// Run creates an instance, invokes the command on it while copying output to
// out, and deletes the instance. Deletion happens on every path after a
// successful create, including invocation errors and cancellation of ctx. The
// invocation error is returned together with any cleanup error.
func (s *Session) Run(ctx context.Context, req RunRequest, out io.Writer) (err error) {
	spec := req.Spec
	if spec.Name == "" {
		spec.Name = GenerateInstanceName()
	}
	if spec.Key == "" {
		spec.Key = GenerateSecretKey()
	}
	logger := s.logger.With().Str("instance", spec.Name).Logger()

	url, err := s.instances.Create(ctx, spec)
	if err != nil {
		return err
	}
	logger.Info().Str("url", url).Msg("created instance")

	defer func() {
		logger.Info().Msg("deleting instance")
		// ctx may already be cancelled here
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.CleanupTimeout)
		defer cancel()
		if derr := s.instances.Delete(cleanupCtx, spec.Name); derr != nil {
			logger.Error().Err(derr).Msg("failed to delete instance, remove it with `lemma delete`")
			err = errors.Join(err, derr)
		}
	}()

	logger.Info().Msg("invoking instance")
	stream, err := s.invoker.Invoke(ctx, url, spec.Key, agent.Request{
		Command: req.Command,
		Stdin:   req.Stdin,
		Timeout: req.Timeout,
	})
	if err != nil {
		return err
	}
	defer stream.Close()

	_, err = stream.WriteTo(out)
	return err
}
