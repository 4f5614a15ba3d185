package lambda

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/dadevel/lemma/api"
	core "github.com/dadevel/lemma/backends/core"
)

// Manager drives the lifecycle of lemma instances on a Platform.
type Manager struct {
	platform Platform
	config   Config
	logger   zerolog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewManager creates a lifecycle manager.
func NewManager(platform Platform, config Config, logger zerolog.Logger) *Manager {
	return &Manager{
		platform: platform,
		config:   config,
		logger:   logger,
		sleep:    sleepContext,
	}
}

// Create provisions an instance from spec, waits until it is ready, exposes it
// through a public function URL and returns that URL. Nothing is rolled back
// on failure; a partially created instance can be removed with Delete.
func (m *Manager) Create(ctx context.Context, spec core.InstanceSpec) (string, error) {
	if spec.Image == "" {
		return "", api.Missing("image", "specify --image or set $LEMMA_IMAGE")
	}
	if spec.Role == "" {
		return "", api.Missing("role", "specify --role or set $LEMMA_ROLE")
	}
	if spec.Name == "" || spec.Key == "" {
		return "", &api.ConfigError{Field: "name", Message: "instance name and key must be generated before create"}
	}
	logger := m.logger.With().Str("instance", spec.Name).Logger()

	logger.Info().Str("image", spec.Image).Msg("creating instance")
	err := m.platform.CreateFunction(ctx, FunctionDefinition{
		Name:      spec.Name,
		Role:      spec.Role,
		Image:     spec.Image,
		MemoryMB:  int32(spec.MemoryMB),
		StorageMB: int32(spec.StorageMB),
		Timeout:   int32(spec.Timeout),
		Env: core.MergeEnv(spec.Env, map[string]string{
			api.EnvInstance: spec.Name,
			api.EnvAPIKey:   spec.Key,
			api.EnvTimeout:  strconv.Itoa(spec.Timeout),
		}),
		Tags: core.NewTagSet().AsMap(),
	})
	if err != nil {
		return "", err
	}

	status, err := m.waitReady(ctx, spec.Name, logger)
	if err != nil {
		return "", err
	}
	if status.State == StateFailed {
		return "", &api.ProvisioningError{Name: spec.Name, Reason: status.Reason}
	}

	logger.Info().Msg("creating instance url")
	url, err := m.platform.CreateFunctionURL(ctx, spec.Name)
	if err != nil {
		return "", err
	}

	logger.Info().Msg("assigning instance permissions")
	for _, perm := range urlPermissions {
		if err := m.platform.AddPermission(ctx, spec.Name, perm); err != nil {
			return "", err
		}
	}
	return url, nil
}

// waitReady polls the function until it leaves the Pending state and returns
// the terminal status. It only repeats while the function is pending, never
// on errors.
func (m *Manager) waitReady(ctx context.Context, name string, logger zerolog.Logger) (FunctionStatus, error) {
	if m.config.PollTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.PollTimeout)
		defer cancel()
	}
	for {
		status, err := m.platform.GetFunction(ctx, name)
		if err != nil {
			return status, err
		}
		if status.State != StatePending {
			return status, nil
		}
		logger.Info().Str("reason", status.Reason).Msg("deployment status")
		if err := m.sleep(ctx, m.config.pollInterval()); err != nil {
			return status, fmt.Errorf("waiting for %s to become ready: %w", name, err)
		}
	}
}

// Delete removes an instance. Deleting an unknown instance is an error.
func (m *Manager) Delete(ctx context.Context, name string) error {
	if name == "" {
		return api.Missing("name", "specify positional argument or set $LEMMA_INSTANCE")
	}
	m.logger.Info().Str("instance", name).Msg("deleting instance")
	return m.platform.DeleteFunction(ctx, name)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
