package core

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dadevel/lemma/agent"
	"github.com/dadevel/lemma/api"
)

type fakeProvisioner struct {
	createErr error
	deleteErr error
	created   []InstanceSpec
	deleted   []string
	// deleteCtxErr is the state of the context passed to Delete
	deleteCtxErr error
}

func (f *fakeProvisioner) Create(ctx context.Context, spec InstanceSpec) (string, error) {
	f.created = append(f.created, spec)
	if f.createErr != nil {
		return "", f.createErr
	}
	return "https://" + spec.Name + ".example/", nil
}

func (f *fakeProvisioner) Delete(ctx context.Context, name string) error {
	f.deleted = append(f.deleted, name)
	f.deleteCtxErr = ctx.Err()
	return f.deleteErr
}

type fakeInvoker struct {
	output string
	err    error
	calls  []agent.Request
	urls   []string
	keys   []string
}

func (f *fakeInvoker) Invoke(ctx context.Context, url, key string, req agent.Request) (*agent.Stream, error) {
	f.calls = append(f.calls, req)
	f.urls = append(f.urls, url)
	f.keys = append(f.keys, key)
	if f.err != nil {
		return nil, f.err
	}
	return agent.NewStream(io.NopCloser(strings.NewReader(f.output))), nil
}

func TestSessionRun(t *testing.T) {
	instances := &fakeProvisioner{}
	invoker := &fakeInvoker{output: "hello\n"}
	session := NewSession(instances, invoker, zerolog.Nop())

	var out bytes.Buffer
	err := session.Run(context.Background(), RunRequest{
		Spec:    InstanceSpec{Image: "img", Role: "role", Timeout: 60},
		Command: []string{"echo", "hello"},
		Timeout: 5,
	}, &out)
	require.NoError(t, err)

	assert.Equal(t, "hello\n", out.String())
	require.Len(t, instances.created, 1)
	spec := instances.created[0]
	assert.True(t, strings.HasPrefix(spec.Name, api.NamePrefix))
	assert.Len(t, spec.Key, 64)
	assert.Equal(t, []string{spec.Name}, instances.deleted)

	require.Len(t, invoker.calls, 1)
	assert.Equal(t, []string{"echo", "hello"}, invoker.calls[0].Command)
	assert.Equal(t, 5, invoker.calls[0].Timeout)
	assert.Equal(t, "https://"+spec.Name+".example/", invoker.urls[0])
	assert.Equal(t, spec.Key, invoker.keys[0])
}

func TestSessionRunDeletesAfterInvokeFailure(t *testing.T) {
	instances := &fakeProvisioner{}
	invokeErr := &api.TransportError{StatusCode: 403, Body: "error: validateAuthentication: go away"}
	session := NewSession(instances, &fakeInvoker{err: invokeErr}, zerolog.Nop())

	err := session.Run(context.Background(), RunRequest{Command: []string{"id"}}, io.Discard)

	var transportErr *api.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, 403, transportErr.StatusCode)
	assert.Len(t, instances.deleted, 1)
}

func TestSessionRunSkipsDeleteWhenCreateFails(t *testing.T) {
	createErr := &api.ProvisioningError{Name: "lemma-x", Reason: "image not found"}
	instances := &fakeProvisioner{createErr: createErr}
	invoker := &fakeInvoker{}
	session := NewSession(instances, invoker, zerolog.Nop())

	err := session.Run(context.Background(), RunRequest{Command: []string{"id"}}, io.Discard)

	assert.ErrorIs(t, err, createErr)
	assert.Empty(t, instances.deleted)
	assert.Empty(t, invoker.calls)
}

func TestSessionRunJoinsCleanupError(t *testing.T) {
	invokeErr := errors.New("connection reset")
	deleteErr := errors.New("throttled")
	instances := &fakeProvisioner{deleteErr: deleteErr}
	session := NewSession(instances, &fakeInvoker{err: invokeErr}, zerolog.Nop())

	err := session.Run(context.Background(), RunRequest{Command: []string{"id"}}, io.Discard)

	assert.ErrorIs(t, err, invokeErr)
	assert.ErrorIs(t, err, deleteErr)
}

func TestSessionRunDeletesWithLiveContextAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	instances := &fakeProvisioner{}
	invoker := &fakeInvoker{err: context.Canceled}
	session := NewSession(instances, invoker, zerolog.Nop())

	cancel()
	err := session.Run(ctx, RunRequest{Command: []string{"sleep", "60"}}, io.Discard)

	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, instances.deleted, 1)
	assert.NoError(t, instances.deleteCtxErr, "cleanup must not inherit cancellation")
}

func TestSessionRunKeepsGivenIdentity(t *testing.T) {
	instances := &fakeProvisioner{}
	invoker := &fakeInvoker{}
	session := NewSession(instances, invoker, zerolog.Nop())

	spec := InstanceSpec{Name: "lemma-20240101-0000000000000000", Key: "k"}
	require.NoError(t, session.Run(context.Background(), RunRequest{Spec: spec, Command: []string{"true"}}, io.Discard))

	assert.Equal(t, spec.Name, instances.created[0].Name)
	assert.Equal(t, []string{"k"}, invoker.keys)
}
