package plugctx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostContext_RegisterService(t *testing.T) {
	registered := map[string]any{}
	ctx := NewHostContext("app", func(id string, value any) error {
		registered[id] = value
		return nil
	}, func(id string) (any, error) {
		return registered[id], nil
	})

	require.NoError(t, ctx.RegisterService(42))
	assert.True(t, Registered(ctx))
	assert.Equal(t, 42, registered["app"])
}

func TestHostContext_GetService(t *testing.T) {
	ctx := NewHostContext("app", func(string, any) error { return nil }, func(id string) (any, error) {
		return "svc-" + id, nil
	})

	v, err := ctx.GetService("db")
	require.NoError(t, err)
	assert.Equal(t, "svc-db", v)
}

func TestWorkerContext_RegisterServiceCapturesValue(t *testing.T) {
	ctx := NewWorkerContext("db")
	require.NoError(t, ctx.RegisterService("the-service"))

	v, ok := CapturedService(ctx)
	require.True(t, ok)
	assert.Equal(t, "the-service", v)
	assert.True(t, Registered(ctx))
}

func TestWorkerContext_GetServiceFailsFast(t *testing.T) {
	ctx := NewWorkerContext("db")
	_, err := ctx.GetService("logger")
	require.Error(t, err)
}

func TestWorkerContext_NoRegisterMeansNoCapture(t *testing.T) {
	ctx := NewWorkerContext("db")
	_, ok := CapturedService(ctx)
	assert.False(t, ok)
	assert.False(t, Registered(ctx))
}
