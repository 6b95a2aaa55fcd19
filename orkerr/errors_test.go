package orkerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_MessageIncludesCause(t *testing.T) {
	cause := errors.New("boom")
	err := ConfigInvalid("app", cause)
	assert.Contains(t, err.Error(), "app")
	assert.Contains(t, err.Error(), "boom")
}

func TestError_Is_MatchesByKind(t *testing.T) {
	err := UnknownService("db")
	assert.True(t, errors.Is(err, Sentinel(KindUnknownService)))
	assert.False(t, errors.Is(err, Sentinel(KindDuplicateService)))
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("underlying")
	err := ConfigInvalid("app", cause)
	assert.Same(t, cause, errors.Unwrap(err))
}

func TestCyclicDependency_PathInMessage(t *testing.T) {
	err := CyclicDependency([]string{"x", "y", "x"})
	assert.Contains(t, err.Error(), "x -> y -> x")
}

func TestWithContext_Chains(t *testing.T) {
	err := UnknownService("db").WithContext("extra", "info")
	require.NotNil(t, err.Context)
	assert.Equal(t, "db", err.Context["id"])
	assert.Equal(t, "info", err.Context["extra"])
}
