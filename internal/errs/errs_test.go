package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodesSurviveWrapping(t *testing.T) {
	err := fmt.Errorf("two-opt: %w", Configuration("multi-depot model (%d depots)", 3))
	require.True(t, Is(err, CodeConfiguration))
	assert.False(t, Is(err, CodeStructural))
	assert.Equal(t, CodeConfiguration, GetCode(err))
	assert.Contains(t, err.Error(), "3 depots")
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(cause, CodeInternal, "evaluate").WithField("route", 2)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 2, err.Fields["route"])
	assert.Equal(t, "[INTERNAL] evaluate: boom", err.Error())
}

func TestUnknownCode(t *testing.T) {
	assert.Equal(t, CodeUnknown, GetCode(errors.New("plain")))
	assert.False(t, Is(nil, CodeStructural))
}
