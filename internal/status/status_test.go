//go:build !gbcore_debug

package status

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCorruptWrapsSentinel(t *testing.T) {
	err := Corrupt("workspace %s not clear", "mark")
	assert.ErrorIs(t, err, ErrCorruption)
	assert.Contains(t, err.Error(), "workspace mark not clear")
}

func TestAssert(t *testing.T) {
	assert.NoError(t, Assert(true, "fine"))

	err := Assert(false, "double free")
	assert.True(t, errors.Is(err, ErrCorruption))
}
