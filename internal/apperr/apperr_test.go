package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeNotFound, CodeOf(NotFound("workflow", "abc")))
	assert.Equal(t, CodeInvalidInput, CodeOf(InvalidInput("amount", "must be positive")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
	assert.Equal(t, Code(""), CodeOf(nil))
}

func TestIsCodeSeesThroughWrapping(t *testing.T) {
	base := NotFound("request", "r1")
	wrapped := fmt.Errorf("loading request: %w", base)
	assert.True(t, IsCode(wrapped, CodeNotFound))
	assert.False(t, IsCode(wrapped, CodeConflict))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, CodeInternal, "notify failed")
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "notify failed")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestMessages(t *testing.T) {
	assert.Contains(t, NotFound("workflow", "w9").Error(), "w9")
	assert.Contains(t, Unauthorized("user 7 may not approve").Error(), "user 7")
	assert.Contains(t, InvalidState("request already completed").Error(), "completed")
}
