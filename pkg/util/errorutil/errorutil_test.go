package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToDomainErrorKeepsDomainErrors(t *testing.T) {
	orig := NewForbidden("nope")
	wrapped := fmt.Errorf("handler: %w", orig)

	de := ToDomainError(wrapped)
	assert.Equal(t, CodeForbidden, de.Code)
	assert.Equal(t, http.StatusForbidden, de.HTTPStatus)
	assert.True(t, HasCode(wrapped, CodeForbidden))
	assert.False(t, HasCode(wrapped, CodeNotFound))
}

func TestToDomainErrorWrapsUnknown(t *testing.T) {
	cause := errors.New("disk on fire")
	de := ToDomainError(cause)

	assert.Equal(t, CodeInternal, de.Code)
	assert.ErrorIs(t, de, cause)
	assert.Nil(t, ToDomainError(nil))
}

func TestPlatformPermissionUnwraps(t *testing.T) {
	cause := errors.New("403")
	err := NewPlatformPermission("cannot create channels", cause)

	assert.True(t, HasCode(err, CodePlatformPermission))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "cannot create channels")
}
