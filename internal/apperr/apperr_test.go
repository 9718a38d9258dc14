package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusAndCode(t *testing.T) {
	err := NotFound("template instance", "abc")
	assert.Equal(t, http.StatusNotFound, StatusOf(err))
	assert.Equal(t, CodeNotFound, CodeOf(err))
	assert.Contains(t, err.Error(), "abc")

	assert.Equal(t, http.StatusBadRequest, StatusOf(UnknownTemplate("mystery")))
	assert.Equal(t, http.StatusConflict, StatusOf(Conflict(errors.New("dup"))))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(Persistence(errors.New("down"))))
}

func TestUntypedErrorsAreInternal(t *testing.T) {
	err := errors.New("plain")
	assert.Equal(t, http.StatusInternalServerError, StatusOf(err))
	assert.Equal(t, "", CodeOf(err))
}

func TestWrappedErrorsKeepStatus(t *testing.T) {
	inner := NotFound("template instance", "abc")
	wrapped := fmt.Errorf("while customizing: %w", inner)

	assert.Equal(t, http.StatusNotFound, StatusOf(wrapped))
	assert.Equal(t, CodeNotFound, CodeOf(wrapped))
	assert.True(t, errors.Is(wrapped, inner))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("cause")
	err := New(http.StatusConflict, CodeConflict, cause)
	assert.True(t, errors.Is(err, cause))
}
