package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMakeUpperCaseWithUnderscores(t *testing.T) {
	assert.Equal(t, "BAD_REQUEST", MakeUpperCaseWithUnderscores("Bad Request"))
	assert.Equal(t, "NOT_FOUND", MakeUpperCaseWithUnderscores(http.StatusText(http.StatusNotFound)))
}

func TestHTTPError_Is(t *testing.T) {
	err := fmt.Errorf("handler: %w", NewNotFoundError("Item not found", true, nil))

	assert.True(t, errors.Is(err, &HTTPError{}))
	assert.False(t, errors.Is(errors.New("plain"), &HTTPError{}))

	var httpErr *HTTPError
	assert.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusNotFound, httpErr.Status)
	assert.Equal(t, "NOT_FOUND", httpErr.Code)
}

func TestHTTPError_WithMessageCopies(t *testing.T) {
	base := NewInternalServerError()
	custom := base.WithMessage("boom")

	assert.Equal(t, "boom", custom.Message)
	assert.Equal(t, http.StatusText(http.StatusInternalServerError), base.Message)
	assert.Equal(t, base.Status, custom.Status)
}

func TestNewBadRequestError_CustomCode(t *testing.T) {
	code := "ITEM_INVALID"
	err := NewBadRequestError("bad", true, &code, []FieldError{{Field: "email", Error: "is required"}}, nil)

	assert.Equal(t, "ITEM_INVALID", err.Code)
	assert.Equal(t, http.StatusBadRequest, err.Status)
	assert.Len(t, err.Errors, 1)
}

func TestNewTooManyRequestsError(t *testing.T) {
	err := NewTooManyRequestsError("slow down")
	assert.Equal(t, http.StatusTooManyRequests, err.Status)
	if assert.NotNil(t, err.Action) {
		assert.Equal(t, ActionTypeRetry, err.Action.Type)
	}
}
