package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindSurvivesWrapping(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("outer: %w", Internal("storage failure", cause).WithOp("set_status"))

	assert.Equal(t, KindInternal, GetKind(err))
	assert.True(t, Is(err, KindInternal))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "outer: set_status: storage failure", err.Error())
	assert.Equal(t, KindUnknown, GetKind(cause))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindNotFound:             http.StatusNotFound,
		KindForbidden:            http.StatusForbidden,
		KindInvalidTransition:    http.StatusUnprocessableEntity,
		KindReferentialViolation: http.StatusConflict,
		KindConflict:             http.StatusConflict,
		KindValidation:           http.StatusBadRequest,
		KindUnauthorized:         http.StatusUnauthorized,
		KindInternal:             http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, New(kind, "x").HTTPStatus(), kind.String())
	}
}
