package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/venue-booking/internal/apperr"
	"github.com/iliyamo/venue-booking/internal/model"
)

func TestValidatorReportsEveryField(t *testing.T) {
	v := NewValidator()
	err := v.Validate(&setStatusRequest{
		Reason: string(make([]byte, 501)),
		Lineup: []model.LineupItem{{Name: ""}},
	})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	msg := err.Error()
	assert.Contains(t, msg, "setStatusRequest.Status failed required")
	assert.Contains(t, msg, "setStatusRequest.Reason failed max")
	assert.Contains(t, msg, "setStatusRequest.Lineup[0].Name failed required")

	assert.NoError(t, v.Validate(&setStatusRequest{Status: "Confirmed"}))
}
