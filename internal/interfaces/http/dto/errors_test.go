package dto

import (
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodeTokenExpired, http.StatusUnauthorized},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeAlreadyExists, http.StatusConflict},
		{ErrCodeRateLimited, http.StatusTooManyRequests},
		{ErrCodeTooLarge, http.StatusRequestEntityTooLarge},
		{"ERR_SOMETHING_NEW", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, GetHTTPStatus(tt.code))
		})
	}
}

func TestNormalizeErrorCode(t *testing.T) {
	assert.Equal(t, ErrCodeNotFound, NormalizeErrorCode("NOT_FOUND"))
	assert.Equal(t, ErrCodeInvalidInput, NormalizeErrorCode("INVALID_INPUT"))
	assert.Equal(t, ErrCodeRateLimited, NormalizeErrorCode(ErrCodeRateLimited))
	assert.Equal(t, "CUSTOM", NormalizeErrorCode("CUSTOM"))
}

func TestNewErrorResponses(t *testing.T) {
	resp := NewErrorResponse(ErrCodeNotFound, "gone", "req-1")
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "req-1", resp.Error.RequestID)
	assert.Nil(t, resp.Data)

	resp = NewValidationErrorResponse("bad", "req-2", []ValidationDetail{{Field: "limit", Message: "Must be at most 500"}})
	assert.Equal(t, ErrCodeValidation, resp.Error.Code)
	assert.Len(t, resp.Error.Details, 1)
}

func TestNewListResponse(t *testing.T) {
	resp := NewListResponse([]string{"a", "b"}, 2, 50, 10)
	assert.True(t, resp.Success)
	assert.Equal(t, &Meta{Count: 2, Limit: 50, Offset: 10}, resp.Meta)
}

func TestDealListQuery_Filter(t *testing.T) {
	filter, err := DealListQuery{MinDiscount: "12.5", Brand: "Dell", Limit: 20, Offset: 40}.Filter()
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("12.5").Equal(filter.MinDiscount))
	assert.Equal(t, "Dell", filter.Brand)
	assert.Equal(t, 20, filter.Limit)
	assert.Equal(t, 40, filter.Offset)

	filter, err = DealListQuery{}.Filter()
	require.NoError(t, err)
	assert.True(t, filter.MinDiscount.IsZero())

	_, err = DealListQuery{MinDiscount: "lots"}.Filter()
	assert.Error(t, err)
}
