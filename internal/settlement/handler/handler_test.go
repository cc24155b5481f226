package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tair/order-settlement/internal/settlement/domain"
)

func TestStatusForCode(t *testing.T) {
	tests := []struct {
		code   string
		status int
	}{
		{domain.CodeValidation, http.StatusBadRequest},
		{domain.CodeSignatureInvalid, http.StatusBadRequest},
		{domain.CodeUnauthorized, http.StatusForbidden},
		{domain.CodeOrderNotFound, http.StatusNotFound},
		{domain.CodePaymentNotFound, http.StatusNotFound},
		{domain.CodeAlreadyCaptured, http.StatusConflict},
		{domain.CodeAuthorizationExpired, http.StatusConflict},
		{domain.CodeRefundExceedsBalance, http.StatusConflict},
		{domain.CodeInvalidTransition, http.StatusConflict},
		{domain.CodeOrderNotPayable, http.StatusConflict},
		{domain.CodeAuthorizationFailed, http.StatusPaymentRequired},
		{domain.CodeChargeFailed, http.StatusPaymentRequired},
		{domain.CodeCaptureFailed, http.StatusPaymentRequired},
		{domain.CodeRefundFailed, http.StatusPaymentRequired},
		{domain.CodeGatewayOutcomeUnknown, http.StatusBadGateway},
		{"something_else", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.status, statusForCode(tt.code))
		})
	}
}
