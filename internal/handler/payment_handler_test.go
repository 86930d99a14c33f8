package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/essay-review-api/internal/models"
)

type walletServiceMock struct {
	lastUser   string
	lastAmount float64
}

func (m *walletServiceMock) Deposit(ctx context.Context, userID string, amount float64) (*models.Wallet, error) {
	m.lastUser = userID
	m.lastAmount = amount
	return &models.Wallet{UserID: userID, Balance: amount}, nil
}

func TestPaymentHandlerDeposit(t *testing.T) {
	mockSvc := &walletServiceMock{}
	handler := NewPaymentHandler(mockSvc)

	w, c := newOrderContext(http.MethodPost, "/payments/wallets/student-1/deposit", `{"amount":25}`, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})
	c.Params = gin.Params{{Key: "user_id", Value: "student-1"}}
	handler.Deposit(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "student-1", mockSvc.lastUser)
	assert.Equal(t, 25.0, mockSvc.lastAmount)
}
