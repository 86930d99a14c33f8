package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/essay-review-api/internal/dto"
	"github.com/noah-isme/essay-review-api/internal/models"
	appErrors "github.com/noah-isme/essay-review-api/pkg/errors"
	"github.com/noah-isme/essay-review-api/pkg/response"
)

type walletService interface {
	Deposit(ctx context.Context, userID string, amount float64) (*models.Wallet, error)
}

// PaymentHandler manages student wallets.
type PaymentHandler struct {
	service walletService
}

// NewPaymentHandler builds a new handler.
func NewPaymentHandler(service walletService) *PaymentHandler {
	return &PaymentHandler{service: service}
}

// Deposit godoc
// @Summary Credit a student's wallet
// @Tags Payments
// @Accept json
// @Produce json
// @Param user_id path string true "User ID"
// @Param payload body dto.DepositRequest true "Deposit payload"
// @Success 200 {object} response.Envelope
// @Router /payments/wallets/{user_id}/deposit [post]
func (h *PaymentHandler) Deposit(c *gin.Context) {
	var req dto.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid deposit payload"))
		return
	}
	wallet, err := h.service.Deposit(c.Request.Context(), c.Param("user_id"), req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, wallet, nil)
}
