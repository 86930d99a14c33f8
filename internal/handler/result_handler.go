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

type resultService interface {
	GetResult(ctx context.Context, id string, actor models.Actor) (*models.Result, error)
	CompleteGrading(ctx context.Context, id string, actor models.Actor, req dto.GradeRequest) (*models.Order, *models.Result, error)
	EssayComments(ctx context.Context, id string, actor models.Actor) (*models.Order, []models.EssayComment, error)
	UpdateEssayComments(ctx context.Context, id string, actor models.Actor, req dto.EssayCommentsRequest) (*models.Order, []models.EssayComment, error)
}

// ResultHandler exposes grading endpoints keyed by order id.
type ResultHandler struct {
	service resultService
}

// NewResultHandler builds a new handler.
func NewResultHandler(service resultService) *ResultHandler {
	return &ResultHandler{service: service}
}

// Get godoc
// @Summary Get the review result of an order
// @Tags Results
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} response.Envelope
// @Router /results/{id} [get]
func (h *ResultHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	result, err := h.service.GetResult(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Grade godoc
// @Summary Write the grade and complete the order
// @Tags Results
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param payload body dto.GradeRequest true "Grade payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /results/{id} [put]
func (h *ResultHandler) Grade(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.GradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid grade payload"))
		return
	}
	order, result, err := h.service.CompleteGrading(c.Request.Context(), c.Param("id"), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.GradedOrderResponse{Order: dto.NewOrderResponse(order), Result: result}, nil)
}

// Comments godoc
// @Summary List the sentence comments of an essay
// @Tags Results
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} response.Envelope
// @Failure 405 {object} response.Envelope
// @Router /results/{id}/comments [get]
func (h *ResultHandler) Comments(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	order, comments, err := h.service.EssayComments(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewEssayCommentsResponse(order, comments), nil)
}

// UpdateComments godoc
// @Summary Comment on sentences of an essay
// @Tags Results
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param payload body dto.EssayCommentsRequest true "Sentence comments"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /results/{id}/comments [put]
func (h *ResultHandler) UpdateComments(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.EssayCommentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid comment payload"))
		return
	}
	order, comments, err := h.service.UpdateEssayComments(c.Request.Context(), c.Param("id"), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewEssayCommentsResponse(order, comments), nil)
}
