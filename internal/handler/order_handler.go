package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/essay-review-api/internal/dto"
	"github.com/noah-isme/essay-review-api/internal/models"
	appErrors "github.com/noah-isme/essay-review-api/pkg/errors"
	"github.com/noah-isme/essay-review-api/pkg/response"
)

type orderService interface {
	CreateOrder(ctx context.Context, actor models.Actor, req dto.CreateOrderRequest) (*models.Order, error)
	UpdateDraft(ctx context.Context, id string, actor models.Actor, req dto.UpdateOrderRequest) (*models.Order, error)
	SubmitForReview(ctx context.Context, id string, actor models.Actor) (*models.Order, error)
	AssignTeacher(ctx context.Context, id, teacherID string, actor models.Actor) (*models.Order, error)
	CancelOrder(ctx context.Context, id string, actor models.Actor) (*models.Order, error)
	Get(ctx context.Context, id string, actor models.Actor) (*models.Order, error)
	List(ctx context.Context, actor models.Actor, query dto.OrderQuery) ([]models.Order, *models.Pagination, error)
	ListWaiting(ctx context.Context, actor models.Actor, levelID *int) ([]models.Order, error)
	Receipt(ctx context.Context, id string, actor models.Actor) ([]byte, string, error)
	ExportCSV(ctx context.Context, actor models.Actor, query dto.OrderQuery) ([]byte, error)
	DeadlineSummary(ctx context.Context, actor models.Actor) (*models.DeadlineSummary, error)
}

// OrderHandler exposes the order lifecycle endpoints.
type OrderHandler struct {
	service orderService
}

// NewOrderHandler builds a new handler.
func NewOrderHandler(service orderService) *OrderHandler {
	return &OrderHandler{service: service}
}

// Create godoc
// @Summary Create a draft order
// @Tags Orders
// @Accept json
// @Produce json
// @Param payload body dto.CreateOrderRequest true "Order payload"
// @Success 201 {object} response.Envelope
// @Router /orders [post]
func (h *OrderHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid order payload"))
		return
	}
	order, err := h.service.CreateOrder(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewOrderResponse(order))
}

// List godoc
// @Summary List orders visible to the caller
// @Tags Orders
// @Produce json
// @Param status query int false "Status id"
// @Param level query int false "Level id"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /orders [get]
func (h *OrderHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	query, ok := bindOrderQuery(c)
	if !ok {
		return
	}
	orders, pagination, err := h.service.List(c.Request.Context(), actor, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewOrderResponses(orders), pagination)
}

// Waiting godoc
// @Summary List orders waiting for a teacher
// @Tags Orders
// @Produce json
// @Param level query int false "Level id (admin only)"
// @Success 200 {object} response.Envelope
// @Router /orders/waiting [get]
func (h *OrderHandler) Waiting(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	level, err := optionalIntQuery(c, "level")
	if err != nil {
		response.Error(c, err)
		return
	}
	orders, err := h.service.ListWaiting(c.Request.Context(), actor, level)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewOrderResponses(orders), nil)
}

// Deadlines godoc
// @Summary Count open orders due today, this week and in total
// @Tags Orders
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /orders/deadlines [get]
func (h *OrderHandler) Deadlines(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	summary, err := h.service.DeadlineSummary(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Get godoc
// @Summary Get an order
// @Tags Orders
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} response.Envelope
// @Router /orders/{id} [get]
func (h *OrderHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	order, err := h.service.Get(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewOrderResponse(order), nil)
}

// Update godoc
// @Summary Edit a draft order
// @Tags Orders
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param payload body dto.UpdateOrderRequest true "Draft payload"
// @Success 200 {object} response.Envelope
// @Router /orders/{id} [put]
func (h *OrderHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.UpdateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid order payload"))
		return
	}
	order, err := h.service.UpdateDraft(c.Request.Context(), c.Param("id"), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewOrderResponse(order), nil)
}

// Submit godoc
// @Summary Pay for a draft and send it for review
// @Tags Orders
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} response.Envelope
// @Failure 402 {object} response.Envelope
// @Failure 408 {object} response.Envelope
// @Router /orders/{id}/submit [post]
func (h *OrderHandler) Submit(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	order, err := h.service.SubmitForReview(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewOrderResponse(order), nil)
}

// Assign godoc
// @Summary Bind a waiting order to a teacher
// @Tags Orders
// @Produce json
// @Param id path string true "Order ID"
// @Param teacher_id query string false "Teacher ID (admin only)"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /orders/{id}/assign [post]
func (h *OrderHandler) Assign(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	order, err := h.service.AssignTeacher(c.Request.Context(), c.Param("id"), c.Query("teacher_id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewOrderResponse(order), nil)
}

// Cancel godoc
// @Summary Cancel an order
// @Description Drafts toggle their disabled flag; waiting and assigned orders expire.
// @Tags Orders
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} response.Envelope
// @Router /orders/{id}/cancel [post]
func (h *OrderHandler) Cancel(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	order, err := h.service.CancelOrder(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewOrderResponse(order), nil)
}

// Receipt godoc
// @Summary Download the payment receipt
// @Tags Orders
// @Produce application/pdf
// @Param id path string true "Order ID"
// @Success 200 {file} file
// @Router /orders/{id}/receipt [get]
func (h *OrderHandler) Receipt(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	body, filename, err := h.service.Receipt(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, filename, "application/pdf", body)
}

// Export godoc
// @Summary Export orders as CSV
// @Tags Orders
// @Produce text/csv
// @Param status query int false "Status id"
// @Param level query int false "Level id"
// @Success 200 {file} file
// @Router /orders/export [get]
func (h *OrderHandler) Export(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	query, ok := bindOrderQuery(c)
	if !ok {
		return
	}
	body, err := h.service.ExportCSV(c.Request.Context(), actor, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := "orders-" + time.Now().UTC().Format("20060102") + ".csv"
	response.Attachment(c, filename, "text/csv", body)
}

func bindOrderQuery(c *gin.Context) (dto.OrderQuery, bool) {
	var query dto.OrderQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return query, false
	}
	return query, true
}
