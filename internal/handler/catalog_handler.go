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

type catalogService interface {
	Levels(ctx context.Context) ([]models.Level, error)
	Types(ctx context.Context) ([]models.EssayType, error)
	Options(ctx context.Context) ([]models.Option, error)
	Statuses(ctx context.Context) ([]models.StatusRef, error)
	Criteria(ctx context.Context) ([]models.Criterion, error)
	Quote(ctx context.Context, typeID int, optionIDs []int) (*models.Quote, error)
}

// CatalogHandler serves read-only reference data.
type CatalogHandler struct {
	service catalogService
}

// NewCatalogHandler builds a new handler.
func NewCatalogHandler(service catalogService) *CatalogHandler {
	return &CatalogHandler{service: service}
}

// Levels godoc
// @Summary List levels
// @Tags Catalog
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /catalog/levels [get]
func (h *CatalogHandler) Levels(c *gin.Context) {
	items, err := h.service.Levels(c.Request.Context())
	respondList(c, items, err)
}

// Types godoc
// @Summary List essay types
// @Tags Catalog
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /catalog/types [get]
func (h *CatalogHandler) Types(c *gin.Context) {
	items, err := h.service.Types(c.Request.Context())
	respondList(c, items, err)
}

// Options godoc
// @Summary List purchasable options
// @Tags Catalog
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /catalog/options [get]
func (h *CatalogHandler) Options(c *gin.Context) {
	items, err := h.service.Options(c.Request.Context())
	respondList(c, items, err)
}

// Statuses godoc
// @Summary List order statuses
// @Tags Catalog
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /catalog/statuses [get]
func (h *CatalogHandler) Statuses(c *gin.Context) {
	items, err := h.service.Statuses(c.Request.Context())
	respondList(c, items, err)
}

// Criteria godoc
// @Summary List grading criteria
// @Tags Catalog
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /catalog/criteria [get]
func (h *CatalogHandler) Criteria(c *gin.Context) {
	items, err := h.service.Criteria(c.Request.Context())
	respondList(c, items, err)
}

// Quote godoc
// @Summary Price an essay type with options
// @Tags Catalog
// @Accept json
// @Produce json
// @Param payload body dto.QuoteRequest true "Quote payload"
// @Success 200 {object} response.Envelope
// @Router /catalog/quote [post]
func (h *CatalogHandler) Quote(c *gin.Context) {
	var req dto.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid quote payload"))
		return
	}
	quote, err := h.service.Quote(c.Request.Context(), req.EssayTypeID, req.OptionIDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, quote, nil)
}

func respondList(c *gin.Context, items interface{}, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}
