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

type teacherStatusService interface {
	List(ctx context.Context, levelID *int) ([]models.TeacherCapacity, error)
	Get(ctx context.Context, teacherID string) (*models.TeacherCapacity, error)
	RegisterTeacher(ctx context.Context, req dto.RegisterTeacherRequest) (*models.TeacherCapacity, error)
	HasFreeTeacher(ctx context.Context, levelID int) (bool, error)
}

// TeacherStatusHandler exposes teacher capacity records.
type TeacherStatusHandler struct {
	service teacherStatusService
}

// NewTeacherStatusHandler builds a new handler.
func NewTeacherStatusHandler(service teacherStatusService) *TeacherStatusHandler {
	return &TeacherStatusHandler{service: service}
}

// List godoc
// @Summary List teacher capacity records
// @Tags Teachers
// @Produce json
// @Param level query int false "Level id"
// @Success 200 {object} response.Envelope
// @Router /teachers/status [get]
func (h *TeacherStatusHandler) List(c *gin.Context) {
	level, err := optionalIntQuery(c, "level")
	if err != nil {
		response.Error(c, err)
		return
	}
	items, err := h.service.List(c.Request.Context(), level)
	respondList(c, items, err)
}

// Me godoc
// @Summary Get the caller's capacity record
// @Tags Teachers
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /teachers/status/me [get]
func (h *TeacherStatusHandler) Me(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	record, err := h.service.Get(c.Request.Context(), actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Register godoc
// @Summary Register a teacher at a level
// @Tags Teachers
// @Accept json
// @Produce json
// @Param payload body dto.RegisterTeacherRequest true "Teacher payload"
// @Success 201 {object} response.Envelope
// @Router /teachers/status [post]
func (h *TeacherStatusHandler) Register(c *gin.Context) {
	var req dto.RegisterTeacherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid teacher payload"))
		return
	}
	record, err := h.service.RegisterTeacher(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// Free godoc
// @Summary Report whether a level has a teacher below the active cap
// @Tags Teachers
// @Produce json
// @Param level query int true "Level id"
// @Success 200 {object} response.Envelope
// @Router /teachers/status/free [get]
func (h *TeacherStatusHandler) Free(c *gin.Context) {
	level, err := optionalIntQuery(c, "level")
	if err != nil {
		response.Error(c, err)
		return
	}
	if level == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "level is required"))
		return
	}
	free, err := h.service.HasFreeTeacher(c.Request.Context(), *level)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.FreeTeacherResponse{LevelID: *level, HasFree: free}, nil)
}
