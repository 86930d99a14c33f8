package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/essay-review-api/internal/dto"
	"github.com/noah-isme/essay-review-api/internal/models"
	appErrors "github.com/noah-isme/essay-review-api/pkg/errors"
)

type teacherStatusServiceMock struct {
	record       *models.TeacherCapacity
	free         bool
	err          error
	lastTeacher  string
	lastLevel    *int
	lastRegister dto.RegisterTeacherRequest
	freeCalled   bool
}

func (m *teacherStatusServiceMock) List(ctx context.Context, levelID *int) ([]models.TeacherCapacity, error) {
	m.lastLevel = levelID
	return nil, m.err
}

func (m *teacherStatusServiceMock) Get(ctx context.Context, teacherID string) (*models.TeacherCapacity, error) {
	m.lastTeacher = teacherID
	return m.record, m.err
}

func (m *teacherStatusServiceMock) RegisterTeacher(ctx context.Context, req dto.RegisterTeacherRequest) (*models.TeacherCapacity, error) {
	m.lastRegister = req
	return m.record, m.err
}

func (m *teacherStatusServiceMock) HasFreeTeacher(ctx context.Context, levelID int) (bool, error) {
	m.freeCalled = true
	return m.free, m.err
}

func TestTeacherStatusHandlerMe(t *testing.T) {
	mockSvc := &teacherStatusServiceMock{record: &models.TeacherCapacity{TeacherID: "teacher-1", ActiveCount: 2}}
	handler := NewTeacherStatusHandler(mockSvc)

	w, c := newOrderContext(http.MethodGet, "/teachers/status/me", "", teacherClaims)
	handler.Me(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "teacher-1", mockSvc.lastTeacher)
	assert.Contains(t, w.Body.String(), `"active_count":2`)
}

func TestTeacherStatusHandlerRegisterDuplicate(t *testing.T) {
	mockSvc := &teacherStatusServiceMock{err: appErrors.ErrAlreadyExists}
	handler := NewTeacherStatusHandler(mockSvc)

	w, c := newOrderContext(http.MethodPost, "/teachers/status", `{"teacher_id":"teacher-1","level_id":0}`, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})
	handler.Register(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	require.NotNil(t, mockSvc.lastRegister.LevelID)
	assert.Equal(t, 0, *mockSvc.lastRegister.LevelID)
}

func TestTeacherStatusHandlerFree(t *testing.T) {
	mockSvc := &teacherStatusServiceMock{free: true}
	handler := NewTeacherStatusHandler(mockSvc)

	w, c := newOrderContext(http.MethodGet, "/teachers/status/free?level=1", "", studentClaims)
	handler.Free(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"has_free_teacher":true`)
}

func TestTeacherStatusHandlerFreeRequiresLevel(t *testing.T) {
	mockSvc := &teacherStatusServiceMock{}
	handler := NewTeacherStatusHandler(mockSvc)

	w, c := newOrderContext(http.MethodGet, "/teachers/status/free", "", studentClaims)
	handler.Free(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, mockSvc.freeCalled)
}
