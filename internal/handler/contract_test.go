package handler

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/essay-review-api/internal/models"
	appErrors "github.com/noah-isme/essay-review-api/pkg/errors"
)

func compileContract(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	path, err := filepath.Abs(filepath.Join("..", "..", "api", "contracts", name))
	require.NoError(t, err)
	schema, err := jsonschema.NewCompiler().Compile("file://" + path)
	require.NoError(t, err)
	return schema
}

func requireContract(t *testing.T, schema *jsonschema.Schema, body []byte) {
	t.Helper()
	var payload interface{}
	require.NoError(t, json.Unmarshal(body, &payload))
	require.NoError(t, schema.Validate(payload))
}

func TestOrderContract(t *testing.T) {
	schema := compileContract(t, "order.schema.json")
	teacherID := "teacher-1"
	deadline := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	mockSvc := &orderServiceMock{orderResp: &models.Order{
		ID:          "order-1",
		StudentID:   "student-1",
		TeacherID:   &teacherID,
		Status:      models.OrderStatusAssigned,
		Version:     3,
		EssayTitle:  "Cities",
		EssayTypeID: 1,
		OptionIDs:   []int64{1, 4},
		RushHours:   24,
		TotalPrice:  23,
		Deadline:    &deadline,
		SentAt:      deadline.Add(-24 * time.Hour),
		UpdatedAt:   deadline.Add(-23 * time.Hour),
	}}

	w, c := newOrderContext(http.MethodGet, "/orders/order-1", "", studentClaims)
	c.Params = gin.Params{{Key: "id", Value: "order-1"}}
	NewOrderHandler(mockSvc).Get(c)

	require.Equal(t, http.StatusOK, w.Code)
	requireContract(t, schema, w.Body.Bytes())
}

func TestTeacherStatusContract(t *testing.T) {
	schema := compileContract(t, "teacher_status.schema.json")
	mockSvc := &teacherStatusServiceMock{record: &models.TeacherCapacity{
		TeacherID:   "teacher-1",
		LevelID:     0,
		ActiveCount: 5,
		LastActive:  time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}}

	w, c := newOrderContext(http.MethodGet, "/teachers/status/me", "", teacherClaims)
	NewTeacherStatusHandler(mockSvc).Me(c)

	require.Equal(t, http.StatusOK, w.Code)
	requireContract(t, schema, w.Body.Bytes())
}

func TestErrorContract(t *testing.T) {
	schema := compileContract(t, "error.schema.json")
	mockSvc := &orderServiceMock{err: appErrors.ErrNoCapacity}

	w, c := newOrderContext(http.MethodPost, "/orders/order-1/submit", "", studentClaims)
	c.Params = gin.Params{{Key: "id", Value: "order-1"}}
	NewOrderHandler(mockSvc).Submit(c)

	require.Equal(t, http.StatusRequestTimeout, w.Code)
	requireContract(t, schema, w.Body.Bytes())
}
