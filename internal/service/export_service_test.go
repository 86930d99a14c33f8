package service

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/essay-review-api/internal/models"
	"github.com/noah-isme/essay-review-api/pkg/export"
)

type pdfRendererStub struct {
	doc export.Document
}

func (s *pdfRendererStub) Render(doc export.Document) ([]byte, error) {
	s.doc = doc
	return []byte("%PDF-stub"), nil
}

func TestOrdersCSV(t *testing.T) {
	svc := NewExportService(nil, nil)
	teacherID := "teacher-1"
	deadline := time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)
	body, err := svc.OrdersCSV([]models.Order{{
		ID:         "order-1",
		StudentID:  "student-1",
		TeacherID:  &teacherID,
		Status:     models.OrderStatusAssigned,
		TotalPrice: 23,
		Deadline:   &deadline,
		SentAt:     deadline.Add(-24 * time.Hour),
	}})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Order ID,Student,Teacher,Status,Level,Total,Deadline,Sent", lines[0])
	assert.Contains(t, lines[1], "order-1,student-1,teacher-1,Assigned,0,23.00,2024-03-02T09:00:00Z")
}

func TestReceiptDocument(t *testing.T) {
	pdf := &pdfRendererStub{}
	svc := NewExportService(nil, pdf)
	order := &models.Order{ID: "order-1", EssayTitle: "On tides"}
	receipt := &models.Receipt{ID: "receipt-1", Amount: 18, Refunded: true, ChargedAt: time.Now()}
	options := []models.Option{
		{ID: 1, Kind: models.OptionKindAddon, Name: "Rubric scoring", Price: 5},
		{ID: 4, Kind: models.OptionKindRush, Name: "24", Price: 8, RushHours: 24},
	}

	body, err := svc.Receipt(order, receipt, &models.EssayType{Name: "General Writing", Price: 10}, options)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-stub", string(body))
	require.NotNil(t, pdf.doc.Table)
	assert.Len(t, pdf.doc.Table.Rows, 4)
	assert.Equal(t, "Rush delivery (24h)", pdf.doc.Table.Rows[2]["item"])
	assert.Equal(t, "18.00", pdf.doc.Table.Rows[3]["price"])
	assert.Contains(t, pdf.doc.Fields, export.Field{Label: "Status", Value: "Refunded"})

	_, err = svc.Receipt(order, nil, nil, nil)
	assert.Error(t, err)
}
