package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/essay-review-api/internal/models"
	"github.com/noah-isme/essay-review-api/pkg/export"
)

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(doc export.Document) ([]byte, error)
}

// ExportService renders receipts and order listings.
type ExportService struct {
	csv csvRenderer
	pdf pdfRenderer
}

// NewExportService constructs an ExportService. Nil renderers fall back to the defaults.
func NewExportService(csv csvRenderer, pdf pdfRenderer) *ExportService {
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{csv: csv, pdf: pdf}
}

var orderColumns = []export.Column{
	{Key: "id", Label: "Order ID"},
	{Key: "student_id", Label: "Student"},
	{Key: "teacher_id", Label: "Teacher"},
	{Key: "status", Label: "Status"},
	{Key: "level_id", Label: "Level"},
	{Key: "total_price", Label: "Total"},
	{Key: "deadline", Label: "Deadline"},
	{Key: "sent_at", Label: "Sent"},
}

// OrdersCSV renders a listing of orders.
func (s *ExportService) OrdersCSV(orders []models.Order) ([]byte, error) {
	rows := make([]map[string]string, 0, len(orders))
	for _, o := range orders {
		rows = append(rows, map[string]string{
			"id":          o.ID,
			"student_id":  o.StudentID,
			"teacher_id":  deref(o.TeacherID),
			"status":      o.Status.String(),
			"level_id":    strconv.Itoa(o.LevelID),
			"total_price": money(o.TotalPrice),
			"deadline":    formatTime(o.Deadline),
			"sent_at":     o.SentAt.UTC().Format(time.RFC3339),
		})
	}
	return s.csv.Render(export.Dataset{Columns: orderColumns, Rows: rows})
}

// Receipt renders the payment receipt for an order.
func (s *ExportService) Receipt(order *models.Order, receipt *models.Receipt, essayType *models.EssayType, options []models.Option) ([]byte, error) {
	if order == nil || receipt == nil {
		return nil, fmt.Errorf("receipt requires an order and a payment")
	}

	lines := &export.Dataset{Columns: []export.Column{{Key: "item", Label: "Item"}, {Key: "price", Label: "Price"}}}
	if essayType != nil {
		lines.Rows = append(lines.Rows, map[string]string{"item": essayType.Name, "price": money(essayType.Price)})
	}
	for _, opt := range options {
		name := opt.Name
		if opt.Kind == models.OptionKindRush {
			name = fmt.Sprintf("Rush delivery (%dh)", opt.RushHours)
		}
		lines.Rows = append(lines.Rows, map[string]string{"item": name, "price": money(opt.Price)})
	}
	lines.Rows = append(lines.Rows, map[string]string{"item": "Total", "price": money(receipt.Amount)})

	status := "Paid"
	if receipt.Refunded {
		status = "Refunded"
	}
	return s.pdf.Render(export.Document{
		Title: "Essay Review Receipt",
		Fields: []export.Field{
			{Label: "Receipt", Value: receipt.ID},
			{Label: "Order", Value: order.ID},
			{Label: "Essay", Value: order.EssayTitle},
			{Label: "Charged", Value: receipt.ChargedAt.UTC().Format(time.RFC1123)},
			{Label: "Deadline", Value: formatTime(order.Deadline)},
			{Label: "Status", Value: status},
		},
		Table:  lines,
		Footer: "Generated " + time.Now().UTC().Format(time.RFC3339),
	})
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
