package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/microcosm-cc/bluemonday"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/noah-isme/essay-review-api/internal/dto"
	"github.com/noah-isme/essay-review-api/internal/models"
	"github.com/noah-isme/essay-review-api/internal/repository"
	appErrors "github.com/noah-isme/essay-review-api/pkg/errors"
	"github.com/noah-isme/essay-review-api/pkg/events"
)

const (
	defaultOrderPageSize = 20
	maxOrderPageSize     = 100
	maxRefreshAttempts   = 3
	systemActor          = "system"
)

type orderStore interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	List(ctx context.Context, filter models.OrderFilter) ([]models.Order, int, error)
	UpdateDraft(ctx context.Context, id string, fromVersion int, changes models.DraftChanges, updatedBy string, at time.Time) (*models.Order, error)
	Transition(ctx context.Context, t models.Transition) (*models.Order, error)
}

type orderCatalog interface {
	Quote(ctx context.Context, typeID int, optionIDs []int) (*models.Quote, error)
	TypeByID(ctx context.Context, id int) (*models.EssayType, error)
	OptionsByIDs(ctx context.Context, ids []int) ([]models.Option, error)
}

type capacityGate interface {
	HasFreeTeacher(ctx context.Context, levelID int) (bool, error)
	Teacher(ctx context.Context, teacherID string) (*models.TeacherCapacity, error)
	MaxActive() int
	Invalidate(ctx context.Context, levelID int)
}

type paymentGate interface {
	Charge(ctx context.Context, studentID, orderID string, amount float64) (*models.Receipt, error)
	Refund(ctx context.Context, receipt *models.Receipt) error
	Latest(ctx context.Context, orderID string) (*models.Receipt, error)
}

type gradingStore interface {
	EnsureResult(ctx context.Context, order *models.Order) (*models.Result, error)
	WriteGrade(ctx context.Context, order *models.Order, input models.GradeInput) (*models.Result, error)
	EnsureComments(ctx context.Context, order *models.Order) ([]models.EssayComment, error)
	WriteComments(ctx context.Context, order *models.Order, inputs []models.EssayCommentInput) ([]models.EssayComment, error)
}

type analysisScheduler interface {
	Enqueue(order *models.Order)
}

type orderExporter interface {
	OrdersCSV(orders []models.Order) ([]byte, error)
	Receipt(order *models.Order, receipt *models.Receipt, essayType *models.EssayType, options []models.Option) ([]byte, error)
}

// OrderServiceDeps bundles the collaborators of OrderService.
type OrderServiceDeps struct {
	Store     orderStore
	Catalog   orderCatalog
	Capacity  capacityGate
	Payments  paymentGate
	Results   gradingStore
	Analysis  analysisScheduler
	Exporter  orderExporter
	Publisher events.Publisher
	Deadlines DeadlinePolicy
	Metrics   *MetricsService
	Logger    *zap.Logger
}

// OrderService drives the order state machine.
type OrderService struct {
	store     orderStore
	catalog   orderCatalog
	capacity  capacityGate
	payments  paymentGate
	results   gradingStore
	analysis  analysisScheduler
	exporter  orderExporter
	publisher events.Publisher
	deadlines DeadlinePolicy
	metrics   *MetricsService
	validator *validator.Validate
	title     *bluemonday.Policy
	body      *bluemonday.Policy
	logger    *zap.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewOrderService constructs the order lifecycle service.
func NewOrderService(deps OrderServiceDeps) *OrderService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Publisher == nil {
		deps.Publisher = events.NopPublisher{}
	}
	if deps.Exporter == nil {
		deps.Exporter = NewExportService(nil, nil)
	}
	if deps.Deadlines == (DeadlinePolicy{}) {
		deps.Deadlines = NewDeadlinePolicy(0, 0)
	}
	return &OrderService{
		store:     deps.Store,
		catalog:   deps.Catalog,
		capacity:  deps.Capacity,
		payments:  deps.Payments,
		results:   deps.Results,
		analysis:  deps.Analysis,
		exporter:  deps.Exporter,
		publisher: deps.Publisher,
		deadlines: deps.Deadlines,
		metrics:   deps.Metrics,
		validator: validator.New(),
		title:     bluemonday.StrictPolicy(),
		body:      bluemonday.UGCPolicy(),
		logger:    deps.Logger,
		tracer:    otel.Tracer("github.com/noah-isme/essay-review-api/internal/service/order"),
		now:       time.Now,
	}
}

// CreateOrder stores a new draft for the calling student.
func (s *OrderService) CreateOrder(ctx context.Context, actor models.Actor, req dto.CreateOrderRequest) (*models.Order, error) {
	if actor.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can create orders")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid order payload")
	}
	title, content, err := s.cleanEssay(req.EssayTitle, req.EssayContent)
	if err != nil {
		return nil, err
	}
	quote, err := s.catalog.Quote(ctx, req.EssayTypeID, req.OptionIDs)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	order := &models.Order{
		ID:           uuid.NewString(),
		StudentID:    actor.ID,
		Status:       models.OrderStatusDraft,
		Version:      1,
		EssayTitle:   title,
		EssayContent: content,
		EssayTypeID:  quote.Type.ID,
		LevelID:      quote.Type.LevelID,
		OptionIDs:    toInt64Array(req.OptionIDs),
		RushHours:    quote.RushHours,
		TotalPrice:   quote.TotalPrice,
		SentAt:       now,
		UpdatedAt:    now,
		UpdatedBy:    actor.ID,
	}
	if err := s.store.Create(ctx, order); err != nil {
		return nil, appErrors.Internal(err, "failed to create order")
	}
	s.logger.Info("order drafted", zap.String("order_id", order.ID), zap.String("student_id", actor.ID), zap.Float64("total_price", order.TotalPrice))
	return order, nil
}

// cleanEssay strips markup from the title and unsafe markup from the body.
func (s *OrderService) cleanEssay(title, content string) (string, string, error) {
	title = strings.TrimSpace(s.title.Sanitize(title))
	content = strings.TrimSpace(s.body.Sanitize(content))
	if title == "" || content == "" {
		return "", "", appErrors.Clone(appErrors.ErrValidation, "essay title and content must contain text")
	}
	return title, content, nil
}

// UpdateDraft edits a draft and recomputes its price.
func (s *OrderService) UpdateDraft(ctx context.Context, id string, actor models.Actor, req dto.UpdateOrderRequest) (*models.Order, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid order payload")
	}
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.StudentID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the owner can edit an order")
	}
	if order.Status != models.OrderStatusDraft {
		return nil, appErrors.Clone(appErrors.ErrWrongState, "only drafts can be edited")
	}
	if order.Version != req.Version {
		return nil, s.conflict()
	}

	title, content, err := s.cleanEssay(req.EssayTitle, req.EssayContent)
	if err != nil {
		return nil, err
	}
	quote, err := s.catalog.Quote(ctx, req.EssayTypeID, req.OptionIDs)
	if err != nil {
		return nil, err
	}
	changes := models.DraftChanges{
		EssayTitle:   title,
		EssayContent: content,
		EssayTypeID:  quote.Type.ID,
		LevelID:      quote.Type.LevelID,
		OptionIDs:    toInt64Array(req.OptionIDs),
		RushHours:    quote.RushHours,
		TotalPrice:   quote.TotalPrice,
	}
	updated, err := s.store.UpdateDraft(ctx, id, req.Version, changes, actor.ID, s.now().UTC())
	if err != nil {
		return nil, s.storeError(err, "failed to update order")
	}
	return updated, nil
}

// SubmitForReview charges the student and moves the draft into the matching pool.
func (s *OrderService) SubmitForReview(ctx context.Context, id string, actor models.Actor) (order *models.Order, err error) {
	ctx, span := s.startSpan(ctx, "order.submit", id, actor)
	defer func() { endSpan(span, err) }()

	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.StudentID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the owner can submit an order")
	}
	if current.Status != models.OrderStatusDraft {
		return nil, appErrors.Clone(appErrors.ErrWrongState, "only drafts can be submitted")
	}
	if current.IsDisabled {
		return nil, appErrors.Clone(appErrors.ErrWrongState, "order is cancelled")
	}

	free, err := s.capacity.HasFreeTeacher(ctx, current.LevelID)
	if err != nil {
		return nil, err
	}
	if !free {
		s.metrics.RecordRejection("no_capacity")
		s.logger.Info("submission rejected", zap.String("order_id", id), zap.Int("level_id", current.LevelID))
		return nil, appErrors.ErrNoCapacity
	}

	receipt, err := s.payments.Charge(ctx, current.StudentID, current.ID, current.TotalPrice)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	deadline := s.deadlines.ComputeDeadline(now, current.RushHours)
	updated, err := s.transition(ctx, current, models.Transition{
		ToStatus:  models.OrderStatusWaiting,
		Deadline:  &deadline,
		SentAt:    &now,
		UpdatedBy: actor.ID,
		At:        now,
	}, "submitted")
	if err != nil {
		if refundErr := s.payments.Refund(ctx, receipt); refundErr != nil {
			s.logger.Error("refund after failed submission", zap.String("order_id", id), zap.String("receipt_id", receipt.ID), zap.Error(refundErr))
		}
		return nil, s.storeError(err, "failed to submit order")
	}

	if s.analysis != nil {
		s.analysis.Enqueue(updated)
	}
	span.SetAttributes(attribute.String("order.deadline", deadline.Format(time.RFC3339)))
	return updated, nil
}

// AssignTeacher binds a teacher to a waiting order. Teachers claim for themselves;
// admins must name the teacher.
func (s *OrderService) AssignTeacher(ctx context.Context, id, teacherID string, actor models.Actor) (order *models.Order, err error) {
	ctx, span := s.startSpan(ctx, "order.assign", id, actor)
	defer func() { endSpan(span, err) }()

	switch actor.Role {
	case models.RoleTeacher:
		if teacherID != "" && teacherID != actor.ID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "teachers can only claim orders for themselves")
		}
		teacherID = actor.ID
	case models.RoleAdmin:
		if teacherID == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "teacher_id is required")
		}
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers or admins can assign orders")
	}
	span.SetAttributes(attribute.String("order.teacher_id", teacherID))

	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	switch current.Status {
	case models.OrderStatusWaiting:
	case models.OrderStatusAssigned:
		return nil, appErrors.Clone(appErrors.ErrConflict, "order already assigned")
	default:
		return nil, appErrors.Clone(appErrors.ErrWrongState, "only waiting orders can be assigned")
	}

	record, err := s.capacity.Teacher(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	if record.LevelID != current.LevelID {
		return nil, appErrors.ErrLevelMismatch
	}
	if record.ActiveCount >= s.capacity.MaxActive() {
		s.metrics.RecordRejection("teacher_at_capacity")
		return nil, appErrors.ErrCapacityExceeded
	}

	updated, err := s.transition(ctx, current, models.Transition{
		ToStatus:  models.OrderStatusAssigned,
		TeacherID: &teacherID,
		Acquire:   teacherID,
		UpdatedBy: actor.ID,
	}, "assigned")
	if err != nil {
		if errors.Is(err, repository.ErrTeacherAtCapacity) {
			s.metrics.RecordRejection("teacher_at_capacity")
		}
		return nil, s.storeError(err, "failed to assign order")
	}
	return updated, nil
}

// CompleteGrading writes the grade and closes the order. The teacher keeps the slot.
func (s *OrderService) CompleteGrading(ctx context.Context, id string, actor models.Actor, req dto.GradeRequest) (order *models.Order, result *models.Result, err error) {
	ctx, span := s.startSpan(ctx, "order.complete", id, actor)
	defer func() { endSpan(span, err) }()

	if actor.Role != models.RoleTeacher && !actor.IsAdmin() {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers or admins can grade")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grading payload")
	}

	current, err := s.load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if current.Status != models.OrderStatusAssigned {
		return nil, nil, appErrors.Clone(appErrors.ErrWrongState, "only assigned orders can be graded")
	}
	if actor.Role == models.RoleTeacher && !boundTo(current, actor.ID) {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "order is assigned to another teacher")
	}

	result, err = s.results.WriteGrade(ctx, current, req.ToModel())
	if err != nil {
		return nil, nil, err
	}

	updated, err := s.transition(ctx, current, models.Transition{
		ToStatus:  models.OrderStatusCompleted,
		UpdatedBy: actor.ID,
	}, "graded")
	if err != nil {
		return nil, nil, s.storeError(err, "failed to complete order")
	}
	return updated, result, nil
}

// CancelOrder toggles a draft's disabled flag or expires a paid order.
func (s *OrderService) CancelOrder(ctx context.Context, id string, actor models.Actor) (order *models.Order, err error) {
	ctx, span := s.startSpan(ctx, "order.cancel", id, actor)
	defer func() { endSpan(span, err) }()

	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && current.StudentID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the owner or an admin can cancel an order")
	}

	var updated *models.Order
	switch current.Status {
	case models.OrderStatusDraft:
		disabled := !current.IsDisabled
		updated, err = s.transition(ctx, current, models.Transition{
			ToStatus:   models.OrderStatusDraft,
			IsDisabled: &disabled,
			UpdatedBy:  actor.ID,
		}, "draft_toggled")
	case models.OrderStatusWaiting, models.OrderStatusAssigned:
		updated, err = s.expire(ctx, current, "cancelled", actor.ID)
	default:
		return nil, appErrors.Clone(appErrors.ErrWrongState, "order can no longer be cancelled")
	}
	if err != nil {
		return nil, s.storeError(err, "failed to cancel order")
	}
	return updated, nil
}

// Get returns an order visible to the actor after applying lazy expiry.
func (s *OrderService) Get(ctx context.Context, id string, actor models.Actor) (*models.Order, error) {
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, order); err != nil {
		return nil, err
	}
	return order, nil
}

// List returns the actor's orders, most recent first.
func (s *OrderService) List(ctx context.Context, actor models.Actor, query dto.OrderQuery) ([]models.Order, *models.Pagination, error) {
	filter := models.OrderFilter{LevelID: query.LevelID, Page: query.Page, PageSize: query.PageSize}
	switch actor.Role {
	case models.RoleAdmin:
		filter.IncludeDisabled = true
	case models.RoleStudent:
		filter.StudentID = actor.ID
	case models.RoleTeacher:
		filter.TeacherID = actor.ID
	default:
		return nil, nil, appErrors.ErrForbidden
	}
	if query.Status != nil {
		if !query.Status.Valid() {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown status")
		}
		filter.Statuses = []models.OrderStatus{*query.Status}
	}
	normalisePage(&filter)

	orders, total, err := s.listFresh(ctx, filter)
	if err != nil {
		return nil, nil, err
	}
	return orders, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// ListWaiting returns orders awaiting a teacher. Teachers only see their own level.
func (s *OrderService) ListWaiting(ctx context.Context, actor models.Actor, levelID *int) ([]models.Order, error) {
	filter := models.OrderFilter{Statuses: []models.OrderStatus{models.OrderStatusWaiting}}
	switch actor.Role {
	case models.RoleAdmin:
		filter.LevelID = levelID
	case models.RoleTeacher:
		record, err := s.capacity.Teacher(ctx, actor.ID)
		if err != nil {
			return nil, err
		}
		level := record.LevelID
		filter.LevelID = &level
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers or admins can browse waiting orders")
	}
	orders, _, err := s.listFresh(ctx, filter)
	return orders, err
}

// GetResult returns the grading record once a teacher has been bound.
// Students only see it after grading completes.
func (s *OrderService) GetResult(ctx context.Context, id string, actor models.Actor) (*models.Result, error) {
	order, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	switch order.Status {
	case models.OrderStatusDraft, models.OrderStatusWaiting:
		return nil, appErrors.Clone(appErrors.ErrWrongState, "result not available before assignment")
	}
	if order.TeacherID == nil {
		return nil, appErrors.Clone(appErrors.ErrWrongState, "order was never assigned")
	}
	if actor.Role == models.RoleStudent && order.Status != models.OrderStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrWrongState, "result not available until grading completes")
	}
	return s.results.EnsureResult(ctx, order)
}

// EssayComments returns the per-sentence comments of an order once a teacher has been bound.
func (s *OrderService) EssayComments(ctx context.Context, id string, actor models.Actor) (*models.Order, []models.EssayComment, error) {
	order, err := s.commentable(ctx, id, actor)
	if err != nil {
		return nil, nil, err
	}
	comments, err := s.results.EnsureComments(ctx, order)
	if err != nil {
		return nil, nil, err
	}
	return order, comments, nil
}

// UpdateEssayComments writes sentence comments. Only the bound teacher or an admin may
// comment, and not after the order expired.
func (s *OrderService) UpdateEssayComments(ctx context.Context, id string, actor models.Actor, req dto.EssayCommentsRequest) (*models.Order, []models.EssayComment, error) {
	if actor.Role != models.RoleTeacher && !actor.IsAdmin() {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "only the assigned teacher or an admin can comment")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid comment payload")
	}

	order, err := s.commentable(ctx, id, actor)
	if err != nil {
		return nil, nil, err
	}
	if order.Status == models.OrderStatusExpired {
		return nil, nil, appErrors.Clone(appErrors.ErrWrongState, "expired orders cannot be commented")
	}

	inputs := make([]models.EssayCommentInput, len(req.Comments))
	for i, c := range req.Comments {
		inputs[i] = models.EssayCommentInput{
			SentenceIndex: *c.SentenceIndex,
			Comment:       strings.TrimSpace(s.body.Sanitize(c.Comment)),
		}
	}
	comments, err := s.results.WriteComments(ctx, order, inputs)
	if err != nil {
		return nil, nil, err
	}
	return order, comments, nil
}

func (s *OrderService) commentable(ctx context.Context, id string, actor models.Actor) (*models.Order, error) {
	order, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	switch order.Status {
	case models.OrderStatusDraft, models.OrderStatusWaiting:
		return nil, appErrors.Clone(appErrors.ErrWrongState, "comments are available once a teacher is assigned")
	}
	if actor.Role == models.RoleTeacher && !boundTo(order, actor.ID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "order is assigned to another teacher")
	}
	return order, nil
}

// DeadlineSummary counts the actor's open orders due today, due this ISO week and in total.
// Students see their own orders, teachers the orders bound to them, admins every open order.
func (s *OrderService) DeadlineSummary(ctx context.Context, actor models.Actor) (*models.DeadlineSummary, error) {
	filter := models.OrderFilter{Statuses: []models.OrderStatus{models.OrderStatusWaiting, models.OrderStatusAssigned}}
	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleStudent:
		filter.StudentID = actor.ID
	case models.RoleTeacher:
		filter.TeacherID = actor.ID
	default:
		return nil, appErrors.ErrForbidden
	}
	orders, _, err := s.listFresh(ctx, filter)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	year, week := now.ISOWeek()
	summary := &models.DeadlineSummary{Total: len(orders)}
	for _, order := range orders {
		if order.Deadline == nil {
			continue
		}
		due := order.Deadline.UTC()
		if y, w := due.ISOWeek(); y == year && w == week {
			summary.ThisWeek++
		}
		if due.Year() == now.Year() && due.YearDay() == now.YearDay() {
			summary.Today++
		}
	}
	return summary, nil
}

// Receipt renders the payment receipt of a paid order.
func (s *OrderService) Receipt(ctx context.Context, id string, actor models.Actor) ([]byte, string, error) {
	order, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, "", err
	}
	if order.Status == models.OrderStatusDraft {
		return nil, "", appErrors.Clone(appErrors.ErrWrongState, "draft orders have no receipt")
	}
	receipt, err := s.payments.Latest(ctx, order.ID)
	if err != nil {
		return nil, "", err
	}
	essayType, err := s.catalog.TypeByID(ctx, order.EssayTypeID)
	if err != nil {
		return nil, "", err
	}
	options, err := s.catalog.OptionsByIDs(ctx, fromInt64Array(order.OptionIDs))
	if err != nil {
		return nil, "", err
	}
	body, err := s.exporter.Receipt(order, receipt, essayType, options)
	if err != nil {
		return nil, "", appErrors.Internal(err, "failed to render receipt")
	}
	return body, fmt.Sprintf("receipt-%s.pdf", order.ID), nil
}

// ExportCSV renders every order matching the query for administrators.
func (s *OrderService) ExportCSV(ctx context.Context, actor models.Actor, query dto.OrderQuery) ([]byte, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can export orders")
	}
	filter := models.OrderFilter{LevelID: query.LevelID, IncludeDisabled: true}
	if query.Status != nil {
		if !query.Status.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown status")
		}
		filter.Statuses = []models.OrderStatus{*query.Status}
	}
	orders, _, err := s.listFresh(ctx, filter)
	if err != nil {
		return nil, err
	}
	body, err := s.exporter.OrdersCSV(orders)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render orders")
	}
	return body, nil
}

// ExpireOverdue applies expiry to every open order and returns how many expired.
func (s *OrderService) ExpireOverdue(ctx context.Context) (int, error) {
	orders, _, err := s.store.List(ctx, models.OrderFilter{
		Statuses:        []models.OrderStatus{models.OrderStatusWaiting, models.OrderStatusAssigned},
		IncludeDisabled: true,
	})
	if err != nil {
		return 0, appErrors.Internal(err, "failed to list open orders")
	}

	expired := 0
	for i := range orders {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		updated, err := s.refresh(ctx, &orders[i])
		if err != nil {
			s.logger.Warn("sweep could not expire order", zap.String("order_id", orders[i].ID), zap.Error(err))
			continue
		}
		if updated.Status == models.OrderStatusExpired {
			expired++
		}
	}
	return expired, nil
}

func (s *OrderService) load(ctx context.Context, id string) (*models.Order, error) {
	order, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "order not found")
		}
		return nil, appErrors.Internal(err, "failed to load order")
	}
	return s.refresh(ctx, order)
}

// refresh pulls the order forward to Expired when a trigger has fired.
func (s *OrderService) refresh(ctx context.Context, order *models.Order) (*models.Order, error) {
	for attempt := 0; attempt < maxRefreshAttempts; attempt++ {
		expired, reason := s.deadlines.CheckExpiry(order, s.now().UTC())
		if !expired {
			return order, nil
		}
		updated, err := s.expire(ctx, order, string(reason), systemActor)
		if err == nil {
			s.metrics.RecordExpiration(string(reason))
			s.logger.Info("order expired", zap.String("order_id", order.ID), zap.String("reason", string(reason)))
			return updated, nil
		}
		if !errors.Is(err, repository.ErrStaleVersion) {
			return nil, appErrors.Internal(err, "failed to expire order")
		}
		fresh, err := s.store.GetByID(ctx, order.ID)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to reload order")
		}
		order = fresh
	}
	return order, nil
}

func (s *OrderService) expire(ctx context.Context, order *models.Order, reason, actorID string) (*models.Order, error) {
	t := models.Transition{ToStatus: models.OrderStatusExpired, UpdatedBy: actorID}
	if order.Status == models.OrderStatusAssigned && order.TeacherID != nil {
		t.Release = *order.TeacherID
	}
	updated, err := s.transition(ctx, order, t, reason)
	if errors.Is(err, repository.ErrNoActiveSlot) {
		s.logger.Warn("expiring order whose teacher holds no slot", zap.String("order_id", order.ID), zap.String("teacher_id", t.Release))
		t.Release = ""
		updated, err = s.transition(ctx, order, t, reason)
	}
	return updated, err
}

// transition applies one compare-and-swap against the order as read by the caller.
func (s *OrderService) transition(ctx context.Context, order *models.Order, t models.Transition, reason string) (*models.Order, error) {
	t.OrderID = order.ID
	t.FromStatus = order.Status
	t.FromVersion = order.Version
	t.MaxActive = s.capacity.MaxActive()
	if t.At.IsZero() {
		t.At = s.now().UTC()
	}

	updated, err := s.store.Transition(ctx, t)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordTransition(order.Status.String(), updated.Status.String())
	if t.Acquire != "" || t.Release != "" {
		s.capacity.Invalidate(ctx, updated.LevelID)
	}
	s.publish(ctx, order.Status, updated, reason, t.UpdatedBy)
	return updated, nil
}

func (s *OrderService) publish(ctx context.Context, from models.OrderStatus, order *models.Order, reason, actorID string) {
	event := events.OrderStatusChanged{
		OrderID:    order.ID,
		StudentID:  order.StudentID,
		TeacherID:  deref(order.TeacherID),
		LevelID:    order.LevelID,
		FromStatus: from.String(),
		ToStatus:   order.Status.String(),
		Reason:     reason,
		ActorID:    actorID,
		OccurredAt: order.UpdatedAt,
	}
	if err := s.publisher.PublishOrderStatus(ctx, event); err != nil {
		s.logger.Warn("order event not published", zap.String("order_id", order.ID), zap.Error(err))
	}
}

// listFresh applies lazy expiry before filtering by status. A status filter loads
// every open order too, since an overdue Waiting or Assigned row may now be Expired,
// and pages the refreshed set itself.
func (s *OrderService) listFresh(ctx context.Context, filter models.OrderFilter) ([]models.Order, int, error) {
	if len(filter.Statuses) == 0 {
		orders, total, err := s.store.List(ctx, filter)
		if err != nil {
			return nil, 0, appErrors.Internal(err, "failed to list orders")
		}
		for i := range orders {
			order, err := s.refresh(ctx, &orders[i])
			if err != nil {
				return nil, 0, err
			}
			orders[i] = *order
		}
		return orders, total, nil
	}

	wanted := make(map[models.OrderStatus]bool, len(filter.Statuses))
	for _, status := range filter.Statuses {
		wanted[status] = true
	}
	wide := filter
	wide.Statuses = widenStatuses(wanted)
	wide.Page, wide.PageSize = 0, 0

	orders, _, err := s.store.List(ctx, wide)
	if err != nil {
		return nil, 0, appErrors.Internal(err, "failed to list orders")
	}
	matched := make([]models.Order, 0, len(orders))
	for i := range orders {
		order, err := s.refresh(ctx, &orders[i])
		if err != nil {
			return nil, 0, err
		}
		if wanted[order.Status] {
			matched = append(matched, *order)
		}
	}
	return pageOf(matched, filter.Page, filter.PageSize), len(matched), nil
}

// widenStatuses adds the open statuses an Expired filter can draw from.
func widenStatuses(wanted map[models.OrderStatus]bool) []models.OrderStatus {
	statuses := make([]models.OrderStatus, 0, len(wanted)+2)
	for status := range wanted {
		statuses = append(statuses, status)
	}
	if wanted[models.OrderStatusExpired] {
		for _, open := range []models.OrderStatus{models.OrderStatusWaiting, models.OrderStatusAssigned} {
			if !wanted[open] {
				statuses = append(statuses, open)
			}
		}
	}
	return statuses
}

func pageOf(orders []models.Order, page, size int) []models.Order {
	if size <= 0 {
		return orders
	}
	if page <= 0 {
		page = 1
	}
	start := (page - 1) * size
	if start >= len(orders) {
		return []models.Order{}
	}
	end := start + size
	if end > len(orders) {
		end = len(orders)
	}
	return orders[start:end]
}

func (s *OrderService) authorize(ctx context.Context, actor models.Actor, order *models.Order) error {
	switch actor.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleStudent:
		if order.StudentID == actor.ID {
			return nil
		}
	case models.RoleTeacher:
		if boundTo(order, actor.ID) {
			return nil
		}
		if order.Status == models.OrderStatusWaiting {
			record, err := s.capacity.Teacher(ctx, actor.ID)
			if err == nil && record.LevelID == order.LevelID {
				return nil
			}
		}
	}
	return appErrors.Clone(appErrors.ErrForbidden, "order not accessible")
}

func (s *OrderService) storeError(err error, message string) error {
	var appErr *appErrors.Error
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, repository.ErrStaleVersion):
		return s.conflict()
	case errors.Is(err, repository.ErrTeacherAtCapacity):
		return appErrors.ErrCapacityExceeded
	case errors.Is(err, repository.ErrNoActiveSlot):
		return appErrors.ErrInvalidState
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "teacher capacity record not found")
	default:
		return appErrors.Internal(err, message)
	}
}

func (s *OrderService) conflict() error {
	return appErrors.Clone(appErrors.ErrConflict, "order changed concurrently, reload and retry")
}

func (s *OrderService) startSpan(ctx context.Context, name, orderID string, actor models.Actor) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(ctx, name)
	span.SetAttributes(
		attribute.String("order.id", orderID),
		attribute.String("actor.id", actor.ID),
		attribute.String("actor.role", string(actor.Role)),
	)
	return ctx, span
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, appErrors.FromError(err).Code)
	}
	span.End()
}

func normalisePage(filter *models.OrderFilter) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = defaultOrderPageSize
	}
	if filter.PageSize > maxOrderPageSize {
		filter.PageSize = maxOrderPageSize
	}
}

func boundTo(order *models.Order, teacherID string) bool {
	return order.TeacherID != nil && *order.TeacherID == teacherID
}

func toInt64Array(ids []int) pq.Int64Array {
	out := make(pq.Int64Array, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}

func fromInt64Array(ids pq.Int64Array) []int {
	out := make([]int, len(ids))
	for i, id := range ids {
		out[i] = int(id)
	}
	return out
}
