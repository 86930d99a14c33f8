package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/essay-review-api/internal/dto"
	"github.com/noah-isme/essay-review-api/internal/models"
	"github.com/noah-isme/essay-review-api/internal/repository/inmem"
	"github.com/noah-isme/essay-review-api/pkg/events"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.OrderStatusChanged
}

func (p *recordingPublisher) PublishOrderStatus(ctx context.Context, event events.OrderStatusChanged) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() {}

func (p *recordingPublisher) reasons() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Reason
	}
	return out
}

type recordingScheduler struct {
	mu     sync.Mutex
	orders []string
}

func (s *recordingScheduler) Enqueue(order *models.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append(s.orders, order.ID)
}

type orderFixture struct {
	db        *inmem.DB
	clock     *testClock
	orders    *OrderService
	capacity  *CapacityService
	payments  *PaymentService
	results   *ResultService
	catalog   *CatalogService
	publisher *recordingPublisher
	analysis  *recordingScheduler
	metrics   *MetricsService
}

func newOrderFixture(t *testing.T, maxActive int) *orderFixture {
	return newOrderFixtureWithCatalog(t, maxActive, inmem.DefaultCatalog())
}

func newOrderFixtureWithCatalog(t *testing.T, maxActive int, catalog inmem.Catalog) *orderFixture {
	t.Helper()
	db := inmem.NewDB(catalog)
	clock := newTestClock()
	logger := zap.NewNop()
	metrics := NewMetricsService()

	catalogSvc := NewCatalogService(inmem.NewCatalogRepository(db), nil, 0, logger)
	capacity := NewCapacityService(inmem.NewCapacityRepository(db), catalogSvc, nil, metrics, CapacityConfig{MaxActive: maxActive}, logger)
	capacity.now = clock.Now
	payments := NewPaymentService(inmem.NewPaymentRepository(db), metrics, logger)
	payments.now = clock.Now
	results := NewResultService(inmem.NewResultRepository(db), catalogSvc, logger)
	results.now = clock.Now

	publisher := &recordingPublisher{}
	analysis := &recordingScheduler{}
	orders := NewOrderService(OrderServiceDeps{
		Store:     inmem.NewOrderRepository(db),
		Catalog:   catalogSvc,
		Capacity:  capacity,
		Payments:  payments,
		Results:   results,
		Analysis:  analysis,
		Publisher: publisher,
		Deadlines: NewDeadlinePolicy(72*time.Hour, 30*time.Minute),
		Metrics:   metrics,
		Logger:    logger,
	})
	orders.now = clock.Now

	return &orderFixture{
		db:        db,
		clock:     clock,
		orders:    orders,
		capacity:  capacity,
		payments:  payments,
		results:   results,
		catalog:   catalogSvc,
		publisher: publisher,
		analysis:  analysis,
		metrics:   metrics,
	}
}

func student(id string) models.Actor { return models.Actor{ID: id, Role: models.RoleStudent} }
func teacher(id string) models.Actor { return models.Actor{ID: id, Role: models.RoleTeacher} }

var admin = models.Actor{ID: "admin-1", Role: models.RoleAdmin}

func intPtr(v int) *int { return &v }

func (f *orderFixture) registerTeacher(t *testing.T, id string, level int) {
	t.Helper()
	_, err := f.capacity.RegisterTeacher(context.Background(), dto.RegisterTeacherRequest{TeacherID: id, LevelID: intPtr(level)})
	require.NoError(t, err)
}

func (f *orderFixture) fund(t *testing.T, studentID string, amount float64) {
	t.Helper()
	_, err := f.payments.Deposit(context.Background(), studentID, amount)
	require.NoError(t, err)
}

func (f *orderFixture) draft(t *testing.T, studentID string, typeID int, optionIDs ...int) *models.Order {
	t.Helper()
	order, err := f.orders.CreateOrder(context.Background(), student(studentID), dto.CreateOrderRequest{
		EssayTitle:   "My essay",
		EssayContent: "Some words about a topic worth discussing at length.",
		EssayTypeID:  typeID,
		OptionIDs:    optionIDs,
	})
	require.NoError(t, err)
	return order
}

func (f *orderFixture) waiting(t *testing.T, studentID string, typeID int, optionIDs ...int) *models.Order {
	t.Helper()
	order := f.draft(t, studentID, typeID, optionIDs...)
	submitted, err := f.orders.SubmitForReview(context.Background(), order.ID, student(studentID))
	require.NoError(t, err)
	return submitted
}
