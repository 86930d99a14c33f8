package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/essay-review-api/internal/models"
	"github.com/noah-isme/essay-review-api/internal/repository/inmem"
	"github.com/noah-isme/essay-review-api/pkg/analyzer"
	"github.com/noah-isme/essay-review-api/pkg/jobs"
)

type failingAnalyzer struct{}

func (failingAnalyzer) Analyze(ctx context.Context, text string) (analyzer.Result, error) {
	return analyzer.Result{}, errors.New("model unavailable")
}

type fullQueue struct{}

func (fullQueue) TryEnqueue(job jobs.Job) error { return jobs.ErrQueueFull }

func TestAnalysisRunsThroughQueue(t *testing.T) {
	db := inmem.NewDB(inmem.DefaultCatalog())
	store := inmem.NewOrderRepository(db)
	order := &models.Order{StudentID: "student-1", EssayContent: "Climate policy shapes climate outcomes. the the end.", SentAt: time.Now()}
	require.NoError(t, store.Create(context.Background(), order))

	svc := NewAnalysisService(analyzer.KeywordAnalyzer{MaxKeywords: 3}, store, nil)
	queue := jobs.NewQueue("analysis", svc.Handle, jobs.QueueConfig{Workers: 1, RetryDelay: time.Millisecond})
	queue.OnExhausted = svc.Exhausted
	svc.Attach(queue)
	queue.Start(context.Background())
	t.Cleanup(queue.Stop)

	svc.Enqueue(order)
	require.Eventually(t, func() bool {
		stored, err := store.GetByID(context.Background(), order.ID)
		return err == nil && stored.AnalysisErrorCount != nil
	}, time.Second, 5*time.Millisecond)

	stored, err := store.GetByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Contains(t, []string(stored.AnalysisKeywords), "climate")
	assert.Positive(t, *stored.AnalysisErrorCount)
}

func TestAnalysisHandleErrors(t *testing.T) {
	db := inmem.NewDB(inmem.DefaultCatalog())
	store := inmem.NewOrderRepository(db)
	order := &models.Order{StudentID: "student-1", EssayContent: "text"}
	require.NoError(t, store.Create(context.Background(), order))

	svc := NewAnalysisService(failingAnalyzer{}, store, nil)
	assert.Error(t, svc.Handle(context.Background(), jobs.Job{ID: "1", Payload: order.ID}))
	assert.Error(t, svc.Handle(context.Background(), jobs.Job{ID: "2", Payload: 42}))
	assert.NoError(t, svc.Handle(context.Background(), jobs.Job{ID: "3", Payload: "missing"}))
}

func TestAnalysisEnqueueNeverFails(t *testing.T) {
	svc := NewAnalysisService(failingAnalyzer{}, nil, nil)
	svc.Enqueue(&models.Order{ID: "order-1"})

	svc.Attach(fullQueue{})
	svc.Enqueue(&models.Order{ID: "order-1"})

	var nilSvc *AnalysisService
	nilSvc.Enqueue(&models.Order{ID: "order-1"})
}
