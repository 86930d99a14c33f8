package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/essay-review-api/internal/models"
	"github.com/noah-isme/essay-review-api/pkg/analyzer"
	"github.com/noah-isme/essay-review-api/pkg/jobs"
)

// JobTypeAnalyzeEssay names the queue job that enriches a submitted essay.
const JobTypeAnalyzeEssay = "analyze_essay"

type analysisStore interface {
	GetByID(ctx context.Context, id string) (*models.Order, error)
	SaveAnalysis(ctx context.Context, id string, analysis models.Analysis) error
}

type jobQueue interface {
	TryEnqueue(job jobs.Job) error
}

// AnalysisService runs essay analysis outside the request path.
type AnalysisService struct {
	analyzer analyzer.Analyzer
	store    analysisStore
	queue    jobQueue
	logger   *zap.Logger
}

// NewAnalysisService constructs the enrichment service. queue may be set later with Attach.
func NewAnalysisService(a analyzer.Analyzer, store analysisStore, logger *zap.Logger) *AnalysisService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalysisService{analyzer: a, store: store, logger: logger}
}

// Attach binds the queue jobs are sent to.
func (s *AnalysisService) Attach(queue jobQueue) {
	s.queue = queue
}

// Enqueue schedules analysis of the order's essay. Failures are logged, never returned.
func (s *AnalysisService) Enqueue(order *models.Order) {
	if s == nil || s.queue == nil || order == nil {
		return
	}
	err := s.queue.TryEnqueue(jobs.Job{ID: order.ID, Type: JobTypeAnalyzeEssay, Payload: order.ID})
	if err != nil {
		s.logger.Warn("analysis not scheduled", zap.String("order_id", order.ID), zap.Error(err))
	}
}

// Handle is the queue handler for analysis jobs.
func (s *AnalysisService) Handle(ctx context.Context, job jobs.Job) error {
	orderID, ok := job.Payload.(string)
	if !ok || orderID == "" {
		return fmt.Errorf("analysis job %s: unexpected payload %T", job.ID, job.Payload)
	}
	order, err := s.store.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("analysis skipped for missing order", zap.String("order_id", orderID))
			return nil
		}
		return fmt.Errorf("load order %s: %w", orderID, err)
	}

	result, err := s.analyzer.Analyze(ctx, order.EssayContent)
	if err != nil {
		return fmt.Errorf("analyze order %s: %w", orderID, err)
	}
	if err := s.store.SaveAnalysis(ctx, orderID, models.Analysis{ErrorCount: result.ErrorCount, Keywords: result.Keywords}); err != nil {
		return fmt.Errorf("save analysis %s: %w", orderID, err)
	}
	s.logger.Debug("essay analyzed", zap.String("order_id", orderID), zap.Int("error_count", result.ErrorCount))
	return nil
}

// Exhausted logs jobs that ran out of retries.
func (s *AnalysisService) Exhausted(job jobs.Job, err error) {
	s.logger.Error("analysis abandoned", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
}
