package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/essay-review-api/internal/dto"
	"github.com/noah-isme/essay-review-api/internal/models"
	"github.com/noah-isme/essay-review-api/internal/repository"
	appErrors "github.com/noah-isme/essay-review-api/pkg/errors"
)

const defaultMaxActive = 5

type capacityStore interface {
	Register(ctx context.Context, teacherID string, levelID int, at time.Time) (*models.TeacherCapacity, error)
	Get(ctx context.Context, teacherID string) (*models.TeacherCapacity, error)
	List(ctx context.Context, levelID *int) ([]models.TeacherCapacity, error)
	Touch(ctx context.Context, teacherID string, at time.Time) error
	Acquire(ctx context.Context, teacherID string, maxActive int, at time.Time) (*models.TeacherCapacity, error)
	Release(ctx context.Context, teacherID string, maxActive int, at time.Time) (*models.TeacherCapacity, error)
	FreeCount(ctx context.Context, levelID int) (int, error)
	Recount(ctx context.Context, maxActive int) ([]models.LevelCapacity, error)
}

type levelChecker interface {
	HasLevel(ctx context.Context, levelID int) (bool, error)
}

// CapacityConfig tunes admission control.
type CapacityConfig struct {
	MaxActive int
	HintTTL   time.Duration
}

// CapacityService tracks teacher slots and answers admission checks.
// The store is authoritative; the cached free count is only a hint.
type CapacityService struct {
	store     capacityStore
	levels    levelChecker
	hints     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       CapacityConfig
	now       func() time.Time
}

// NewCapacityService constructs the capacity tracker. hints and metrics may be nil.
func NewCapacityService(store capacityStore, levels levelChecker, hints *CacheService, metrics *MetricsService, cfg CapacityConfig, logger *zap.Logger) *CapacityService {
	if cfg.MaxActive <= 0 {
		cfg.MaxActive = defaultMaxActive
	}
	if cfg.HintTTL <= 0 {
		cfg.HintTTL = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CapacityService{
		store:     store,
		levels:    levels,
		hints:     hints,
		metrics:   metrics,
		validator: validator.New(),
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// MaxActive returns the per-teacher slot cap.
func (s *CapacityService) MaxActive() int {
	return s.cfg.MaxActive
}

func hintKey(levelID int) string {
	return fmt.Sprintf("capacity:level:%d", levelID)
}

// HasFreeTeacher reports whether any teacher at the level has a spare slot.
func (s *CapacityService) HasFreeTeacher(ctx context.Context, levelID int) (bool, error) {
	var free int
	if hit, _ := s.hints.Get(ctx, hintKey(levelID), &free); hit {
		return free > 0, nil
	}
	free, err := s.store.FreeCount(ctx, levelID)
	if err != nil {
		return false, appErrors.Internal(err, "failed to read level capacity")
	}
	_ = s.hints.Set(ctx, hintKey(levelID), free, s.cfg.HintTTL)
	return free > 0, nil
}

// AcquireSlot takes one slot for the teacher outside any order transition.
// Lifecycle transitions move slots atomically inside the order store's Transition.
func (s *CapacityService) AcquireSlot(ctx context.Context, teacherID string) (*models.TeacherCapacity, error) {
	record, err := s.store.Acquire(ctx, teacherID, s.cfg.MaxActive, s.now().UTC())
	if err != nil {
		return nil, s.mapSlotError(err)
	}
	s.Invalidate(ctx, record.LevelID)
	return record, nil
}

// ReleaseSlot frees one slot held by the teacher. Like AcquireSlot it is not
// used by lifecycle transitions, which release inside Transition.
func (s *CapacityService) ReleaseSlot(ctx context.Context, teacherID string) (*models.TeacherCapacity, error) {
	record, err := s.store.Release(ctx, teacherID, s.cfg.MaxActive, s.now().UTC())
	if err != nil {
		return nil, s.mapSlotError(err)
	}
	s.Invalidate(ctx, record.LevelID)
	return record, nil
}

func (s *CapacityService) mapSlotError(err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "teacher capacity record not found")
	case errors.Is(err, repository.ErrTeacherAtCapacity):
		s.metrics.RecordRejection("teacher_at_capacity")
		return appErrors.ErrCapacityExceeded
	case errors.Is(err, repository.ErrNoActiveSlot):
		return appErrors.ErrInvalidState
	default:
		return appErrors.Internal(err, "failed to update teacher capacity")
	}
}

// RegisterTeacher creates the capacity record for an approved teacher.
func (s *CapacityService) RegisterTeacher(ctx context.Context, req dto.RegisterTeacherRequest) (*models.TeacherCapacity, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher payload")
	}
	levelID := *req.LevelID
	if s.levels != nil {
		ok, err := s.levels.HasLevel(ctx, levelID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("level %d not found", levelID))
		}
	}
	record, err := s.store.Register(ctx, req.TeacherID, levelID, s.now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrTeacherExists) {
			return nil, appErrors.Clone(appErrors.ErrAlreadyExists, "teacher already registered")
		}
		return nil, appErrors.Internal(err, "failed to register teacher")
	}
	s.Invalidate(ctx, levelID)
	s.logger.Info("teacher registered", zap.String("teacher_id", req.TeacherID), zap.Int("level_id", levelID))
	return record, nil
}

// Teacher returns the capacity record without touching last_active.
func (s *CapacityService) Teacher(ctx context.Context, teacherID string) (*models.TeacherCapacity, error) {
	record, err := s.store.Get(ctx, teacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher capacity record not found")
		}
		return nil, appErrors.Internal(err, "failed to load teacher capacity")
	}
	return record, nil
}

// Get returns the teacher's record and marks them active.
func (s *CapacityService) Get(ctx context.Context, teacherID string) (*models.TeacherCapacity, error) {
	if err := s.store.Touch(ctx, teacherID, s.now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher capacity record not found")
		}
		return nil, appErrors.Internal(err, "failed to update teacher activity")
	}
	return s.Teacher(ctx, teacherID)
}

// List returns capacity records, optionally for one level.
func (s *CapacityService) List(ctx context.Context, levelID *int) ([]models.TeacherCapacity, error) {
	records, err := s.store.List(ctx, levelID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list teacher capacity")
	}
	return records, nil
}

// Resync recomputes the level counters from teacher records.
func (s *CapacityService) Resync(ctx context.Context) ([]models.LevelCapacity, error) {
	corrected, err := s.store.Recount(ctx, s.cfg.MaxActive)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to resync level capacity")
	}
	for _, level := range corrected {
		s.logger.Warn("level capacity drift corrected", zap.Int("level_id", level.LevelID), zap.Int("free_count", level.FreeCount))
		s.Invalidate(ctx, level.LevelID)
	}
	s.metrics.RecordCapacityDrift(len(corrected))
	return corrected, nil
}

// Invalidate drops the cached free count of a level.
func (s *CapacityService) Invalidate(ctx context.Context, levelID int) {
	_ = s.hints.Delete(ctx, hintKey(levelID))
}
