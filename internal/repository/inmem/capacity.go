package inmem

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/noah-isme/essay-review-api/internal/models"
	"github.com/noah-isme/essay-review-api/internal/repository"
)

// CapacityRepository keeps teacher slots and level free-counts under the DB lock.
type CapacityRepository struct {
	db *DB
}

// NewCapacityRepository constructs the repository.
func NewCapacityRepository(db *DB) *CapacityRepository {
	return &CapacityRepository{db: db}
}

func (r *CapacityRepository) Register(ctx context.Context, teacherID string, levelID int, at time.Time) (*models.TeacherCapacity, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.teachers[teacherID]; ok {
		return nil, repository.ErrTeacherExists
	}
	record := &models.TeacherCapacity{TeacherID: teacherID, LevelID: levelID, LastActive: at}
	r.db.teachers[teacherID] = record
	r.db.free[levelID]++
	out := *record
	return &out, nil
}

func (r *CapacityRepository) Get(ctx context.Context, teacherID string) (*models.TeacherCapacity, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	record, ok := r.db.teachers[teacherID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	out := *record
	return &out, nil
}

func (r *CapacityRepository) List(ctx context.Context, levelID *int) ([]models.TeacherCapacity, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	records := make([]models.TeacherCapacity, 0, len(r.db.teachers))
	for _, record := range r.db.teachers {
		if levelID != nil && record.LevelID != *levelID {
			continue
		}
		records = append(records, *record)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].LevelID != records[j].LevelID {
			return records[i].LevelID < records[j].LevelID
		}
		return records[i].TeacherID < records[j].TeacherID
	})
	return records, nil
}

func (r *CapacityRepository) Touch(ctx context.Context, teacherID string, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	record, ok := r.db.teachers[teacherID]
	if !ok {
		return sql.ErrNoRows
	}
	record.LastActive = at
	return nil
}

func (r *CapacityRepository) Acquire(ctx context.Context, teacherID string, maxActive int, at time.Time) (*models.TeacherCapacity, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.db.acquire(teacherID, maxActive, at)
}

func (r *CapacityRepository) Release(ctx context.Context, teacherID string, maxActive int, at time.Time) (*models.TeacherCapacity, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.db.release(teacherID, maxActive, at)
}

func (r *CapacityRepository) FreeCount(ctx context.Context, levelID int) (int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return r.db.free[levelID], nil
}

func (r *CapacityRepository) Recount(ctx context.Context, maxActive int) ([]models.LevelCapacity, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	computed := make(map[int]int, len(r.db.free))
	for level := range r.db.free {
		computed[level] = 0
	}
	for _, record := range r.db.teachers {
		if record.ActiveCount < maxActive {
			computed[record.LevelID]++
		} else if _, ok := computed[record.LevelID]; !ok {
			computed[record.LevelID] = 0
		}
	}

	var corrected []models.LevelCapacity
	for level, count := range computed {
		if r.db.free[level] != count {
			r.db.free[level] = count
			corrected = append(corrected, models.LevelCapacity{LevelID: level, FreeCount: count})
		}
	}
	sort.Slice(corrected, func(i, j int) bool { return corrected[i].LevelID < corrected[j].LevelID })
	return corrected, nil
}

// acquire and release expect the write lock to be held.
func (db *DB) acquire(teacherID string, maxActive int, at time.Time) (*models.TeacherCapacity, error) {
	record, ok := db.teachers[teacherID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if record.ActiveCount >= maxActive {
		return nil, repository.ErrTeacherAtCapacity
	}
	record.ActiveCount++
	record.LastActive = at
	if record.ActiveCount == maxActive && db.free[record.LevelID] > 0 {
		db.free[record.LevelID]--
	}
	out := *record
	return &out, nil
}

func (db *DB) release(teacherID string, maxActive int, at time.Time) (*models.TeacherCapacity, error) {
	record, ok := db.teachers[teacherID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if record.ActiveCount <= 0 {
		return nil, repository.ErrNoActiveSlot
	}
	if record.ActiveCount == maxActive {
		db.free[record.LevelID]++
	}
	record.ActiveCount--
	record.LastActive = at
	out := *record
	return &out, nil
}
