package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/essay-review-api/internal/models"
)

// CapacityRepository persists teacher slot counters and the per-level free-count.
// Every counter change locks the teacher row and updates level_capacity in the same transaction.
type CapacityRepository struct {
	db *sqlx.DB
}

// NewCapacityRepository constructs the repository.
func NewCapacityRepository(db *sqlx.DB) *CapacityRepository {
	return &CapacityRepository{db: db}
}

const capacityColumns = `teacher_id, level_id, active_count, last_active`

// Register creates a teacher record with no active orders and counts it as free.
func (r *CapacityRepository) Register(ctx context.Context, teacherID string, levelID int, at time.Time) (record *models.TeacherCapacity, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin register teacher tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `INSERT INTO teacher_capacity (teacher_id, level_id, active_count, last_active)
	VALUES ($1, $2, 0, $3) ON CONFLICT (teacher_id) DO NOTHING`, teacherID, levelID, at)
	if err != nil {
		return nil, fmt.Errorf("insert teacher capacity: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("check teacher capacity insert: %w", err)
	}
	if rows == 0 {
		return nil, ErrTeacherExists
	}

	if _, err = tx.ExecContext(ctx, `INSERT INTO level_capacity (level_id, free_count) VALUES ($1, 1)
	ON CONFLICT (level_id) DO UPDATE SET free_count = level_capacity.free_count + 1`, levelID); err != nil {
		return nil, fmt.Errorf("increment level free count: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit register teacher: %w", err)
	}
	return &models.TeacherCapacity{TeacherID: teacherID, LevelID: levelID, LastActive: at}, nil
}

// Get returns the teacher record or sql.ErrNoRows.
func (r *CapacityRepository) Get(ctx context.Context, teacherID string) (*models.TeacherCapacity, error) {
	var record models.TeacherCapacity
	if err := r.db.GetContext(ctx, &record, `SELECT `+capacityColumns+` FROM teacher_capacity WHERE teacher_id = $1`, teacherID); err != nil {
		return nil, err
	}
	return &record, nil
}

// List returns teacher records, optionally restricted to one level.
func (r *CapacityRepository) List(ctx context.Context, levelID *int) ([]models.TeacherCapacity, error) {
	query := `SELECT ` + capacityColumns + ` FROM teacher_capacity`
	args := []interface{}{}
	if levelID != nil {
		query += ` WHERE level_id = $1`
		args = append(args, *levelID)
	}
	query += ` ORDER BY level_id, teacher_id`

	var records []models.TeacherCapacity
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list teacher capacity: %w", err)
	}
	return records, nil
}

// Touch stamps last_active.
func (r *CapacityRepository) Touch(ctx context.Context, teacherID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE teacher_capacity SET last_active = $2 WHERE teacher_id = $1`, teacherID, at)
	if err != nil {
		return fmt.Errorf("touch teacher: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check touch rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Acquire takes one slot from the teacher.
func (r *CapacityRepository) Acquire(ctx context.Context, teacherID string, maxActive int, at time.Time) (*models.TeacherCapacity, error) {
	return r.inTx(ctx, func(tx *sqlx.Tx) (*models.TeacherCapacity, error) {
		return acquireSlot(ctx, tx, teacherID, maxActive, at)
	})
}

// Release returns one slot to the teacher.
func (r *CapacityRepository) Release(ctx context.Context, teacherID string, maxActive int, at time.Time) (*models.TeacherCapacity, error) {
	return r.inTx(ctx, func(tx *sqlx.Tx) (*models.TeacherCapacity, error) {
		return releaseSlot(ctx, tx, teacherID, maxActive, at)
	})
}

func (r *CapacityRepository) inTx(ctx context.Context, fn func(*sqlx.Tx) (*models.TeacherCapacity, error)) (record *models.TeacherCapacity, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin capacity tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if record, err = fn(tx); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit capacity tx: %w", err)
	}
	return record, nil
}

// FreeCount returns how many teachers at the level are below the cap.
func (r *CapacityRepository) FreeCount(ctx context.Context, levelID int) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT free_count FROM level_capacity WHERE level_id = $1`, levelID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get level free count: %w", err)
	}
	return count, nil
}

// Recount rebuilds every level counter from the teacher rows and returns the levels that drifted.
// The teacher table is locked first so the count cannot race a concurrent slot move.
func (r *CapacityRepository) Recount(ctx context.Context, maxActive int) (corrected []models.LevelCapacity, err error) {
	const query = `WITH computed AS (
	SELECT l.id AS level_id, COUNT(tc.teacher_id) FILTER (WHERE tc.active_count < $1) AS free_count
	FROM levels l LEFT JOIN teacher_capacity tc ON tc.level_id = l.id
	GROUP BY l.id
)
UPDATE level_capacity lc SET free_count = computed.free_count
FROM computed
WHERE lc.level_id = computed.level_id AND lc.free_count <> computed.free_count
RETURNING lc.level_id, lc.free_count`

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin recount tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `LOCK TABLE teacher_capacity IN SHARE ROW EXCLUSIVE MODE`); err != nil {
		return nil, fmt.Errorf("lock teacher capacity: %w", err)
	}
	if err = tx.SelectContext(ctx, &corrected, query, maxActive); err != nil {
		return nil, fmt.Errorf("recount level capacity: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit recount: %w", err)
	}
	return corrected, nil
}

func lockTeacher(ctx context.Context, tx *sqlx.Tx, teacherID string) (*models.TeacherCapacity, error) {
	var record models.TeacherCapacity
	if err := tx.GetContext(ctx, &record, `SELECT `+capacityColumns+` FROM teacher_capacity WHERE teacher_id = $1 FOR UPDATE`, teacherID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock teacher capacity: %w", err)
	}
	return &record, nil
}

func acquireSlot(ctx context.Context, tx *sqlx.Tx, teacherID string, maxActive int, at time.Time) (*models.TeacherCapacity, error) {
	record, err := lockTeacher(ctx, tx, teacherID)
	if err != nil {
		return nil, err
	}
	if record.ActiveCount >= maxActive {
		return nil, ErrTeacherAtCapacity
	}

	if _, err := tx.ExecContext(ctx, `UPDATE teacher_capacity SET active_count = active_count + 1, last_active = $2 WHERE teacher_id = $1`, teacherID, at); err != nil {
		return nil, fmt.Errorf("increment active count: %w", err)
	}
	record.ActiveCount++
	record.LastActive = at

	if record.ActiveCount == maxActive {
		if _, err := tx.ExecContext(ctx, `UPDATE level_capacity SET free_count = free_count - 1 WHERE level_id = $1 AND free_count > 0`, record.LevelID); err != nil {
			return nil, fmt.Errorf("decrement level free count: %w", err)
		}
	}
	return record, nil
}

func releaseSlot(ctx context.Context, tx *sqlx.Tx, teacherID string, maxActive int, at time.Time) (*models.TeacherCapacity, error) {
	record, err := lockTeacher(ctx, tx, teacherID)
	if err != nil {
		return nil, err
	}
	if record.ActiveCount <= 0 {
		return nil, ErrNoActiveSlot
	}

	if _, err := tx.ExecContext(ctx, `UPDATE teacher_capacity SET active_count = active_count - 1, last_active = $2 WHERE teacher_id = $1`, teacherID, at); err != nil {
		return nil, fmt.Errorf("decrement active count: %w", err)
	}
	wasFull := record.ActiveCount == maxActive
	record.ActiveCount--
	record.LastActive = at

	if wasFull {
		if _, err := tx.ExecContext(ctx, `UPDATE level_capacity SET free_count = free_count + 1 WHERE level_id = $1`, record.LevelID); err != nil {
			return nil, fmt.Errorf("increment level free count: %w", err)
		}
	}
	return record, nil
}
