package models

import "time"

// TeacherCapacity tracks how many orders a teacher currently holds.
type TeacherCapacity struct {
	TeacherID   string    `db:"teacher_id" json:"teacher_id"`
	LevelID     int       `db:"level_id" json:"level_id"`
	ActiveCount int       `db:"active_count" json:"active_count"`
	LastActive  time.Time `db:"last_active" json:"last_active"`
}

// LevelCapacity is the number of teachers at a level below the active cap.
type LevelCapacity struct {
	LevelID   int `db:"level_id" json:"level_id"`
	FreeCount int `db:"free_count" json:"free_count"`
}
