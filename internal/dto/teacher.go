package dto

// RegisterTeacherRequest creates a capacity record for an approved teacher.
type RegisterTeacherRequest struct {
	TeacherID string `json:"teacher_id" validate:"required,max=64"`
	LevelID   *int   `json:"level_id" validate:"required,gte=0"`
}

// FreeTeacherResponse answers the admission hint query.
type FreeTeacherResponse struct {
	LevelID int  `json:"level_id"`
	HasFree bool `json:"has_free_teacher"`
}
