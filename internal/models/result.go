package models

import "time"

// Result holds the grading record for an order.
type Result struct {
	ID           string          `db:"id" json:"id"`
	OrderID      string          `db:"order_id" json:"order_id"`
	HasCriteria  bool            `db:"has_criteria" json:"has_criteria"`
	HasExtras    bool            `db:"has_extras" json:"has_extras"`
	Grade        *float64        `db:"grade" json:"grade,omitempty"`
	GradeComment *string         `db:"grade_comment" json:"grade_comment,omitempty"`
	Review       *string         `db:"review" json:"review,omitempty"`
	Comment      *string         `db:"comment" json:"comment,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
	Criteria     []CriteriaScore `db:"-" json:"criteria,omitempty"`
	Extras       []ExtraNote     `db:"-" json:"extras,omitempty"`
}

// CriteriaScore is one rubric row of a result.
type CriteriaScore struct {
	ResultID   string   `db:"result_id" json:"-"`
	CriteriaID int      `db:"criteria_id" json:"criteria_id"`
	Score      *float64 `db:"score" json:"score,omitempty"`
	Comment    *string  `db:"comment" json:"comment,omitempty"`
}

// ExtraNote is the free-form note for one purchased add-on.
type ExtraNote struct {
	ResultID string  `db:"result_id" json:"-"`
	OptionID int     `db:"option_id" json:"option_id"`
	Content  *string `db:"content" json:"content,omitempty"`
}

// GradeInput is what a teacher submits when grading.
type GradeInput struct {
	Grade        float64
	GradeComment string
	Review       string
	Comment      string
	Criteria     []CriteriaScoreInput
	Extras       []ExtraNoteInput
}

// CriteriaScoreInput fills one rubric row.
type CriteriaScoreInput struct {
	CriteriaID int
	Score      float64
	Comment    string
}

// ExtraNoteInput fills one extra note.
type ExtraNoteInput struct {
	OptionID int
	Content  string
}

// EssayComment is the teacher's note on one sentence of the essay.
type EssayComment struct {
	OrderID       string    `db:"order_id" json:"-"`
	SentenceIndex int       `db:"sentence_index" json:"sentence_index"`
	Sentence      string    `db:"sentence" json:"sentence"`
	Comment       *string   `db:"comment" json:"comment,omitempty"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// EssayCommentInput sets the note of one sentence.
type EssayCommentInput struct {
	SentenceIndex int
	Comment       string
}
