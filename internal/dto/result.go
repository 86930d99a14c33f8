package dto

import "github.com/noah-isme/essay-review-api/internal/models"

// GradeRequest is submitted by the teacher to grade and complete an order.
type GradeRequest struct {
	Grade        float64               `json:"grade" validate:"gte=0,lte=100"`
	GradeComment string                `json:"grade_comment" validate:"max=2000"`
	Review       string                `json:"review" validate:"required"`
	Comment      string                `json:"comment" validate:"max=2000"`
	Criteria     []CriteriaScoreRequest `json:"criteria" validate:"dive"`
	Extras       []ExtraNoteRequest     `json:"extras" validate:"dive"`
}

// CriteriaScoreRequest fills one rubric row.
type CriteriaScoreRequest struct {
	CriteriaID int     `json:"criteria_id" validate:"required,gt=0"`
	Score      float64 `json:"score" validate:"gte=0,lte=100"`
	Comment    string  `json:"comment"`
}

// ExtraNoteRequest fills one add-on note.
type ExtraNoteRequest struct {
	OptionID int    `json:"option_id" validate:"required,gt=0"`
	Content  string `json:"content" validate:"required"`
}

// ToModel converts the request into grading input.
func (r GradeRequest) ToModel() models.GradeInput {
	input := models.GradeInput{
		Grade:        r.Grade,
		GradeComment: r.GradeComment,
		Review:       r.Review,
		Comment:      r.Comment,
		Criteria:     make([]models.CriteriaScoreInput, len(r.Criteria)),
		Extras:       make([]models.ExtraNoteInput, len(r.Extras)),
	}
	for i, c := range r.Criteria {
		input.Criteria[i] = models.CriteriaScoreInput{CriteriaID: c.CriteriaID, Score: c.Score, Comment: c.Comment}
	}
	for i, e := range r.Extras {
		input.Extras[i] = models.ExtraNoteInput{OptionID: e.OptionID, Content: e.Content}
	}
	return input
}

// GradedOrderResponse is returned once grading completes an order.
type GradedOrderResponse struct {
	Order  OrderResponse  `json:"order"`
	Result *models.Result `json:"result"`
}

// EssayCommentsRequest sets comments on individual sentences.
type EssayCommentsRequest struct {
	Comments []EssayCommentRequest `json:"comments" validate:"required,min=1,dive"`
}

// EssayCommentRequest is the comment for one sentence.
type EssayCommentRequest struct {
	SentenceIndex *int   `json:"sentence_index" validate:"required,gte=0"`
	Comment       string `json:"comment" validate:"max=2000"`
}

// EssayCommentsResponse pairs the essay with its sentence comments.
type EssayCommentsResponse struct {
	OrderID      string                `json:"order_id"`
	EssayTitle   string                `json:"essay_title"`
	EssayContent string                `json:"essay_content"`
	EssayTypeID  int                   `json:"essay_type_id"`
	Comments     []models.EssayComment `json:"comments"`
}

// NewEssayCommentsResponse builds the response for an order.
func NewEssayCommentsResponse(order *models.Order, comments []models.EssayComment) EssayCommentsResponse {
	return EssayCommentsResponse{
		OrderID:      order.ID,
		EssayTitle:   order.EssayTitle,
		EssayContent: order.EssayContent,
		EssayTypeID:  order.EssayTypeID,
		Comments:     comments,
	}
}
