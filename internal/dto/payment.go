package dto

// DepositRequest credits a student wallet.
type DepositRequest struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
}

// QuoteRequest prices an essay type with options.
type QuoteRequest struct {
	EssayTypeID int   `json:"essay_type_id" validate:"required,gt=0"`
	OptionIDs   []int `json:"option_ids" validate:"omitempty,dive,gt=0"`
}
