package dto

import "github.com/noah-isme/essay-review-api/internal/models"

// CreateOrderRequest is the payload for a new draft.
type CreateOrderRequest struct {
	EssayTitle   string `json:"essay_title" validate:"required,max=200"`
	EssayContent string `json:"essay_content" validate:"required"`
	EssayTypeID  int    `json:"essay_type_id" validate:"required,gt=0"`
	OptionIDs    []int  `json:"option_ids" validate:"omitempty,dive,gt=0"`
}

// UpdateOrderRequest edits a draft. Version must match the stored order.
type UpdateOrderRequest struct {
	EssayTitle   string `json:"essay_title" validate:"required,max=200"`
	EssayContent string `json:"essay_content" validate:"required"`
	EssayTypeID  int    `json:"essay_type_id" validate:"required,gt=0"`
	OptionIDs    []int  `json:"option_ids" validate:"omitempty,dive,gt=0"`
	Version      int    `json:"version" validate:"required,gte=1"`
}

// OrderQuery captures list filters.
type OrderQuery struct {
	Status   *models.OrderStatus `form:"status"`
	LevelID  *int                `form:"level"`
	Page     int                 `form:"page"`
	PageSize int                 `form:"page_size"`
}

// OrderResponse adds the status label to an order.
type OrderResponse struct {
	*models.Order
	StatusName string `json:"status_name"`
}

// NewOrderResponse wraps an order.
func NewOrderResponse(o *models.Order) OrderResponse {
	return OrderResponse{Order: o, StatusName: o.Status.String()}
}

// NewOrderResponses wraps a slice of orders.
func NewOrderResponses(orders []models.Order) []OrderResponse {
	out := make([]OrderResponse, len(orders))
	for i := range orders {
		out[i] = NewOrderResponse(&orders[i])
	}
	return out
}
