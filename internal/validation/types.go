package validation

// CreateOrderRequest is the payload for POST /orders
type CreateOrderRequest struct {
	UserID    string `json:"user_id" validate:"required,max=128"`
	ProductID string `json:"product_id" validate:"required,max=128"`
	Quantity  int    `json:"quantity" validate:"required,min=1,max=10000"` // units of the product
	AddressID string `json:"address_id" validate:"required,max=128"`
}
