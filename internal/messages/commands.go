package messages

// CreateOrder asks the aggregate to start a new order.
type CreateOrder struct {
	OrderID   string `json:"order_id"`
	UserID    string `json:"user_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	AddressID string `json:"address_id"`
}

func (CreateOrder) Kind() Kind         { return KindCreateOrder }
func (c CreateOrder) OrderKey() string { return c.OrderID }

type ApproveOrder struct {
	OrderID string `json:"order_id"`
}

func (ApproveOrder) Kind() Kind         { return KindApproveOrder }
func (c ApproveOrder) OrderKey() string { return c.OrderID }

type RejectOrder struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

func (RejectOrder) Kind() Kind         { return KindRejectOrder }
func (c RejectOrder) OrderKey() string { return c.OrderID }

// ReserveProduct is handled by the products service.
type ReserveProduct struct {
	OrderID   string `json:"order_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UserID    string `json:"user_id"`
}

func (ReserveProduct) Kind() Kind         { return KindReserveProduct }
func (c ReserveProduct) OrderKey() string { return c.OrderID }

// ProcessPayment is handled by the payments service.
type ProcessPayment struct {
	OrderID        string         `json:"order_id"`
	PaymentID      string         `json:"payment_id"`
	PaymentDetails PaymentDetails `json:"payment_details"`
}

func (ProcessPayment) Kind() Kind         { return KindProcessPayment }
func (c ProcessPayment) OrderKey() string { return c.OrderID }

// CancelProductReservation releases a reservation made by ReserveProduct.
type CancelProductReservation struct {
	OrderID   string `json:"order_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UserID    string `json:"user_id"`
	Reason    string `json:"reason"`
}

func (CancelProductReservation) Kind() Kind         { return KindCancelProductReservation }
func (c CancelProductReservation) OrderKey() string { return c.OrderID }
