package messages

type OrderCreated struct {
	OrderID   string      `json:"order_id"`
	UserID    string      `json:"user_id"`
	ProductID string      `json:"product_id"`
	Quantity  int         `json:"quantity"`
	AddressID string      `json:"address_id"`
	Status    OrderStatus `json:"status"`
}

func (OrderCreated) Kind() Kind         { return KindOrderCreated }
func (e OrderCreated) OrderKey() string { return e.OrderID }

type OrderApproved struct {
	OrderID string      `json:"order_id"`
	Status  OrderStatus `json:"status"`
}

func (OrderApproved) Kind() Kind         { return KindOrderApproved }
func (e OrderApproved) OrderKey() string { return e.OrderID }

type OrderRejected struct {
	OrderID string      `json:"order_id"`
	Status  OrderStatus `json:"status"`
	Reason  string      `json:"reason"`
}

func (OrderRejected) Kind() Kind         { return KindOrderRejected }
func (e OrderRejected) OrderKey() string { return e.OrderID }

// ProductReserved is published by the products service.
type ProductReserved struct {
	OrderID   string `json:"order_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UserID    string `json:"user_id"`
}

func (ProductReserved) Kind() Kind         { return KindProductReserved }
func (e ProductReserved) OrderKey() string { return e.OrderID }

// ProductReservationCancelled confirms a CancelProductReservation.
type ProductReservationCancelled struct {
	OrderID   string `json:"order_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UserID    string `json:"user_id"`
	Reason    string `json:"reason"`
}

func (ProductReservationCancelled) Kind() Kind         { return KindProductReservationCancelled }
func (e ProductReservationCancelled) OrderKey() string { return e.OrderID }

// PaymentProcessed is published by the payments service.
type PaymentProcessed struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
}

func (PaymentProcessed) Kind() Kind         { return KindPaymentProcessed }
func (e PaymentProcessed) OrderKey() string { return e.OrderID }

// PaymentDeadlineFired carries the ProductReserved payload the deadline was
// armed with, so compensation can run without any other state.
type PaymentDeadlineFired struct {
	ScheduleID string          `json:"schedule_id"`
	Name       string          `json:"name"`
	Reserved   ProductReserved `json:"reserved"`
}

func (PaymentDeadlineFired) Kind() Kind         { return KindPaymentDeadlineFired }
func (e PaymentDeadlineFired) OrderKey() string { return e.Reserved.OrderID }
