package messages

// FetchUserPaymentDetails asks the users service for a user's payment details.
type FetchUserPaymentDetails struct {
	UserID string `json:"user_id"`
}

type PaymentDetails struct {
	Name            string `json:"name"`
	CardNumber      string `json:"card_number"`
	ValidUntilMonth int    `json:"valid_until_month"`
	ValidUntilYear  int    `json:"valid_until_year"`
	CVV             string `json:"cvv"`
}

type User struct {
	UserID         string         `json:"user_id"`
	FirstName      string         `json:"first_name"`
	LastName       string         `json:"last_name"`
	PaymentDetails PaymentDetails `json:"payment_details"`
}
