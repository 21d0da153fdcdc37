package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOrderRequest_Valid(t *testing.T) {
	v := New()

	req := CreateOrderRequest{UserID: "u-1", ProductID: "p-1", Quantity: 2, AddressID: "a-1"}
	require.NoError(t, v.Struct(req))
}

func TestCreateOrderRequest_Invalid(t *testing.T) {
	v := New()

	tests := []struct {
		name  string
		req   CreateOrderRequest
		field string
		tag   string
	}{
		{"missing user", CreateOrderRequest{ProductID: "p", Quantity: 1, AddressID: "a"}, "user_id", "required"},
		{"missing product", CreateOrderRequest{UserID: "u", Quantity: 1, AddressID: "a"}, "product_id", "required"},
		{"zero quantity", CreateOrderRequest{UserID: "u", ProductID: "p", AddressID: "a"}, "quantity", "required"},
		{"negative quantity", CreateOrderRequest{UserID: "u", ProductID: "p", Quantity: -3, AddressID: "a"}, "quantity", "min"},
		{"missing address", CreateOrderRequest{UserID: "u", ProductID: "p", Quantity: 1}, "address_id", "required"},
		{"blank product", CreateOrderRequest{UserID: "u", ProductID: "   ", Quantity: 1, AddressID: "a"}, "product_id", "notblank"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.tag, ErrorFields(err)[tt.field])
		})
	}
}
