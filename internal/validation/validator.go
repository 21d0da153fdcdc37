package validation

import (
	"reflect"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"
)

// New returns a configured validator with struct-level checks registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// report fields under their JSON names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// ids must not be blank
	v.RegisterStructValidation(createOrderStructValidation, CreateOrderRequest{})

	return v
}

func createOrderStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(CreateOrderRequest)

	for _, f := range []struct {
		value, field, name string
	}{
		{req.UserID, "user_id", "UserID"},
		{req.ProductID, "product_id", "ProductID"},
		{req.AddressID, "address_id", "AddressID"},
	} {
		if f.value != "" && strings.TrimSpace(f.value) == "" {
			sl.ReportError(f.value, f.field, f.name, "notblank", "")
		}
	}
}
