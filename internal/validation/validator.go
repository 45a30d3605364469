package validation

import (
	"fmt"
	"regexp"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"
)

// mobilePattern accepts 10-digit mobile numbers starting with 6-9.
var mobilePattern = regexp.MustCompile(`^[6-9]\d{9}$`)

// New returns a configured validator with the storefront rules registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// "mobile" checks the checkout phone format.
	_ = v.RegisterValidation("mobile", func(fl validatorv10.FieldLevel) bool {
		return mobilePattern.MatchString(fl.Field().String())
	})

	v.RegisterStructValidation(createOrderStructValidation, CreateOrderRequest{})

	return v
}

// ValidPhone reports whether phone is an acceptable checkout phone number.
func ValidPhone(phone string) bool {
	return mobilePattern.MatchString(phone)
}

// createOrderStructValidation requires the address snapshot to carry enough to ship to.
func createOrderStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(CreateOrderRequest)

	if strings.TrimSpace(req.Address.Street) == "" || strings.TrimSpace(req.Address.City) == "" {
		sl.ReportError(req.Address, "address", "Address", "shippable_address", "")
	}
}

// Describe turns a validation error into a single human-readable sentence.
func Describe(err error) string {
	ve, ok := err.(validatorv10.ValidationErrors)
	if !ok || len(ve) == 0 {
		return err.Error()
	}
	fe := ve[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "mobile":
		return "Please enter a valid 10-digit mobile number"
	case "email":
		return "Please enter a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "len":
		return fmt.Sprintf("%s must be %s characters", field, fe.Param())
	case "numeric":
		return fmt.Sprintf("%s must contain digits only", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "shippable_address":
		return "A delivery address is required"
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
