package validation

import (
	"testing"

	"github.com/imrishuroy/go-storefront-checkout/internal/storefront"
)

func validAddress() storefront.Address {
	return storefront.Address{
		Street:  "12 MG Road",
		City:    "Bengaluru",
		ZipCode: "560001",
		Country: "IN",
	}
}

func TestCreateOrderRequest_Valid(t *testing.T) {
	v := New()

	req := CreateOrderRequest{
		Address:       validAddress(),
		Phone:         "9876543210",
		PaymentMethod: "cod",
	}

	if err := v.Struct(req); err != nil {
		t.Fatalf("expected valid, got error: %v", err)
	}
}

func TestCreateOrderRequest_InvalidPhone(t *testing.T) {
	v := New()

	for _, phone := range []string{"5876543210", "987654321", "98765432101", "98765abcde", ""} {
		req := CreateOrderRequest{
			Address:       validAddress(),
			Phone:         phone,
			PaymentMethod: "online",
		}
		if err := v.Struct(req); err == nil {
			t.Fatalf("expected validation error for phone %q, got nil", phone)
		}
	}
}

func TestCreateOrderRequest_MissingAddress(t *testing.T) {
	v := New()

	req := CreateOrderRequest{
		Phone:         "9876543210",
		PaymentMethod: "cod",
	}

	err := v.Struct(req)
	if err == nil {
		t.Fatal("expected validation errors for missing address, got nil")
	}
}

func TestCreateOrderRequest_UnknownPaymentMethod(t *testing.T) {
	v := New()

	req := CreateOrderRequest{
		Address:       validAddress(),
		Phone:         "9876543210",
		PaymentMethod: "cheque",
	}

	if err := v.Struct(req); err == nil {
		t.Fatal("expected validation error for payment method, got nil")
	}
}

func TestValidPhone(t *testing.T) {
	if !ValidPhone("6000000000") {
		t.Fatal("expected 6000000000 to be valid")
	}
	if ValidPhone("+919876543210") {
		t.Fatal("expected country-prefixed number to be rejected")
	}
}

func TestDescribe_Mobile(t *testing.T) {
	v := New()
	err := v.Var("123", "mobile")
	if err == nil {
		t.Fatal("expected error")
	}
	if got := Describe(err); got != "Please enter a valid 10-digit mobile number" {
		t.Fatalf("unexpected message %q", got)
	}
}
