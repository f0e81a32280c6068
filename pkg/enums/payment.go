package enums

import (
	"fmt"
	"strings"
)

// Currency is a settlement currency accepted for orders and gateway payments.
type Currency string

const CurrencyINR Currency = "INR"

// minorUnitDigits maps each supported currency to its decimal exponent.
var minorUnitDigits = map[Currency]int32{
	CurrencyINR: 2,
}

func (c Currency) String() string { return string(c) }

func (c Currency) IsValid() bool {
	_, ok := minorUnitDigits[c]
	return ok
}

// MinorUnitDigits returns the number of decimal places in one major unit.
func (c Currency) MinorUnitDigits() int32 {
	return minorUnitDigits[c]
}

// ParseCurrency accepts any letter case and surrounding whitespace.
func ParseCurrency(value string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(value)))
	if !c.IsValid() {
		return "", fmt.Errorf("unsupported currency %q", value)
	}
	return c, nil
}

// PaymentStatus is the payment state a caller records on an order.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

func (p PaymentStatus) String() string { return string(p) }

func (p PaymentStatus) IsValid() bool {
	switch p {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

// ParsePaymentStatus is exact-match; stored values are always lower case.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	p := PaymentStatus(value)
	if !p.IsValid() {
		return "", fmt.Errorf("invalid payment status %q", value)
	}
	return p, nil
}
