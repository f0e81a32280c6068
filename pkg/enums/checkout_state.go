package enums

import "fmt"

// CheckoutState is a step of the checkout saga.
type CheckoutState string

const (
	CheckoutAwaitingPaymentOrder  CheckoutState = "awaiting_payment_order"
	CheckoutAwaitingGatewayResult CheckoutState = "awaiting_gateway_result"
	CheckoutAwaitingVerification  CheckoutState = "awaiting_verification"
	CheckoutPersisted             CheckoutState = "persisted"
	CheckoutFailed                CheckoutState = "failed"
	CheckoutPartialFailure        CheckoutState = "partial_failure"
	CheckoutAborted               CheckoutState = "aborted"
)

var validCheckoutStates = []CheckoutState{
	CheckoutAwaitingPaymentOrder,
	CheckoutAwaitingGatewayResult,
	CheckoutAwaitingVerification,
	CheckoutPersisted,
	CheckoutFailed,
	CheckoutPartialFailure,
	CheckoutAborted,
}

// String implements fmt.Stringer.
func (s CheckoutState) String() string {
	return string(s)
}

// IsValid reports whether the value is a known CheckoutState.
func (s CheckoutState) IsValid() bool {
	for _, candidate := range validCheckoutStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the saga has reached an outcome.
func (s CheckoutState) IsTerminal() bool {
	switch s {
	case CheckoutPersisted, CheckoutFailed, CheckoutPartialFailure, CheckoutAborted:
		return true
	}
	return false
}

// ParseCheckoutState converts raw input into a CheckoutState.
func ParseCheckoutState(value string) (CheckoutState, error) {
	for _, candidate := range validCheckoutStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid checkout state %q", value)
}

// CheckoutFailureKind explains why a saga ended in Failed or PartialFailure.
type CheckoutFailureKind string

const (
	CheckoutFailureTimeout              CheckoutFailureKind = "timeout"
	CheckoutFailureGateway              CheckoutFailureKind = "gateway_error"
	CheckoutFailureInvalidResponse      CheckoutFailureKind = "invalid_response"
	CheckoutFailureVerification         CheckoutFailureKind = "payment_verification_failed"
	CheckoutFailureOrderRecordingFailed CheckoutFailureKind = "order_recording_failed"
)

// String implements fmt.Stringer.
func (k CheckoutFailureKind) String() string {
	return string(k)
}
