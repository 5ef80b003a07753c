package enums

import "fmt"

// PaymentStatus is the settlement state of a payment row.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
)

var validPaymentStatuses = []PaymentStatus{
	PaymentStatusPending,
	PaymentStatusCompleted,
	PaymentStatusFailed,
}

// IsValid reports whether the value matches the canonical payment status enum.
func (s PaymentStatus) IsValid() bool {
	for _, candidate := range validPaymentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParsePaymentStatus converts the raw string to PaymentStatus.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	for _, candidate := range validPaymentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment status %q", value)
}

// PaymentType identifies which charge a payment row settles.
type PaymentType string

const (
	PaymentTypeDeposit       PaymentType = "DEPOSIT"
	PaymentTypePurchase      PaymentType = "PURCHASE"
	PaymentTypeSubscription  PaymentType = "SUBSCRIPTION"
	PaymentTypeServiceCharge PaymentType = "SERVICE_CHARGE"
	PaymentTypeRefund        PaymentType = "REFUND"
)

var validPaymentTypes = []PaymentType{
	PaymentTypeDeposit,
	PaymentTypePurchase,
	PaymentTypeSubscription,
	PaymentTypeServiceCharge,
	PaymentTypeRefund,
}

// IsValid reports whether the value matches the canonical payment type enum.
func (t PaymentType) IsValid() bool {
	for _, candidate := range validPaymentTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParsePaymentType converts the raw string to PaymentType.
func ParsePaymentType(value string) (PaymentType, error) {
	for _, candidate := range validPaymentTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment type %q", value)
}

// PaymentMethod describes how money arrived.
type PaymentMethod string

const (
	PaymentMethodRazorpay PaymentMethod = "RAZORPAY"
	PaymentMethodCash     PaymentMethod = "CASH"
	PaymentMethodUPI      PaymentMethod = "UPI"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodRazorpay,
	PaymentMethodCash,
	PaymentMethodUPI,
}

// IsValid reports whether the value matches the canonical payment method enum.
func (m PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == m {
			return true
		}
	}
	return false
}

// IsOffline reports whether the method settles without the gateway.
func (m PaymentMethod) IsOffline() bool {
	return m == PaymentMethodCash || m == PaymentMethodUPI
}

// ParsePaymentMethod converts the raw string to PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	for _, candidate := range validPaymentMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}
