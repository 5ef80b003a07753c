package enums

import "fmt"

// OrderType distinguishes rental fulfillment from an outright purchase.
type OrderType string

const (
	OrderTypeRental   OrderType = "RENTAL"
	OrderTypePurchase OrderType = "PURCHASE"
)

var validOrderTypes = []OrderType{OrderTypeRental, OrderTypePurchase}

// IsValid reports whether the value matches the canonical order type enum.
func (o OrderType) IsValid() bool {
	for _, candidate := range validOrderTypes {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOrderType converts the raw string to OrderType.
func ParseOrderType(value string) (OrderType, error) {
	for _, candidate := range validOrderTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order type %q", value)
}
