package enums

import "fmt"

// EntityType names the aggregate an action history row belongs to.
type EntityType string

const (
	EntityInstallationRequest EntityType = "INSTALLATION_REQUEST"
	EntityServiceRequest      EntityType = "SERVICE_REQUEST"
	EntitySubscription        EntityType = "SUBSCRIPTION"
	EntityPayment             EntityType = "PAYMENT"
)

var validEntityTypes = []EntityType{
	EntityInstallationRequest,
	EntityServiceRequest,
	EntitySubscription,
	EntityPayment,
}

// IsValid reports whether the value matches the canonical entity type enum.
func (e EntityType) IsValid() bool {
	for _, candidate := range validEntityTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ActionType names the operation recorded in the ledger.
type ActionType string

const (
	ActionSubmitted         ActionType = "SUBMITTED"
	ActionStatusChanged     ActionType = "STATUS_CHANGED"
	ActionAgentAssigned     ActionType = "AGENT_ASSIGNED"
	ActionScheduled         ActionType = "SCHEDULED"
	ActionPaymentLinkIssued ActionType = "PAYMENT_LINK_ISSUED"
	ActionPaymentConfirmed  ActionType = "PAYMENT_CONFIRMED"
	ActionSynchronized      ActionType = "SYNCHRONIZED"
	ActionSubscriptionStart ActionType = "SUBSCRIPTION_STARTED"
	ActionBillingAdvanced   ActionType = "BILLING_ADVANCED"
)

var validActionTypes = []ActionType{
	ActionSubmitted,
	ActionStatusChanged,
	ActionAgentAssigned,
	ActionScheduled,
	ActionPaymentLinkIssued,
	ActionPaymentConfirmed,
	ActionSynchronized,
	ActionSubscriptionStart,
	ActionBillingAdvanced,
}

// IsValid reports whether the value matches the canonical action type enum.
func (a ActionType) IsValid() bool {
	for _, candidate := range validActionTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseActionType converts the raw string to ActionType.
func ParseActionType(value string) (ActionType, error) {
	for _, candidate := range validActionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid action type %q", value)
}
