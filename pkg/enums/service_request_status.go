package enums

import "fmt"

// ServiceRequestStatus is the lifecycle state of a field-service work item.
type ServiceRequestStatus string

const (
	ServiceRequestStatusCreated        ServiceRequestStatus = "CREATED"
	ServiceRequestStatusAssigned       ServiceRequestStatus = "ASSIGNED"
	ServiceRequestStatusScheduled      ServiceRequestStatus = "SCHEDULED"
	ServiceRequestStatusInProgress     ServiceRequestStatus = "IN_PROGRESS"
	ServiceRequestStatusPaymentPending ServiceRequestStatus = "PAYMENT_PENDING"
	ServiceRequestStatusCompleted      ServiceRequestStatus = "COMPLETED"
	ServiceRequestStatusCancelled      ServiceRequestStatus = "CANCELLED"
)

var validServiceRequestStatuses = []ServiceRequestStatus{
	ServiceRequestStatusCreated,
	ServiceRequestStatusAssigned,
	ServiceRequestStatusScheduled,
	ServiceRequestStatusInProgress,
	ServiceRequestStatusPaymentPending,
	ServiceRequestStatusCompleted,
	ServiceRequestStatusCancelled,
}

// IsValid reports whether the value matches the canonical service request status enum.
func (s ServiceRequestStatus) IsValid() bool {
	for _, candidate := range validServiceRequestStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions may leave this state.
// CANCELLED is reopenable and therefore not terminal.
func (s ServiceRequestStatus) IsTerminal() bool {
	return s == ServiceRequestStatusCompleted
}

// ParseServiceRequestStatus converts the raw string to ServiceRequestStatus.
func ParseServiceRequestStatus(value string) (ServiceRequestStatus, error) {
	for _, candidate := range validServiceRequestStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid service request status %q", value)
}
