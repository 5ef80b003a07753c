package enums

import "fmt"

// InstallationStatus is the lifecycle state of an installation request.
type InstallationStatus string

const (
	InstallationStatusSubmitted          InstallationStatus = "SUBMITTED"
	InstallationStatusRejected           InstallationStatus = "REJECTED"
	InstallationStatusFranchiseContacted InstallationStatus = "FRANCHISE_CONTACTED"
	InstallationStatusScheduled          InstallationStatus = "INSTALLATION_SCHEDULED"
	InstallationStatusInProgress         InstallationStatus = "INSTALLATION_IN_PROGRESS"
	InstallationStatusPaymentPending     InstallationStatus = "PAYMENT_PENDING"
	InstallationStatusCompleted          InstallationStatus = "INSTALLATION_COMPLETED"
	InstallationStatusCancelled          InstallationStatus = "CANCELLED"
)

var validInstallationStatuses = []InstallationStatus{
	InstallationStatusSubmitted,
	InstallationStatusRejected,
	InstallationStatusFranchiseContacted,
	InstallationStatusScheduled,
	InstallationStatusInProgress,
	InstallationStatusPaymentPending,
	InstallationStatusCompleted,
	InstallationStatusCancelled,
}

// IsValid reports whether the value matches the canonical installation status enum.
func (s InstallationStatus) IsValid() bool {
	for _, candidate := range validInstallationStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions may leave this state.
// CANCELLED is not terminal: cancelled requests can be reopened.
func (s InstallationStatus) IsTerminal() bool {
	return s == InstallationStatusCompleted || s == InstallationStatusRejected
}

// ParseInstallationStatus converts the raw string to InstallationStatus.
func ParseInstallationStatus(value string) (InstallationStatus, error) {
	for _, candidate := range validInstallationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid installation status %q", value)
}
