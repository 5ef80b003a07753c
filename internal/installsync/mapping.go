package installsync

import "github.com/aquaflowhq/aquaflow-backend/pkg/enums"

// MapServiceToInstallation translates an installation-typed service request
// status into the installation request status that must mirror it. The second
// return is false for statuses that have no counterpart (CREATED, ASSIGNED).
func MapServiceToInstallation(status enums.ServiceRequestStatus) (enums.InstallationStatus, bool) {
	switch status {
	case enums.ServiceRequestStatusScheduled:
		return enums.InstallationStatusScheduled, true
	case enums.ServiceRequestStatusInProgress:
		return enums.InstallationStatusInProgress, true
	case enums.ServiceRequestStatusPaymentPending:
		return enums.InstallationStatusPaymentPending, true
	case enums.ServiceRequestStatusCompleted:
		return enums.InstallationStatusCompleted, true
	case enums.ServiceRequestStatusCancelled:
		return enums.InstallationStatusCancelled, true
	default:
		return "", false
	}
}

// MapInstallationToService is the inverse table, used when the installation
// request side changes first.
func MapInstallationToService(status enums.InstallationStatus) (enums.ServiceRequestStatus, bool) {
	switch status {
	case enums.InstallationStatusScheduled:
		return enums.ServiceRequestStatusScheduled, true
	case enums.InstallationStatusInProgress:
		return enums.ServiceRequestStatusInProgress, true
	case enums.InstallationStatusPaymentPending:
		return enums.ServiceRequestStatusPaymentPending, true
	case enums.InstallationStatusCompleted:
		return enums.ServiceRequestStatusCompleted, true
	case enums.InstallationStatusCancelled:
		return enums.ServiceRequestStatusCancelled, true
	default:
		return "", false
	}
}
