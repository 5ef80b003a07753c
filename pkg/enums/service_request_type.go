package enums

import "fmt"

// ServiceRequestType classifies the unit of field work.
type ServiceRequestType string

const (
	ServiceRequestTypeInstallation   ServiceRequestType = "INSTALLATION"
	ServiceRequestTypeRepair         ServiceRequestType = "REPAIR"
	ServiceRequestTypeMaintenance    ServiceRequestType = "MAINTENANCE"
	ServiceRequestTypeUninstallation ServiceRequestType = "UNINSTALLATION"
)

var validServiceRequestTypes = []ServiceRequestType{
	ServiceRequestTypeInstallation,
	ServiceRequestTypeRepair,
	ServiceRequestTypeMaintenance,
	ServiceRequestTypeUninstallation,
}

// IsValid reports whether the value matches the canonical service request type enum.
func (t ServiceRequestType) IsValid() bool {
	for _, candidate := range validServiceRequestTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseServiceRequestType converts the raw string to ServiceRequestType.
func ParseServiceRequestType(value string) (ServiceRequestType, error) {
	for _, candidate := range validServiceRequestTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid service request type %q", value)
}
