package domain

import (
	"encoding/json"
	"fmt"
)

// Status is the monitoring state reported by the backend for a resource.
type Status string

const (
	StatusWarning  Status = "WARNING"
	StatusCritical Status = "CRITICAL"
	StatusDown     Status = "DOWN"
	StatusUnknown  Status = "UNKNOWN"
)

// Credentials identify the service account used against the monitoring API.
type Credentials struct {
	Login    string
	Password string
	BaseURL  string // e.g. https://centreon.example.com/centreon/api/latest
}

// AuthToken is the opaque session token returned by /login.
type AuthToken string

// AlertKey is the identity of an alert on the backend.
type AlertKey struct {
	ServiceID int64
	HostID    int64
}

func (k AlertKey) String() string { return fmt.Sprintf("%d/%d", k.HostID, k.ServiceID) }

// Alert is one unhandled service problem as returned by the backend.
type Alert struct {
	ServiceID   int64  `json:"service_id"`
	HostID      int64  `json:"host_id"`
	ServiceName string `json:"service_name"`
	HostName    string `json:"host_name"`
	Status      Status `json:"status"`
	Information string `json:"information,omitempty"`

	// HostMissing is set when the backend sent no host name; HostName then
	// holds a display placeholder.
	HostMissing bool `json:"-"`

	// Raw is the resource exactly as the backend sent it; it is what the
	// snapshot file stores.
	Raw json.RawMessage `json:"-"`
}

func (a Alert) Key() AlertKey { return AlertKey{ServiceID: a.ServiceID, HostID: a.HostID} }

// HasIdentity reports whether both ids are present; alerts without them
// cannot be acknowledged.
func (a Alert) HasIdentity() bool { return a.ServiceID != 0 && a.HostID != 0 }
