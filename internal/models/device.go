// internal/models/device.go
package models

import (
	"strings"
	"time"
)

type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformUnknown Platform = "unknown"
)

// ParsePlatform normalises the raw platform column.
func ParsePlatform(raw string) Platform {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "ios", "iphone", "ipad":
		return PlatformIOS
	case "android":
		return PlatformAndroid
	default:
		return PlatformUnknown
	}
}

// Device is a registered app installation. UserID is nil for devices that
// were never linked to an account.
type Device struct {
	DeviceID  string    `json:"deviceId"`
	Platform  Platform  `json:"platform"`
	UserID    *string   `json:"userId,omitempty"`
	PushToken *string   `json:"pushToken,omitempty"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (d Device) IsOrphaned() bool {
	return d.UserID == nil
}

// OwnedBy reports whether the device is linked to userID.
func (d Device) OwnedBy(userID string) bool {
	return d.UserID != nil && *d.UserID == userID
}

// Token returns the push token or "" when none is registered.
func (d Device) Token() string {
	if d.PushToken == nil {
		return ""
	}
	return *d.PushToken
}
