// internal/linkage/resolver.go
package linkage

import (
	"fmt"
	"time"

	"premium-push-workers/internal/models"
)

const tokenPreviewLength = 20

// Resolution partitions a device pool for one user. Linked and Unlinked only
// ever hold active devices.
type Resolution struct {
	UserID         string
	Linked         []models.Device
	LinkedInactive []models.Device
	Unlinked       []models.Device
	Integrity      *IntegrityWarning
}

// IntegrityWarning flags orphaned devices in the pool. It is reported and
// never blocks dispatch.
type IntegrityWarning struct {
	OrphanedCount int             `json:"orphanedCount"`
	Devices       []DevicePreview `json:"devices"`
	Message       string          `json:"message"`
}

type DevicePreview struct {
	DeviceID     string          `json:"deviceId"`
	Platform     models.Platform `json:"platform"`
	TokenPreview string          `json:"tokenPreview"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

type Summary struct {
	Linked           int  `json:"linked"`
	LinkedInactive   int  `json:"linkedInactive"`
	Unlinked         int  `json:"unlinked"`
	Orphaned         int  `json:"orphaned"`
	IntegrityWarning bool `json:"integrityWarning"`
}

// Resolve splits devices by strict owner equality. Inactive devices owned by
// someone else, or by nobody, are out of scope and dropped.
func Resolve(userID string, devices []models.Device) Resolution {
	res := Resolution{UserID: userID}
	var orphans []DevicePreview

	for _, d := range devices {
		switch {
		case d.OwnedBy(userID) && d.IsActive:
			res.Linked = append(res.Linked, d)
		case d.OwnedBy(userID):
			res.LinkedInactive = append(res.LinkedInactive, d)
		case d.IsActive:
			res.Unlinked = append(res.Unlinked, d)
			if d.IsOrphaned() {
				orphans = append(orphans, Preview(d))
			}
		}
	}

	if len(orphans) > 0 {
		res.Integrity = &IntegrityWarning{
			OrphanedCount: len(orphans),
			Devices:       orphans,
			Message: fmt.Sprintf("%d active device(s) have no linked user and cannot receive targeted notifications",
				len(orphans)),
		}
	}
	return res
}

func (r Resolution) Summary() Summary {
	orphaned := 0
	if r.Integrity != nil {
		orphaned = r.Integrity.OrphanedCount
	}
	return Summary{
		Linked:           len(r.Linked),
		LinkedInactive:   len(r.LinkedInactive),
		Unlinked:         len(r.Unlinked),
		Orphaned:         orphaned,
		IntegrityWarning: r.Integrity != nil,
	}
}

// Preview is the diagnostic view of a device.
func Preview(d models.Device) DevicePreview {
	return DevicePreview{
		DeviceID:     d.DeviceID,
		Platform:     d.Platform,
		TokenPreview: TokenPreview(d.Token()),
		UpdatedAt:    d.UpdatedAt,
	}
}

// TokenPreview shortens a push token for logs and reports. The preview never
// shows more than half of a token, so short tokens are not printed whole.
func TokenPreview(token string) string {
	if token == "" {
		return ""
	}
	n := tokenPreviewLength
	if half := len(token) / 2; half < n {
		n = half
	}
	return token[:n] + "..."
}

// RecentOrphans lists orphaned devices updated within window of now. This is
// a diagnostic heuristic ("probably the device the user just logged in on")
// and must not feed entitlement or dispatch.
func RecentOrphans(unlinked []models.Device, now time.Time, window time.Duration) []DevicePreview {
	cutoff := now.Add(-window)
	var out []DevicePreview
	for _, d := range unlinked {
		if d.IsOrphaned() && !d.UpdatedAt.Before(cutoff) {
			out = append(out, Preview(d))
		}
	}
	return out
}
