// internal/workers/access/evaluate-premium-access/models.go
package evaluatepremiumaccess

import "time"

type Input struct {
	Email      string     `json:"email"`
	EvaluateAt *time.Time `json:"evaluateAt,omitempty"`
}

// Output is flattened into process variables on completion.
type Output struct {
	ReportID         string     `json:"reportId"`
	UserID           string     `json:"userId"`
	HasAccess        bool       `json:"hasAccess"`
	IsPremium        bool       `json:"isPremium"`
	IsTrial          bool       `json:"isTrial"`
	TrialEndsAt      *time.Time `json:"trialEndsAt"`
	Status           string     `json:"status"`
	Reason           string     `json:"reason"`
	LinkedDevices    int        `json:"linkedDevices"`
	OrphanedDevices  int        `json:"orphanedDevices"`
	IntegrityWarning string     `json:"integrityWarning,omitempty"`
}
