package models

import "time"

// Plan is the subscription plan stored on the user row.
type Plan string

const (
	PlanFree    Plan = "free"
	PlanPremium Plan = "premium"
)

// ParsePlan maps the raw column value to a Plan. Anything that is not
// "premium" is treated as free.
func ParsePlan(raw string) Plan {
	if Plan(raw) == PlanPremium {
		return PlanPremium
	}
	return PlanFree
}

type User struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	Plan           Plan       `json:"plan"`
	ExpiryDate     *time.Time `json:"expiryDate,omitempty"` // nil = no expiry
	TrialStartedAt *time.Time `json:"trialStartedAt,omitempty"`
	TrialEndedAt   *time.Time `json:"trialEndedAt,omitempty"`
	IsActive       bool       `json:"isActive"`
}
