// internal/entitlement/evaluator.go
package entitlement

import (
	"time"

	"premium-push-workers/internal/models"
)

// DefaultTrialDays is the trial length used when a user has a trial start but
// no recorded trial end.
const DefaultTrialDays = 3

// Result is recomputed on every check. It must not be cached: it depends on now.
type Result struct {
	IsPremium   bool       `json:"isPremium"`
	IsTrial     bool       `json:"isTrial"`
	HasAccess   bool       `json:"hasAccess"`
	TrialEndsAt *time.Time `json:"trialEndsAt,omitempty"`
}

// Evaluator holds the trial policy. It carries no mutable state and is safe
// for concurrent use.
type Evaluator struct {
	trialDays int
	location  *time.Location
}

// NewEvaluator returns an evaluator adding trialDays calendar days in loc.
// A nil location means UTC, a non-positive trialDays means DefaultTrialDays.
func NewEvaluator(trialDays int, loc *time.Location) *Evaluator {
	if trialDays <= 0 {
		trialDays = DefaultTrialDays
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Evaluator{trialDays: trialDays, location: loc}
}

var defaultEvaluator = NewEvaluator(DefaultTrialDays, time.UTC)

// Evaluate uses the default policy: 3 calendar days in UTC.
func Evaluate(user models.User, now time.Time) Result {
	return defaultEvaluator.Evaluate(user, now)
}

func (e *Evaluator) Evaluate(user models.User, now time.Time) Result {
	res := Result{IsPremium: IsPremium(user, now)}

	if end, ok := e.TrialEnd(user); ok {
		res.TrialEndsAt = &end
		res.IsTrial = !now.Before(*user.TrialStartedAt) && now.Before(end)
	}

	res.HasAccess = res.IsPremium || res.IsTrial
	return res
}

// IsPremium applies the paid-plan rule. Expiry is exclusive: a user whose
// expiry equals now is no longer premium.
func IsPremium(user models.User, now time.Time) bool {
	if user.Plan != models.PlanPremium {
		return false
	}
	if user.ExpiryDate == nil {
		return true
	}
	return user.ExpiryDate.After(now)
}

// TrialEnd returns the end of the user's trial window. ok is false when the
// trial rule does not apply (premium plan or trial never started).
func (e *Evaluator) TrialEnd(user models.User) (end time.Time, ok bool) {
	if user.Plan != models.PlanFree || user.TrialStartedAt == nil {
		return time.Time{}, false
	}
	if user.TrialEndedAt != nil {
		return *user.TrialEndedAt, true
	}
	// Calendar days in the configured zone, so a DST shift inside the window
	// yields 71h or 73h rather than a fixed 72h.
	start := user.TrialStartedAt.In(e.location)
	return start.AddDate(0, 0, e.trialDays), true
}
