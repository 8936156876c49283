// internal/workers/access/dispatch-premium-push/models.go
package dispatchpremiumpush

import "time"

type Input struct {
	Email      string            `json:"email"`
	Title      string            `json:"title"`
	Body       string            `json:"body"`
	Data       map[string]string `json:"data,omitempty"`
	EvaluateAt *time.Time        `json:"evaluateAt,omitempty"`
}

type Output struct {
	ReportID       string         `json:"reportId"`
	Status         string         `json:"status"`
	Reason         string         `json:"reason"`
	HasAccess      bool           `json:"hasAccess"`
	Total          int            `json:"total"`
	Delivered      int            `json:"delivered"`
	Failed         int            `json:"failed"`
	Skipped        int            `json:"skipped"`
	FailuresByKind map[string]int `json:"failuresByKind,omitempty"`
	ConfigWarnings []string       `json:"configWarnings,omitempty"`
	Cancelled      bool           `json:"cancelled"`
}
