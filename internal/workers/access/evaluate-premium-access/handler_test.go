// internal/workers/access/evaluate-premium-access/handler_test.go
package evaluatepremiumaccess

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"premium-push-workers/internal/access"
	"premium-push-workers/internal/common/config"
	apperrors "premium-push-workers/internal/common/errors"
	"premium-push-workers/internal/common/logger"
	"premium-push-workers/internal/entitlement"
	"premium-push-workers/internal/linkage"
	"premium-push-workers/pkg/registry"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeChecker struct {
	report *access.Report
	err    error
	email  string
	now    time.Time
}

func (f *fakeChecker) Preview(_ context.Context, email string, now time.Time) (*access.Report, error) {
	f.email, f.now = email, now
	return f.report, f.err
}

func loadTestRegistry(t *testing.T) *registry.ActivityRegistry {
	reg, err := registry.LoadRegistry(filepath.Join("..", "..", "..", "..", "configs", "activity-registry.json"))
	require.NoError(t, err)
	return reg
}

func createTestHandler(t *testing.T, checker AccessChecker) *Handler {
	cfg := LoadConfig(&config.Config{}, loadTestRegistry(t))
	h := NewHandler(cfg, checker, logger.NewTestLogger(t))
	h.now = func() time.Time { return time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC) }
	return h
}

func job(vars string) entities.Job {
	return entities.Job{ActivatedJob: &pb.ActivatedJob{Key: 1, Type: TaskType, Variables: vars, Retries: 3}}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_Success(t *testing.T) {
	trialEnd := time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)
	checker := &fakeChecker{report: &access.Report{
		ReportID:    "r-1",
		UserID:      "u-1",
		Status:      access.StatusPreview,
		Reason:      access.ReasonPreview,
		Entitlement: entitlement.Result{IsTrial: true, HasAccess: true, TrialEndsAt: &trialEnd},
		Linkage:     linkage.Summary{Linked: 2, Orphaned: 1},
		Integrity:   &linkage.IntegrityWarning{OrphanedCount: 1, Message: "1 active device has no owner"},
	}}
	h := createTestHandler(t, checker)

	out, err := h.Execute(context.Background(), &Input{Email: "  trial@example.com "})
	require.NoError(t, err)

	assert.Equal(t, "trial@example.com", checker.email)
	assert.Equal(t, h.now(), checker.now)
	assert.Equal(t, "r-1", out.ReportID)
	assert.True(t, out.HasAccess)
	assert.True(t, out.IsTrial)
	assert.False(t, out.IsPremium)
	assert.Equal(t, &trialEnd, out.TrialEndsAt)
	assert.Equal(t, 2, out.LinkedDevices)
	assert.Equal(t, 1, out.OrphanedDevices)
	assert.Equal(t, "1 active device has no owner", out.IntegrityWarning)
}

func TestHandler_Execute_EvaluateAtOverridesClock(t *testing.T) {
	checker := &fakeChecker{report: &access.Report{Status: access.StatusNotEntitled}}
	h := createTestHandler(t, checker)
	at := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)

	out, err := h.Execute(context.Background(), &Input{Email: "trial@example.com", EvaluateAt: &at})
	require.NoError(t, err)
	assert.Equal(t, at, checker.now)
	assert.False(t, out.HasAccess)
	assert.Equal(t, "not_entitled", out.Status)
}

// ==========================
// Error Handling Tests
// ==========================

func TestHandler_Execute_Errors(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		err      error
		expected error
	}{
		{name: "invalid email", email: "not-an-email", expected: apperrors.ErrInvalidInput},
		{name: "user not found", email: "ghost@example.com", err: apperrors.NewUserNotFoundError("ghost@example.com"), expected: apperrors.ErrUserNotFound},
		{name: "ambiguous user", email: "dup@example.com", err: apperrors.NewAmbiguousUserError("dup@example.com", 2), expected: apperrors.ErrAmbiguousUser},
		{name: "device query", email: "a@example.com", err: apperrors.NewDeviceQueryFailedError(errors.New("timeout")), expected: apperrors.ErrDeviceQueryFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := createTestHandler(t, &fakeChecker{err: tt.err})
			out, err := h.Execute(context.Background(), &Input{Email: tt.email})
			assert.Nil(t, out)
			assert.True(t, errors.Is(err, tt.expected), "got %v", err)
		})
	}
}

func TestHandler_ParseInput(t *testing.T) {
	h := createTestHandler(t, &fakeChecker{})

	input, err := h.parseInput(job(`{"email":"a@example.com","evaluateAt":"2024-01-02T00:00:00Z","processId":"p-1"}`))
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", input.Email)
	require.NotNil(t, input.EvaluateAt)
	assert.Equal(t, 2, input.EvaluateAt.Day())

	tests := []struct {
		name string
		vars string
	}{
		{"missing email", `{}`},
		{"email not a string", `{"email":42}`},
		{"bad evaluateAt", `{"email":"a@example.com","evaluateAt":"tomorrow"}`},
		{"not an object", `[1,2]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.parseInput(job(tt.vars))
			assert.True(t, errors.Is(err, apperrors.ErrInvalidInput), "got %v", err)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	cfg := LoadConfig(&config.Config{
		Workers: map[string]config.WorkerConfig{TaskType: {Timeout: 5000}},
	}, nil)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Empty(t, cfg.InputSchema)

	cfg = LoadConfig(&config.Config{}, loadTestRegistry(t))
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.NotEmpty(t, cfg.InputSchema)
}
