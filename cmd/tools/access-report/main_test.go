package main

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"premium-push-workers/internal/access"
	apperrors "premium-push-workers/internal/common/errors"
	"premium-push-workers/internal/dispatch"
	"premium-push-workers/internal/entitlement"
	"premium-push-workers/internal/linkage"
	"premium-push-workers/internal/models"
	"premium-push-workers/internal/push"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAt(t *testing.T) {
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	got, err := parseAt("", now)
	require.NoError(t, err)
	assert.Equal(t, now, got)

	got, err = parseAt("2024-01-02", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), got)

	got, err = parseAt("2024-01-02T15:04:05+02:00", now)
	require.NoError(t, err)
	assert.Equal(t, 13, got.UTC().Hour())

	_, err = parseAt("yesterday", now)
	assert.Error(t, err)
}

func TestRootCommand_RejectsBadFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		message string
	}{
		{name: "missing email", args: []string{"check"}, message: `required flag(s) "email" not set`},
		{name: "bad time", args: []string{"check", "--email", "a@example.com", "--at", "yesterday"}, message: "invalid --at"},
		{name: "send without body", args: []string{"check", "--email", "a@example.com", "--send", "--title", "Hi"}, message: "--send requires --title and --body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := newRootCommand()
			root.SetArgs(tt.args)
			root.SetOut(&bytes.Buffer{})
			root.SetErr(&bytes.Buffer{})

			err := root.ExecuteContext(context.Background())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestDescribeLookupError(t *testing.T) {
	err := describeLookupError("a@example.com", apperrors.NewUserNotFoundError("a@example.com"))
	assert.EqualError(t, err, `no active user with email "a@example.com"`)

	err = describeLookupError("a@example.com", apperrors.NewAmbiguousUserError("a@example.com", 2))
	assert.Contains(t, err.Error(), "more than one active user")

	cause := apperrors.NewDeviceQueryFailedError(errors.New("connection refused"))
	err = describeLookupError("a@example.com", cause)
	assert.ErrorIs(t, err, apperrors.ErrDeviceQueryFailed)

	other := errors.New("boom")
	assert.Same(t, other, describeLookupError("a@example.com", other))
}

func TestPrintReport(t *testing.T) {
	trialEnd := time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)
	r := &access.Report{
		ReportID:    "r-1",
		Email:       "trial@example.com",
		UserID:      "u-1",
		Plan:        models.PlanFree,
		EvaluatedAt: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Status:      access.StatusDispatched,
		Reason:      access.ReasonDispatched,
		Entitlement: entitlement.Result{IsTrial: true, HasAccess: true, TrialEndsAt: &trialEnd},
		Linkage:     linkage.Summary{Linked: 1, Orphaned: 1},
		LinkedDevices: []linkage.DevicePreview{
			{DeviceID: "d-1", Platform: models.PlatformIOS, TokenPreview: "abc..."},
		},
		RecentOrphans: []linkage.DevicePreview{
			{DeviceID: "d-9", Platform: models.PlatformAndroid, TokenPreview: "zzz..."},
		},
		Dispatch: &dispatch.BatchResult{
			BatchID: "b-1",
			Total:   1,
			Failed:  1,
			Outcomes: []dispatch.Outcome{
				{DeviceID: "d-1", Provider: "fcm", Status: dispatch.StatusFailed, ErrorKind: push.KindUnregistered, Error: "token unregistered"},
			},
		},
		Warnings: []string{"1 active device has no owner"},
	}

	var buf bytes.Buffer
	printReport(&buf, r)
	out := buf.String()

	assert.Contains(t, out, "trial@example.com")
	assert.Contains(t, out, "yes (ends 2024-01-04T00:00:00Z)")
	assert.Contains(t, out, "Recently active orphaned devices")
	assert.Contains(t, out, "d-9")
	assert.Contains(t, out, "Dispatch b-1: 1 total, 0 delivered, 1 failed, 0 skipped")
	assert.Contains(t, out, "unregistered")
	assert.Contains(t, out, "WARNING: 1 active device has no owner")
}
