package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	apperrors "premium-push-workers/internal/common/errors"
	"premium-push-workers/internal/common/logger"
	"premium-push-workers/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

var (
	userColumns   = []string{"id", "email", "plan", "expiry_date", "trial_started_at", "trial_ended_at", "is_active"}
	deviceColumns = []string{"device_id", "platform", "user_id", "push_token", "is_active", "created_at", "updated_at"}
	userQuery     = regexp.QuoteMeta("FROM users WHERE lower(email) = lower($1) AND is_active = true")
	devicesQuery  = regexp.QuoteMeta("FROM devices WHERE is_active = true ORDER BY")
	scopedQuery   = regexp.QuoteMeta("FROM devices WHERE is_active = true AND user_id = $1")
)

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, logger.NewTestLogger(t)), mock, db
}

// ==========================
// FindActiveUserByEmail
// ==========================

func TestFindActiveUserByEmail_Success(t *testing.T) {
	s, mock, _ := newTestStore(t)
	expiry := time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(userQuery).
		WithArgs("Premium@Example.com").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow("u-1", "premium@example.com", "premium", expiry, nil, nil, true))

	user, err := s.FindActiveUserByEmail(context.Background(), "  Premium@Example.com ")
	require.NoError(t, err)

	assert.Equal(t, "u-1", user.ID)
	assert.Equal(t, models.PlanPremium, user.Plan)
	require.NotNil(t, user.ExpiryDate)
	assert.True(t, user.ExpiryDate.Equal(expiry))
	assert.Nil(t, user.TrialStartedAt)
	assert.Nil(t, user.TrialEndedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindActiveUserByEmail_Errors(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		setup    func(mock sqlmock.Sqlmock)
		expected error
	}{
		{
			name: "no match",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(userQuery).WillReturnRows(sqlmock.NewRows(userColumns))
			},
			expected: apperrors.ErrUserNotFound,
		},
		{
			name: "two matches",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(userQuery).WillReturnRows(sqlmock.NewRows(userColumns).
					AddRow("u-1", "dup@example.com", "free", nil, start, nil, true).
					AddRow("u-2", "DUP@example.com", "free", nil, nil, nil, true))
			},
			expected: apperrors.ErrAmbiguousUser,
		},
		{
			name: "connection failure",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(userQuery).WillReturnError(errors.New("connection refused"))
			},
			expected: apperrors.ErrUserLookupFailed,
		},
		{
			name: "row error",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(userQuery).WillReturnRows(sqlmock.NewRows(userColumns).
					AddRow("u-1", "x@example.com", "free", nil, nil, nil, true).
					RowError(0, errors.New("broken pipe")))
			},
			expected: apperrors.ErrUserLookupFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock, _ := newTestStore(t)
			tt.setup(mock)

			user, err := s.FindActiveUserByEmail(context.Background(), "dup@example.com")
			assert.Nil(t, user)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.expected), "got %v", err)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestFindActiveUserByEmail_LookupFailureIsRetryable(t *testing.T) {
	s, mock, _ := newTestStore(t)
	mock.ExpectQuery(userQuery).WillReturnError(errors.New("timeout"))

	_, err := s.FindActiveUserByEmail(context.Background(), "a@b.c")
	std, ok := apperrors.AsStandardError(err)
	require.True(t, ok)
	assert.True(t, std.Retryable)
}

func TestFindActiveUserByEmail_EmptyEmail(t *testing.T) {
	s, mock, _ := newTestStore(t)

	_, err := s.FindActiveUserByEmail(context.Background(), "   ")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// ListActiveDevices
// ==========================

func TestListActiveDevices_Unscoped(t *testing.T) {
	s, mock, _ := newTestStore(t)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(devicesQuery).
		WillReturnRows(sqlmock.NewRows(deviceColumns).
			AddRow("d-1", "iOS", "u-1", "tok-1", true, now, now).
			AddRow("d-2", "android", nil, "tok-2", true, now, now.Add(-time.Hour)).
			AddRow("d-3", nil, "u-2", nil, true, now, now.Add(-2*time.Hour)))

	devices, err := s.ListActiveDevices(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, devices, 3)

	assert.Equal(t, models.PlatformIOS, devices[0].Platform)
	assert.True(t, devices[0].OwnedBy("u-1"))
	assert.Equal(t, "tok-1", devices[0].Token())

	assert.True(t, devices[1].IsOrphaned())
	assert.Equal(t, models.PlatformAndroid, devices[1].Platform)

	assert.Equal(t, models.PlatformUnknown, devices[2].Platform)
	assert.Nil(t, devices[2].PushToken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListActiveDevices_Scoped(t *testing.T) {
	s, mock, _ := newTestStore(t)
	now := time.Now().UTC()
	userID := "u-1"

	mock.ExpectQuery(scopedQuery).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows(deviceColumns).
			AddRow("d-1", "android", userID, "tok-1", true, now, now))

	devices, err := s.ListActiveDevices(context.Background(), &userID)
	require.NoError(t, err)
	assert.Len(t, devices, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListActiveDevices_QueryFailure(t *testing.T) {
	s, mock, _ := newTestStore(t)
	mock.ExpectQuery(devicesQuery).WillReturnError(errors.New("relation \"devices\" does not exist"))

	devices, err := s.ListActiveDevices(context.Background(), nil)
	assert.Nil(t, devices)
	assert.True(t, errors.Is(err, apperrors.ErrDeviceQueryFailed))
}
