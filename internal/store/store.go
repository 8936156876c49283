// internal/store/store.go
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	apperrors "premium-push-workers/internal/common/errors"
	"premium-push-workers/internal/common/logger"
	"premium-push-workers/internal/models"
)

const (
	findActiveUserByEmailQuery = `
		SELECT id, email, plan, expiry_date, trial_started_at, trial_ended_at, is_active
		FROM users
		WHERE lower(email) = lower($1) AND is_active = true
		LIMIT 2`

	listActiveDevicesQuery = `
		SELECT device_id, platform, user_id, push_token, is_active, created_at, updated_at
		FROM devices
		WHERE is_active = true
		ORDER BY updated_at DESC`

	listActiveDevicesByUserQuery = `
		SELECT device_id, platform, user_id, push_token, is_active, created_at, updated_at
		FROM devices
		WHERE is_active = true AND user_id = $1
		ORDER BY updated_at DESC`
)

// Store reads users and devices from PostgreSQL. It never opens or closes
// the connection itself.
type Store struct {
	db     *sql.DB
	logger logger.Logger
}

func New(db *sql.DB, log logger.Logger) *Store {
	return &Store{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "store"}),
	}
}

// FindActiveUserByEmail matches case-insensitively on active users. It
// returns a USER_NOT_FOUND error for zero matches and AMBIGUOUS_USER for more
// than one.
func (s *Store) FindActiveUserByEmail(ctx context.Context, email string) (*models.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, apperrors.NewInvalidInputError("email is required")
	}

	rows, err := s.db.QueryContext(ctx, findActiveUserByEmailQuery, email)
	if err != nil {
		return nil, apperrors.NewUserLookupFailedError(err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var (
			u    models.User
			plan string
			exp  sql.NullTime
			ts   sql.NullTime
			te   sql.NullTime
		)
		if err := rows.Scan(&u.ID, &u.Email, &plan, &exp, &ts, &te, &u.IsActive); err != nil {
			return nil, apperrors.NewUserLookupFailedError(fmt.Errorf("scan user: %w", err))
		}
		u.Plan = models.ParsePlan(plan)
		u.ExpiryDate = nullTime(exp)
		u.TrialStartedAt = nullTime(ts)
		u.TrialEndedAt = nullTime(te)
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewUserLookupFailedError(err)
	}

	switch len(users) {
	case 0:
		return nil, apperrors.NewUserNotFoundError(email)
	case 1:
		return &users[0], nil
	default:
		s.logger.Warn("email matches several active users", map[string]interface{}{
			"email": email,
		})
		return nil, apperrors.NewAmbiguousUserError(email, len(users))
	}
}

// ListActiveDevices returns all active devices when userID is nil and only
// the user's active devices otherwise, most recently updated first.
func (s *Store) ListActiveDevices(ctx context.Context, userID *string) ([]models.Device, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if userID == nil {
		rows, err = s.db.QueryContext(ctx, listActiveDevicesQuery)
	} else {
		rows, err = s.db.QueryContext(ctx, listActiveDevicesByUserQuery, *userID)
	}
	if err != nil {
		return nil, apperrors.NewDeviceQueryFailedError(err)
	}
	defer rows.Close()

	var devices []models.Device
	for rows.Next() {
		var (
			d        models.Device
			platform sql.NullString
			owner    sql.NullString
			token    sql.NullString
		)
		if err := rows.Scan(&d.DeviceID, &platform, &owner, &token, &d.IsActive, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, apperrors.NewDeviceQueryFailedError(fmt.Errorf("scan device: %w", err))
		}
		d.Platform = models.ParsePlatform(platform.String)
		d.UserID = nullString(owner)
		d.PushToken = nullString(token)
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDeviceQueryFailedError(err)
	}
	return devices, nil
}

func nullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
