package linkage

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"premium-push-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

var baseTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func device(id string, owner *string, active bool, token string) models.Device {
	d := models.Device{
		DeviceID:  id,
		Platform:  models.PlatformAndroid,
		UserID:    owner,
		IsActive:  active,
		CreatedAt: baseTime,
		UpdatedAt: baseTime,
	}
	if token != "" {
		d.PushToken = strPtr(token)
	}
	return d
}

func ids(devices []models.Device) []string {
	out := make([]string, 0, len(devices))
	for _, d := range devices {
		out = append(out, d.DeviceID)
	}
	return out
}

// ==========================
// Partition Tests
// ==========================

func TestResolve_Partitions(t *testing.T) {
	pool := []models.Device{
		device("mine-1", strPtr("u-1"), true, "tok-1"),
		device("mine-2", strPtr("u-1"), true, "tok-2"),
		device("mine-old", strPtr("u-1"), false, "tok-3"),
		device("orphan", nil, true, "tok-4"),
		device("foreign", strPtr("u-2"), true, "tok-5"),
		device("foreign-old", strPtr("u-2"), false, "tok-6"),
		device("orphan-old", nil, false, "tok-7"),
	}

	res := Resolve("u-1", pool)

	assert.Equal(t, []string{"mine-1", "mine-2"}, ids(res.Linked))
	assert.Equal(t, []string{"mine-old"}, ids(res.LinkedInactive))
	assert.Equal(t, []string{"orphan", "foreign"}, ids(res.Unlinked))

	require.NotNil(t, res.Integrity)
	assert.Equal(t, 1, res.Integrity.OrphanedCount)
	assert.Equal(t, "orphan", res.Integrity.Devices[0].DeviceID)

	assert.Equal(t, Summary{Linked: 2, LinkedInactive: 1, Unlinked: 2, Orphaned: 1, IntegrityWarning: true}, res.Summary())
}

func TestResolve_ActivePoolIsCoveredExactlyOnce(t *testing.T) {
	owners := []*string{strPtr("u-1"), strPtr("u-2"), nil}
	var pool []models.Device
	for i := 0; i < 30; i++ {
		pool = append(pool, device(fmt.Sprintf("d-%d", i), owners[i%len(owners)], true, fmt.Sprintf("tok-%d", i)))
	}

	res := Resolve("u-1", pool)

	seen := map[string]int{}
	for _, d := range res.Linked {
		seen[d.DeviceID]++
	}
	for _, d := range res.Unlinked {
		seen[d.DeviceID]++
	}
	assert.Len(t, seen, len(pool))
	for id, n := range seen {
		assert.Equal(t, 1, n, id)
	}
	assert.Empty(t, res.LinkedInactive)
}

func TestResolve_NoOrphansNoWarning(t *testing.T) {
	res := Resolve("u-1", []models.Device{
		device("mine", strPtr("u-1"), true, "tok"),
		device("foreign", strPtr("u-2"), true, "tok"),
	})
	assert.Nil(t, res.Integrity)
	assert.False(t, res.Summary().IntegrityWarning)
}

func TestResolve_AllOrphaned(t *testing.T) {
	res := Resolve("u-1", []models.Device{
		device("a", nil, true, "tok-a"),
		device("b", nil, true, ""),
	})
	assert.Empty(t, res.Linked)
	require.NotNil(t, res.Integrity)
	assert.Equal(t, 2, res.Integrity.OrphanedCount)
	assert.Contains(t, res.Integrity.Message, "2 active device(s)")
}

func TestResolve_EmptyPool(t *testing.T) {
	res := Resolve("u-1", nil)
	assert.Equal(t, Summary{}, res.Summary())
}

// ==========================
// Diagnostics
// ==========================

func TestTokenPreview(t *testing.T) {
	long := strings.Repeat("a", 40)
	assert.Equal(t, strings.Repeat("a", 20)+"...", TokenPreview(long))
	assert.Equal(t, "sh...", TokenPreview("short"))
	assert.Equal(t, "test-pu...", TokenPreview("test-push-token"))
	assert.Equal(t, strings.Repeat("a", 10)+"...", TokenPreview(strings.Repeat("a", 20)))
	assert.Equal(t, "...", TokenPreview("x"))
	assert.Equal(t, "", TokenPreview(""))
}

func TestRecentOrphans(t *testing.T) {
	now := baseTime.Add(48 * time.Hour)
	fresh := device("fresh", nil, true, "tok")
	fresh.UpdatedAt = now.Add(-10 * time.Minute)
	stale := device("stale", nil, true, "tok")
	stale.UpdatedAt = now.Add(-3 * time.Hour)
	foreign := device("foreign", strPtr("u-2"), true, "tok")
	foreign.UpdatedAt = now

	got := RecentOrphans([]models.Device{fresh, stale, foreign}, now, time.Hour)
	require.Len(t, got, 1)
	assert.Equal(t, "fresh", got[0].DeviceID)
}
