package director

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/focusphone/mdmserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDeviceRequiresUDID(t *testing.T) {
	_, cleanup := setupMockDB(t)
	defer cleanup()

	_, err := GetDevice("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no device UDID set")
}

func TestSetPushCredentialsRequiresBoth(t *testing.T) {
	_, cleanup := setupMockDB(t)
	defer cleanup()

	err := SetPushCredentials("udid-1", "token-only", "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "both")

	err = SetPushCredentials("udid-1", "", "magic-only", nil)
	require.Error(t, err)
}

func TestUpsertDeviceCreatesNewRecord(t *testing.T) {
	mockSpy, cleanup := setupMockDB(t)
	defer cleanup()

	mockSpy.ExpectQuery(`SELECT \* FROM "devices" WHERE ud_id = \$1`).
		WithArgs("1234-5678-123456").
		WillReturnRows(sqlmock.NewRows([]string{"ud_id"}))

	mockSpy.ExpectBegin()
	mockSpy.ExpectExec(`INSERT INTO "devices"`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mockSpy.ExpectCommit()

	device, err := UpsertDevice(types.Device{
		UDID:      "1234-5678-123456",
		OSVersion: "17.4",
	})
	require.NoError(t, err)
	assert.Equal(t, types.DeviceStatusPending, device.Status)
	assert.Equal(t, "Device-1234-567", device.DeviceName)
	assert.False(t, device.EnrolledAt.IsZero())

	require.NoError(t, mockSpy.ExpectationsWereMet())
}

func TestUpsertDeviceResetsOnReenrollment(t *testing.T) {
	mockSpy, cleanup := setupMockDB(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"ud_id", "status", "push_token", "push_magic"}).
		AddRow("1234-5678-123456", types.DeviceStatusRemoved, "stale-token", "stale-magic")
	mockSpy.ExpectQuery(`SELECT \* FROM "devices" WHERE ud_id = \$1`).
		WithArgs("1234-5678-123456").
		WillReturnRows(rows)

	mockSpy.ExpectBegin()
	mockSpy.ExpectExec(`UPDATE "devices" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockSpy.ExpectCommit()

	device, err := UpsertDevice(types.Device{UDID: "1234-5678-123456"})
	require.NoError(t, err)
	assert.Equal(t, types.DeviceStatusPending, device.Status)

	require.NoError(t, mockSpy.ExpectationsWereMet())
}

func TestHasPushCredentials(t *testing.T) {
	device := types.Device{}
	assert.False(t, device.HasPushCredentials())

	device.PushToken = "token"
	assert.False(t, device.HasPushCredentials())

	device.PushMagic = "magic"
	assert.True(t, device.HasPushCredentials())
}

func TestNewOSVersion(t *testing.T) {
	assert.True(t, newOSVersion("17.3", "17.4"))
	assert.True(t, newOSVersion("17.4", "18.0"))
	assert.False(t, newOSVersion("17.4", "17.4"))
	assert.False(t, newOSVersion("17.4", "17.3"))
	assert.False(t, newOSVersion("", "17.4"))
	assert.False(t, newOSVersion("17.4", ""))
	assert.False(t, newOSVersion("not-a-version", "17.4"))
}

func TestSeedRestrictionProfilesSkipsPopulatedTable(t *testing.T) {
	mockSpy, cleanup := setupMockDB(t)
	defer cleanup()

	mockSpy.ExpectQuery(`SELECT count\(\*\) FROM "restriction_profiles"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	require.NoError(t, SeedRestrictionProfiles())
	require.NoError(t, mockSpy.ExpectationsWereMet())
}

func TestRestrictionProfileAllowedBundleIDs(t *testing.T) {
	profile := types.RestrictionProfile{
		AllowPhone:    true,
		AllowMessages: true,
		AllowContacts: true,
	}
	bundleIDs := profile.AllowedBundleIDs()
	assert.Contains(t, bundleIDs, "com.apple.mobilephone")
	assert.Contains(t, bundleIDs, "com.apple.MobileSMS")
	assert.Contains(t, bundleIDs, "com.apple.MobileAddressBook")
	assert.NotContains(t, bundleIDs, "com.apple.camera")

	callOnly := types.RestrictionProfile{AllowPhone: true}
	assert.Equal(t, []string{"com.apple.mobilephone"}, callOnly.AllowedBundleIDs())
}
