package types

import "time"

// Device status values. Transitions run pending -> enrolled -> managed ->
// unenrolling -> removed; removed -> pending happens on re-enrollment when a
// known UDID sends Authenticate again.
const (
	DeviceStatusPending     = "pending"
	DeviceStatusEnrolled    = "enrolled"
	DeviceStatusManaged     = "managed"
	DeviceStatusUnenrolling = "unenrolling"
	DeviceStatusRemoved     = "removed"
)

type Device struct {
	UDID         string `gorm:"primaryKey"`
	DeviceName   string
	Model        string
	ModelName    string
	OSVersion    string
	BuildVersion string
	SerialNumber string

	// APNs wake credentials. PushToken is the hex encoding of the raw token
	// bytes from TokenUpdate. Token and magic are stored both-or-neither.
	PushToken   string
	PushMagic   string
	UnlockToken []byte

	Status string `gorm:"default:pending"`

	OwnerID   string
	ProfileID string

	Commands []Command `gorm:"foreignKey:DeviceUDID"`

	EnrolledAt    time.Time
	LastCheckedIn time.Time
	UpdatedAt     time.Time
}

// HasPushCredentials reports whether the device can be woken via APNs.
func (device *Device) HasPushCredentials() bool {
	return device.PushToken != "" && device.PushMagic != ""
}
