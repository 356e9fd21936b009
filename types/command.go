package types

import "time"

// Command status values. A command is created pending, claimed to sent when
// handed to the device in a poll response, and resolved to acknowledged or
// failed by the device's next status report. NotNow sends it back to pending.
const (
	CommandStatusPending      = "pending"
	CommandStatusSent         = "sent"
	CommandStatusAcknowledged = "acknowledged"
	CommandStatusFailed       = "failed"
)

// Command is a queued management instruction for a single device. The
// CommandUUID matches the identifier embedded in Payload; it is the key the
// device echoes back when reporting status.
type Command struct {
	CommandUUID string `gorm:"primaryKey"`
	DeviceUDID  string
	RequestType string
	Payload     []byte
	Status      string `gorm:"default:pending"`
	ErrorString string

	CreatedAt      time.Time
	SentAt         time.Time
	AcknowledgedAt time.Time
	UpdatedAt      time.Time
}
