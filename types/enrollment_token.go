package types

import "time"

// EnrollmentToken seeds one enrollment session. The token string is a
// capability: it must be presented in the enrollment document URL. DeviceUDID
// is set when Authenticate correlation links an anonymous device to this
// session; Used flips when TokenUpdate completes the enrollment.
type EnrollmentToken struct {
	Token      string `gorm:"primaryKey"`
	OwnerID    string
	ProfileID  string
	DeviceUDID string

	CreatedAt      time.Time
	ExpiresAt      time.Time
	LastAccessedAt time.Time
	Used           bool
	UsedAt         time.Time
}

// IsValid reports whether the token can still be presented: not yet consumed
// and not past its expiry.
func (token *EnrollmentToken) IsValid(now time.Time) bool {
	return !token.Used && now.Before(token.ExpiresAt)
}
