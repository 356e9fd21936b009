package director

import (
	intErrors "errors"
	"fmt"
	"time"

	"github.com/focusphone/mdmserver/db"
	"github.com/focusphone/mdmserver/types"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// TokenLifetime is how long an issued enrollment token stays presentable.
const TokenLifetime = time.Hour

// CorrelationWindow bounds how far back Authenticate correlation looks at
// token access times. Wide enough for "device just downloaded its profile and
// is enrolling now", narrow enough to limit collisions between concurrent
// enrollments.
const CorrelationWindow = time.Hour

// IssueToken creates a new enrollment session for an owner, optionally
// pinning a restriction profile to apply once the device enrolls.
func IssueToken(ownerID, profileID string) (types.EnrollmentToken, error) {
	token := types.EnrollmentToken{
		Token:     uuid.New().String(),
		OwnerID:   ownerID,
		ProfileID: profileID,
		ExpiresAt: time.Now().Add(TokenLifetime),
	}

	if ownerID == "" {
		err := fmt.Errorf("no owner set")
		return token, errors.Wrap(err, "IssueToken")
	}

	if err := db.DB.Create(&token).Error; err != nil {
		return token, errors.Wrap(err, "IssueToken")
	}

	InfoLogger(LogHolder{
		Message:         "Issued enrollment token",
		EnrollmentToken: token.Token,
		TokenOwner:      ownerID,
	})
	return token, nil
}

// ValidateTokenForFetch checks a token presented on the enrollment document
// URL and stamps its access time. The access time is what Authenticate
// correlation later orders on.
func ValidateTokenForFetch(tokenString string) (types.EnrollmentToken, error) {
	var token types.EnrollmentToken

	err := db.DB.Where("token = ?", tokenString).First(&token).Error
	if err != nil {
		return token, errors.Wrap(err, "ValidateTokenForFetch")
	}

	now := time.Now()
	if !token.IsValid(now) {
		err := fmt.Errorf("token expired or already used")
		return token, errors.Wrap(err, "ValidateTokenForFetch")
	}

	err = db.DB.Model(&types.EnrollmentToken{}).
		Where("token = ?", token.Token).
		Update("last_accessed_at", now).Error
	if err != nil {
		return token, errors.Wrap(err, "ValidateTokenForFetch: stamp access")
	}
	token.LastAccessedAt = now

	return token, nil
}

// CorrelateDevice infers which pending enrollment session an anonymous
// Authenticate belongs to. Authenticate carries no caller data, so among
// unused, unexpired tokens not yet linked to a device, the one most recently
// accessed inside the correlation window wins. The match is linked (the
// token's device field is set) but not consumed; Authenticate can repeat
// before enrollment completes. Zero candidates is not an error - the device
// simply enrolls unattributed.
func CorrelateDevice(udid string) (*types.EnrollmentToken, error) {
	var token types.EnrollmentToken

	now := time.Now()
	windowStart := now.Add(-CorrelationWindow)

	err := db.DB.
		Where("used = ?", false).
		Where("expires_at > ?", now).
		Where("device_ud_id = ?", "").
		Where("last_accessed_at > ?", windowStart).
		Order("last_accessed_at desc").
		First(&token).Error
	if err != nil {
		if intErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "CorrelateDevice")
	}

	err = db.DB.Model(&types.EnrollmentToken{}).
		Where("token = ?", token.Token).
		Update("device_ud_id", udid).Error
	if err != nil {
		return nil, errors.Wrap(err, "CorrelateDevice: link device")
	}
	token.DeviceUDID = udid

	InfoLogger(LogHolder{
		Message:         "Correlated device with enrollment token",
		DeviceUDID:      udid,
		EnrollmentToken: token.Token,
		TokenOwner:      token.OwnerID,
	})
	return &token, nil
}

// TokenForDevice returns the unused token linked to a device, if any.
func TokenForDevice(udid string) (*types.EnrollmentToken, error) {
	var token types.EnrollmentToken

	err := db.DB.
		Where("device_ud_id = ?", udid).
		Where("used = ?", false).
		First(&token).Error
	if err != nil {
		if intErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "TokenForDevice")
	}
	return &token, nil
}

// ConsumeToken marks a token used. Idempotent: consuming a consumed token is
// a no-op.
func ConsumeToken(token *types.EnrollmentToken) error {
	if token.Used {
		return nil
	}

	now := time.Now()
	err := db.DB.Model(&types.EnrollmentToken{}).
		Where("token = ? AND used = ?", token.Token, false).
		Updates(map[string]interface{}{
			"used":    true,
			"used_at": now,
		}).Error
	if err != nil {
		return errors.Wrap(err, "ConsumeToken")
	}

	token.Used = true
	token.UsedAt = now
	return nil
}
