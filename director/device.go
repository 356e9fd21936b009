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

func GetDevice(udid string) (types.Device, error) {
	var device types.Device

	if udid == "" {
		err := fmt.Errorf("no device UDID set")
		return device, errors.Wrap(err, "GetDevice")
	}

	err := db.DB.Where("ud_id = ?", udid).First(&device).Error
	if err != nil {
		return device, errors.Wrapf(err, "GetDevice %v", udid)
	}
	return device, nil
}

// UpsertDevice creates the directory entry on first Authenticate and resets
// it on re-enrollment: a known UDID goes back to pending with its stale push
// credentials cleared, which is how removed -> pending is modeled.
func UpsertDevice(incoming types.Device) (*types.Device, error) {
	if incoming.UDID == "" {
		err := fmt.Errorf("no device UDID set")
		return &incoming, errors.Wrap(err, "UpsertDevice")
	}

	now := time.Now()

	var device types.Device
	err := db.DB.Where("ud_id = ?", incoming.UDID).First(&device).Error
	if err != nil {
		if !intErrors.Is(err, gorm.ErrRecordNotFound) {
			return &incoming, errors.Wrap(err, "UpsertDevice: lookup")
		}

		incoming.Status = types.DeviceStatusPending
		incoming.EnrolledAt = now
		incoming.LastCheckedIn = now
		if incoming.DeviceName == "" && len(incoming.UDID) >= 8 {
			incoming.DeviceName = "Device-" + incoming.UDID[:8]
		}
		if err := db.DB.Create(&incoming).Error; err != nil {
			return &incoming, errors.Wrap(err, "UpsertDevice: create")
		}
		return &incoming, nil
	}

	updates := map[string]interface{}{
		"status":          types.DeviceStatusPending,
		"push_token":      "",
		"push_magic":      "",
		"unlock_token":    []byte(nil),
		"last_checked_in": now,
	}
	if incoming.DeviceName != "" {
		updates["device_name"] = incoming.DeviceName
	}
	if incoming.Model != "" {
		updates["model"] = incoming.Model
	}
	if incoming.OSVersion != "" {
		updates["os_version"] = incoming.OSVersion
	}
	if incoming.BuildVersion != "" {
		updates["build_version"] = incoming.BuildVersion
	}
	if incoming.SerialNumber != "" {
		updates["serial_number"] = incoming.SerialNumber
	}

	err = db.DB.Model(&types.Device{}).Where("ud_id = ?", incoming.UDID).Updates(updates).Error
	if err != nil {
		return &device, errors.Wrap(err, "UpsertDevice: update")
	}

	device.Status = types.DeviceStatusPending
	return &device, nil
}

// SetPushCredentials stores the device's wake credentials. Token and magic
// are stored both-or-neither; a TokenUpdate missing either is rejected.
func SetPushCredentials(udid, pushToken, pushMagic string, unlockToken []byte) error {
	if udid == "" {
		return errors.Wrap(fmt.Errorf("no device UDID set"), "SetPushCredentials")
	}
	if pushToken == "" || pushMagic == "" {
		return errors.Wrap(
			fmt.Errorf("push token and push magic must both be present"),
			"SetPushCredentials",
		)
	}

	err := db.DB.Model(&types.Device{}).Where("ud_id = ?", udid).Updates(map[string]interface{}{
		"push_token":   pushToken,
		"push_magic":   pushMagic,
		"unlock_token": unlockToken,
	}).Error
	if err != nil {
		return errors.Wrap(err, "SetPushCredentials")
	}
	return nil
}

// ClearPushCredentials removes the wake credentials; a removed device must
// never receive a stale wake attempt.
func ClearPushCredentials(udid string) error {
	err := db.DB.Model(&types.Device{}).Where("ud_id = ?", udid).Updates(map[string]interface{}{
		"push_token":   "",
		"push_magic":   "",
		"unlock_token": []byte(nil),
	}).Error
	if err != nil {
		return errors.Wrap(err, "ClearPushCredentials")
	}
	return nil
}

func SetDeviceStatus(udid, status string) error {
	err := db.DB.Model(&types.Device{}).
		Where("ud_id = ?", udid).
		Update("status", status).Error
	if err != nil {
		return errors.Wrapf(err, "SetDeviceStatus %v", status)
	}
	return nil
}

// updateDeviceFields applies a partial hardware-inventory update, typically
// sourced from a DeviceInformation acknowledgment.
func updateDeviceFields(udid string, updates map[string]interface{}) error {
	err := db.DB.Model(&types.Device{}).Where("ud_id = ?", udid).Updates(updates).Error
	if err != nil {
		return errors.Wrap(err, "updateDeviceFields")
	}
	return nil
}

func TouchLastCheckin(udid string) error {
	err := db.DB.Model(&types.Device{}).
		Where("ud_id = ?", udid).
		Update("last_checked_in", time.Now()).Error
	if err != nil {
		return errors.Wrap(err, "TouchLastCheckin")
	}
	return nil
}

// AssignOwner attributes a device to the owner (and optional restriction
// profile) carried by a correlated enrollment token.
func AssignOwner(udid, ownerID, profileID string) error {
	err := db.DB.Model(&types.Device{}).Where("ud_id = ?", udid).Updates(map[string]interface{}{
		"owner_id":   ownerID,
		"profile_id": profileID,
	}).Error
	if err != nil {
		return errors.Wrap(err, "AssignOwner")
	}
	return nil
}

func GetRestrictionProfile(id string) (types.RestrictionProfile, error) {
	var profile types.RestrictionProfile

	if id == "" {
		err := fmt.Errorf("no profile id set")
		return profile, errors.Wrap(err, "GetRestrictionProfile")
	}

	err := db.DB.Where("id = ?", id).First(&profile).Error
	if err != nil {
		return profile, errors.Wrap(err, "GetRestrictionProfile")
	}
	return profile, nil
}

// SeedRestrictionProfiles creates the default focus profiles on an empty
// install.
func SeedRestrictionProfiles() error {
	var count int64
	err := db.DB.Model(&types.RestrictionProfile{}).Count(&count).Error
	if err != nil {
		return errors.Wrap(err, "SeedRestrictionProfiles: count")
	}
	if count > 0 {
		return nil
	}

	defaults := []types.RestrictionProfile{
		{
			ID:            uuid.New().String(),
			Name:          "Call Only",
			Description:   "Phone and Contacts only - maximum focus mode",
			AllowPhone:    true,
			AllowMessages: false,
			AllowContacts: true,
		},
		{
			ID:            uuid.New().String(),
			Name:          "Text & Call",
			Description:   "Phone, Messages, and Contacts - focused communication",
			AllowPhone:    true,
			AllowMessages: true,
			AllowContacts: true,
		},
	}

	for i := range defaults {
		if err := db.DB.Create(&defaults[i]).Error; err != nil {
			return errors.Wrap(err, "SeedRestrictionProfiles: create")
		}
	}
	InfoLogger(LogHolder{Message: "Seeded default restriction profiles"})
	return nil
}
