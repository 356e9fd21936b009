package types

import "time"

// RestrictionProfile is an app allow-list template assignable to devices via
// enrollment tokens. The boolean flags map to Apple bundle identifiers.
type RestrictionProfile struct {
	ID          string `gorm:"primaryKey"`
	Name        string
	Description string

	AllowPhone    bool `gorm:"default:true"`
	AllowMessages bool `gorm:"default:true"`
	AllowContacts bool `gorm:"default:true"`
	AllowCamera   bool
	AllowPhotos   bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// AllowedBundleIDs returns the app bundle identifiers the profile permits.
func (profile *RestrictionProfile) AllowedBundleIDs() []string {
	var bundles []string
	if profile.AllowPhone {
		bundles = append(bundles, "com.apple.mobilephone")
	}
	if profile.AllowMessages {
		bundles = append(bundles, "com.apple.MobileSMS")
	}
	if profile.AllowContacts {
		bundles = append(bundles, "com.apple.MobileAddressBook")
	}
	if profile.AllowCamera {
		bundles = append(bundles, "com.apple.camera")
	}
	if profile.AllowPhotos {
		bundles = append(bundles, "com.apple.mobileslideshow")
	}
	return bundles
}
