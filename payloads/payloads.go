// Package payloads builds the plist documents the MDM protocol exchanges:
// the enrollment profile, restriction profiles, and command envelopes. All
// builders are pure; every document and payload section gets a fresh UUID.
package payloads

import (
	"strings"

	"github.com/google/uuid"
)

const (
	PayloadTypeConfiguration     = "Configuration"
	PayloadTypeMDM               = "com.apple.mdm"
	PayloadTypeApplicationAccess = "com.apple.applicationaccess"
	PayloadTypePKCS12            = "com.apple.security.pkcs12"
)

// AccessRightsAll grants the MDM server the full access-rights bitmask.
const AccessRightsAll = 8191

func newPayloadUUID() string {
	return strings.ToUpper(uuid.New().String())
}
