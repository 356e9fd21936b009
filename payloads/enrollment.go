package payloads

import (
	"github.com/groob/plist"
	"github.com/pkg/errors"
)

// MDMPayload is the com.apple.mdm payload that points the device at this
// server's check-in and command endpoints.
type MDMPayload struct {
	PayloadType        string `plist:"PayloadType"`
	PayloadVersion     int    `plist:"PayloadVersion"`
	PayloadIdentifier  string `plist:"PayloadIdentifier"`
	PayloadUUID        string `plist:"PayloadUUID"`
	PayloadDisplayName string `plist:"PayloadDisplayName"`

	Topic               string   `plist:"Topic"`
	ServerURL           string   `plist:"ServerURL"`
	CheckInURL          string   `plist:"CheckInURL"`
	ServerCapabilities  []string `plist:"ServerCapabilities"`
	AccessRights        int      `plist:"AccessRights"`
	CheckOutWhenRemoved bool     `plist:"CheckOutWhenRemoved"`
	SignMessage         bool     `plist:"SignMessage"`
	UseDevelopmentAPNS  bool     `plist:"UseDevelopmentAPNS"`

	// Set when the profile embeds a device identity; references the
	// PKCS12Payload's own UUID.
	IdentityCertificateUUID string `plist:"IdentityCertificateUUID,omitempty"`
}

// PKCS12Payload embeds a password-protected device identity credential.
type PKCS12Payload struct {
	PayloadType        string `plist:"PayloadType"`
	PayloadVersion     int    `plist:"PayloadVersion"`
	PayloadIdentifier  string `plist:"PayloadIdentifier"`
	PayloadUUID        string `plist:"PayloadUUID"`
	PayloadDisplayName string `plist:"PayloadDisplayName"`

	Password       string `plist:"Password"`
	PayloadContent []byte `plist:"PayloadContent"`
}

// EnrollmentProfile is the top-level configuration document a device installs
// to come under management.
type EnrollmentProfile struct {
	PayloadType              string        `plist:"PayloadType"`
	PayloadVersion           int           `plist:"PayloadVersion"`
	PayloadIdentifier        string        `plist:"PayloadIdentifier"`
	PayloadUUID              string        `plist:"PayloadUUID"`
	PayloadDisplayName       string        `plist:"PayloadDisplayName"`
	PayloadDescription       string        `plist:"PayloadDescription"`
	PayloadOrganization      string        `plist:"PayloadOrganization"`
	PayloadRemovalDisallowed bool          `plist:"PayloadRemovalDisallowed"`
	PayloadContent           []interface{} `plist:"PayloadContent"`
}

// EnrollmentOptions configures the enrollment profile builder.
type EnrollmentOptions struct {
	ServerURL     string // public base URL, no trailing slash
	Topic         string
	OrgName       string
	OrgIdentifier string
	UseDevAPNS    bool

	// Optional device identity (PKCS#12 blob plus its password). When set,
	// the profile carries an identity payload the MDM payload references.
	IdentityCertificate []byte
	IdentityPassword    string
}

// Enrollment builds the enrollment profile for the given deployment.
func Enrollment(opts EnrollmentOptions) ([]byte, error) {
	mdmPayload := MDMPayload{
		PayloadType:        PayloadTypeMDM,
		PayloadVersion:     1,
		PayloadIdentifier:  opts.OrgIdentifier + ".mdm",
		PayloadUUID:        newPayloadUUID(),
		PayloadDisplayName: "MDM Profile",

		Topic:               opts.Topic,
		ServerURL:           opts.ServerURL + "/mdm",
		CheckInURL:          opts.ServerURL + "/checkin",
		ServerCapabilities:  []string{"com.apple.mdm.per-user-connections"},
		AccessRights:        AccessRightsAll,
		CheckOutWhenRemoved: true,
		SignMessage:         false,
		UseDevelopmentAPNS:  opts.UseDevAPNS,
	}

	content := []interface{}{}

	if len(opts.IdentityCertificate) > 0 {
		identity := PKCS12Payload{
			PayloadType:        PayloadTypePKCS12,
			PayloadVersion:     1,
			PayloadIdentifier:  opts.OrgIdentifier + ".identity",
			PayloadUUID:        newPayloadUUID(),
			PayloadDisplayName: "Device Identity",
			Password:           opts.IdentityPassword,
			PayloadContent:     opts.IdentityCertificate,
		}
		mdmPayload.IdentityCertificateUUID = identity.PayloadUUID
		content = append(content, identity)
	}

	content = append(content, mdmPayload)

	profile := EnrollmentProfile{
		PayloadType:              PayloadTypeConfiguration,
		PayloadVersion:           1,
		PayloadIdentifier:        opts.OrgIdentifier + ".enrollment",
		PayloadUUID:              newPayloadUUID(),
		PayloadDisplayName:       opts.OrgName + " Device Management",
		PayloadDescription:       "This profile will enroll your device for management.",
		PayloadOrganization:      opts.OrgName,
		PayloadRemovalDisallowed: false,
		PayloadContent:           content,
	}

	data, err := plist.MarshalIndent(&profile, "\t")
	if err != nil {
		return nil, errors.Wrap(err, "Enrollment: marshal profile")
	}
	return data, nil
}
