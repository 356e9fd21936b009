package payloads

import (
	"github.com/groob/plist"
	"github.com/pkg/errors"
)

// RestrictionPayload is the com.apple.applicationaccess payload. Everything
// is denied except what AllowListedAppBundleIDs grants; the camera flag
// follows allow-list membership of com.apple.camera.
type RestrictionPayload struct {
	PayloadType        string `plist:"PayloadType"`
	PayloadVersion     int    `plist:"PayloadVersion"`
	PayloadIdentifier  string `plist:"PayloadIdentifier"`
	PayloadUUID        string `plist:"PayloadUUID"`
	PayloadDisplayName string `plist:"PayloadDisplayName"`

	AllowListedAppBundleIDs []string `plist:"allowListedAppBundleIDs"`

	AllowAppInstallation                    bool `plist:"allowAppInstallation"`
	AllowAppRemoval                         bool `plist:"allowAppRemoval"`
	AllowInAppPurchases                     bool `plist:"allowInAppPurchases"`
	AllowSafari                             bool `plist:"allowSafari"`
	AllowCamera                             bool `plist:"allowCamera"`
	AllowVideoConferencing                  bool `plist:"allowVideoConferencing"`
	AllowExplicitContent                    bool `plist:"allowExplicitContent"`
	AllowGameCenter                         bool `plist:"allowGameCenter"`
	AllowMultiplayerGaming                  bool `plist:"allowMultiplayerGaming"`
	AllowAddingGameCenterFriends            bool `plist:"allowAddingGameCenterFriends"`
	AllowYouTube                            bool `plist:"allowYouTube"`
	AllowITunes                             bool `plist:"allowiTunes"`
	AllowBookstore                          bool `plist:"allowBookstore"`
	AllowPodcasts                           bool `plist:"allowPodcasts"`
	AllowNews                               bool `plist:"allowNews"`
	AllowMusicService                       bool `plist:"allowMusicService"`
	AllowRadioService                       bool `plist:"allowRadioService"`
	AllowUIConfigurationProfileInstallation bool `plist:"allowUIConfigurationProfileInstallation"`
	AllowEnterpriseAppTrust                 bool `plist:"allowEnterpriseAppTrust"`
	AllowVPNCreation                        bool `plist:"allowVPNCreation"`
	AllowGlobalBackgroundFetchWhenRoaming   bool `plist:"allowGlobalBackgroundFetchWhenRoaming"`
	AllowEraseContentAndSettings            bool `plist:"allowEraseContentAndSettings"`
	AllowEnablingRestrictions               bool `plist:"allowEnablingRestrictions"`
	AllowFilesNetworkDriveAccess            bool `plist:"allowFilesNetworkDriveAccess"`
	AllowFilesUSBDriveAccess                bool `plist:"allowFilesUSBDriveAccess"`
}

// RestrictionProfile is the top-level restriction configuration document. It
// is marked non-removable so the end user cannot lift the restrictions.
type RestrictionProfile struct {
	PayloadType              string               `plist:"PayloadType"`
	PayloadVersion           int                  `plist:"PayloadVersion"`
	PayloadIdentifier        string               `plist:"PayloadIdentifier"`
	PayloadUUID              string               `plist:"PayloadUUID"`
	PayloadDisplayName       string               `plist:"PayloadDisplayName"`
	PayloadDescription       string               `plist:"PayloadDescription"`
	PayloadOrganization      string               `plist:"PayloadOrganization"`
	PayloadRemovalDisallowed bool                 `plist:"PayloadRemovalDisallowed"`
	PayloadContent           []RestrictionPayload `plist:"PayloadContent"`
}

func containsBundleID(bundleIDs []string, want string) bool {
	for _, id := range bundleIDs {
		if id == want {
			return true
		}
	}
	return false
}

// Restrictions builds a restriction profile limiting the device to the given
// app bundle identifiers. It returns the document bytes and the document's
// payload identifier, which a later RemoveProfile command must reference.
func Restrictions(
	name, description, orgName, orgIdentifier string,
	allowedBundleIDs []string,
) ([]byte, string, error) {
	profileUUID := newPayloadUUID()
	payloadIdentifier := orgIdentifier + ".restriction." + profileUUID[:8]

	restriction := RestrictionPayload{
		PayloadType:        PayloadTypeApplicationAccess,
		PayloadVersion:     1,
		PayloadIdentifier:  orgIdentifier + ".restriction",
		PayloadUUID:        newPayloadUUID(),
		PayloadDisplayName: "App Restrictions",

		AllowListedAppBundleIDs: allowedBundleIDs,
		AllowCamera:             containsBundleID(allowedBundleIDs, "com.apple.camera"),
	}

	profile := RestrictionProfile{
		PayloadType:              PayloadTypeConfiguration,
		PayloadVersion:           1,
		PayloadIdentifier:        payloadIdentifier,
		PayloadUUID:              profileUUID,
		PayloadDisplayName:       name,
		PayloadDescription:       description,
		PayloadOrganization:      orgName,
		PayloadRemovalDisallowed: true,
		PayloadContent:           []RestrictionPayload{restriction},
	}

	data, err := plist.MarshalIndent(&profile, "\t")
	if err != nil {
		return nil, "", errors.Wrap(err, "Restrictions: marshal profile")
	}
	return data, payloadIdentifier, nil
}
