package payloads

import (
	"github.com/google/uuid"
	"github.com/groob/plist"
	"github.com/pkg/errors"
)

// MDM command request types modeled by this server.
const (
	RequestTypeInstallProfile    = "InstallProfile"
	RequestTypeRemoveProfile     = "RemoveProfile"
	RequestTypeDeviceInformation = "DeviceInformation"
)

// CommandBody is the inner Command dict of an MDM command envelope.
type CommandBody struct {
	RequestType string   `plist:"RequestType"`
	Payload     []byte   `plist:"Payload,omitempty"`
	Identifier  string   `plist:"Identifier,omitempty"`
	Queries     []string `plist:"Queries,omitempty"`
}

// CommandEnvelope is the flat document handed to a device in a poll
// response. The CommandUUID is the value the device echoes back in its status
// report, and the value the command queue keys on.
type CommandEnvelope struct {
	CommandUUID string      `plist:"CommandUUID"`
	Command     CommandBody `plist:"Command"`
}

func marshalEnvelope(body CommandBody) (string, []byte, error) {
	envelope := CommandEnvelope{
		CommandUUID: uuid.New().String(),
		Command:     body,
	}

	data, err := plist.MarshalIndent(&envelope, "\t")
	if err != nil {
		return "", nil, errors.Wrap(err, "marshal command envelope")
	}
	return envelope.CommandUUID, data, nil
}

// InstallProfile wraps a built configuration document in an InstallProfile
// command.
func InstallProfile(profileData []byte) (string, []byte, error) {
	return marshalEnvelope(CommandBody{
		RequestType: RequestTypeInstallProfile,
		Payload:     profileData,
	})
}

// RemoveProfile builds a RemoveProfile command for the given payload
// identifier.
func RemoveProfile(payloadIdentifier string) (string, []byte, error) {
	return marshalEnvelope(CommandBody{
		RequestType: RequestTypeRemoveProfile,
		Identifier:  payloadIdentifier,
	})
}

// DeviceInformation builds a DeviceInformation query for the given fields.
func DeviceInformation(queries []string) (string, []byte, error) {
	return marshalEnvelope(CommandBody{
		RequestType: RequestTypeDeviceInformation,
		Queries:     queries,
	})
}
