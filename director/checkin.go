package director

import (
	"encoding/hex"
	"io"
	"net/http"

	"github.com/focusphone/mdmserver/payloads"
	"github.com/focusphone/mdmserver/types"
	"github.com/focusphone/mdmserver/utils"
	"github.com/groob/plist"
	"github.com/hashicorp/go-version"
)

func writeEmptyPlist(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/xml")
	data, err := plist.Marshal(map[string]interface{}{})
	if err != nil {
		ErrorLogger(LogHolder{Message: err.Error()})
		return
	}
	_, err = w.Write(data)
	if err != nil {
		ErrorLogger(LogHolder{Message: err.Error()})
	}
}

// CheckinHandler services /checkin: the Authenticate / TokenUpdate /
// CheckOut state machine. Every recognized message is answered with an empty
// plist; unknown kinds are accepted as a no-op for forward compatibility.
func CheckinHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		ErrorLogger(LogHolder{Message: err.Error()})
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var message types.CheckinMessage
	if err := plist.Unmarshal(body, &message); err != nil {
		ErrorLogger(LogHolder{Message: "Failed to parse check-in plist: " + err.Error()})
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if message.UDID == "" {
		ErrorLogger(LogHolder{Message: "Check-in message without UDID"})
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	InfoLogger(LogHolder{
		Message:    "MDM check-in",
		DeviceUDID: message.UDID,
		Metric:     message.MessageType,
	})

	switch message.MessageType {
	case types.MessageTypeAuthenticate:
		err = handleAuthenticate(message)
	case types.MessageTypeTokenUpdate:
		err = handleTokenUpdate(message)
	case types.MessageTypeCheckOut:
		err = handleCheckOut(message)
	default:
		WarnLogger(LogHolder{
			Message:    "Unknown check-in message type",
			DeviceUDID: message.UDID,
			Metric:     message.MessageType,
		})
		writeEmptyPlist(w)
		return
	}

	if err != nil {
		ErrorLogger(LogHolder{Message: err.Error(), DeviceUDID: message.UDID})
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeEmptyPlist(w)
}

func handleAuthenticate(message types.CheckinMessage) error {
	device := types.Device{
		UDID:         message.UDID,
		DeviceName:   message.DeviceName,
		Model:        message.Model,
		ModelName:    message.ModelName,
		OSVersion:    message.OSVersion,
		BuildVersion: message.BuildVersion,
		SerialNumber: message.SerialNumber,
	}

	if _, err := UpsertDevice(device); err != nil {
		return err
	}

	// Correlation failure must never fail enrollment; the device simply
	// becomes an unattributed pending record.
	token, err := CorrelateDevice(message.UDID)
	if err != nil {
		ErrorLogger(LogHolder{Message: err.Error(), DeviceUDID: message.UDID})
		return nil
	}
	if token == nil {
		DebugLogger(LogHolder{
			Message:    "No enrollment token correlated",
			DeviceUDID: message.UDID,
		})
		return nil
	}

	if err := AssignOwner(message.UDID, token.OwnerID, token.ProfileID); err != nil {
		ErrorLogger(LogHolder{Message: err.Error(), DeviceUDID: message.UDID})
	}
	return nil
}

func handleTokenUpdate(message types.CheckinMessage) error {
	pushToken := hex.EncodeToString(message.Token)
	if len(message.Token) == 0 {
		pushToken = ""
	}

	err := SetPushCredentials(message.UDID, pushToken, message.PushMagic, message.UnlockToken)
	if err != nil {
		// A TokenUpdate without usable credentials still completes
		// enrollment; the device just cannot be woken until the next one.
		WarnLogger(LogHolder{Message: err.Error(), DeviceUDID: message.UDID})
	}

	if err := SetDeviceStatus(message.UDID, types.DeviceStatusEnrolled); err != nil {
		return err
	}
	if err := TouchLastCheckin(message.UDID); err != nil {
		return err
	}

	token, err := TokenForDevice(message.UDID)
	if err != nil {
		ErrorLogger(LogHolder{Message: err.Error(), DeviceUDID: message.UDID})
		return nil
	}
	if token == nil {
		return nil
	}

	if err := ConsumeToken(token); err != nil {
		ErrorLogger(LogHolder{Message: err.Error(), DeviceUDID: message.UDID})
	}

	if token.ProfileID == "" {
		return nil
	}

	// Enrollment -> first-command chain: queue the assigned restriction
	// profile and wake the device so it pulls immediately.
	if err := queueRestrictionProfile(message.UDID, token.ProfileID); err != nil {
		ErrorLogger(LogHolder{Message: err.Error(), DeviceUDID: message.UDID})
		return nil
	}

	if err := PushDevice(message.UDID); err != nil {
		// Push failure never fails the check-in; the command stays queued
		// for the device's next natural poll.
		WarnLogger(LogHolder{Message: err.Error(), DeviceUDID: message.UDID})
	}
	return nil
}

func handleCheckOut(message types.CheckinMessage) error {
	if err := SetDeviceStatus(message.UDID, types.DeviceStatusRemoved); err != nil {
		return err
	}
	return ClearPushCredentials(message.UDID)
}

func queueRestrictionProfile(udid, profileID string) error {
	profile, err := GetRestrictionProfile(profileID)
	if err != nil {
		return err
	}

	data, _, err := payloads.Restrictions(
		profile.Name,
		profile.Description,
		utils.OrgName(),
		utils.OrgIdentifier(),
		profile.AllowedBundleIDs(),
	)
	if err != nil {
		return err
	}

	commandUUID, envelope, err := payloads.InstallProfile(data)
	if err != nil {
		return err
	}

	_, err = QueueCommand(udid, payloads.RequestTypeInstallProfile, commandUUID, envelope)
	return err
}

// ServerHandler services /mdm: the long-poll command endpoint. The response
// body is the delivery mechanism - either the next claimed command's envelope
// or an empty plist when there is nothing to do.
func ServerHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		ErrorLogger(LogHolder{Message: err.Error()})
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var report types.StatusReport
	if err := plist.Unmarshal(body, &report); err != nil {
		ErrorLogger(LogHolder{Message: "Failed to parse status report plist: " + err.Error()})
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if report.UDID == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	DebugLogger(LogHolder{
		Message:       "MDM status report",
		DeviceUDID:    report.UDID,
		CommandUUID:   report.CommandUUID,
		CommandStatus: report.Status,
	})

	if err := TouchLastCheckin(report.UDID); err != nil {
		ErrorLogger(LogHolder{Message: err.Error(), DeviceUDID: report.UDID})
	}

	if report.CommandUUID != "" {
		if err := ReportCommandStatus(report); err != nil {
			ErrorLogger(LogHolder{Message: err.Error(), DeviceUDID: report.UDID})
		}
	}

	if report.QueryResponses != nil {
		if err := saveQueryResponses(report.UDID, report.QueryResponses); err != nil {
			ErrorLogger(LogHolder{Message: err.Error(), DeviceUDID: report.UDID})
		}
	}

	if report.Status == types.StatusIdle || report.Status == types.StatusAcknowledged {
		command, err := NextDeliverable(report.UDID)
		if err != nil {
			ErrorLogger(LogHolder{Message: err.Error(), DeviceUDID: report.UDID})
		} else if command != nil {
			w.Header().Set("Content-Type", "application/xml")
			if _, err := w.Write(command.Payload); err != nil {
				ErrorLogger(LogHolder{Message: err.Error(), DeviceUDID: report.UDID})
			}
			return
		}
	}

	writeEmptyPlist(w)
}

// saveQueryResponses records a DeviceInformation acknowledgment and, when
// the OS version moved forward, requeues the assigned restriction profile so
// new capability surfaces stay restricted.
func saveQueryResponses(udid string, responses *types.QueryResponses) error {
	device, err := GetDevice(udid)
	if err != nil {
		return err
	}

	updates := map[string]interface{}{}
	if responses.DeviceName != "" {
		updates["device_name"] = responses.DeviceName
	}
	if responses.Model != "" {
		updates["model"] = responses.Model
	}
	if responses.ModelName != "" {
		updates["model_name"] = responses.ModelName
	}
	if responses.OSVersion != "" {
		updates["os_version"] = responses.OSVersion
	}
	if responses.BuildVersion != "" {
		updates["build_version"] = responses.BuildVersion
	}
	if responses.SerialNumber != "" {
		updates["serial_number"] = responses.SerialNumber
	}

	if len(updates) > 0 {
		if err := updateDeviceFields(udid, updates); err != nil {
			return err
		}
	}

	if newOSVersion(device.OSVersion, responses.OSVersion) && device.ProfileID != "" {
		InfoLogger(LogHolder{
			Message:    "OS updated, requeueing restriction profile",
			DeviceUDID: udid,
			Metric:     responses.OSVersion,
		})
		if err := queueRestrictionProfile(udid, device.ProfileID); err != nil {
			return err
		}
		if err := PushDevice(udid); err != nil {
			WarnLogger(LogHolder{Message: err.Error(), DeviceUDID: udid})
		}
	}

	return nil
}

func newOSVersion(oldVersion, currentVersion string) bool {
	if oldVersion == "" || currentVersion == "" {
		return false
	}

	previous, err := version.NewVersion(oldVersion)
	if err != nil {
		return false
	}
	current, err := version.NewVersion(currentVersion)
	if err != nil {
		return false
	}

	return previous.LessThan(current)
}
