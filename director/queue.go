package director

import (
	intErrors "errors"
	"fmt"
	"time"

	"github.com/focusphone/mdmserver/db"
	"github.com/focusphone/mdmserver/types"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// QueueCommand stores a built command envelope for later delivery. The
// commandUUID must be the identifier embedded in payload; it is the key the
// device echoes back.
func QueueCommand(udid, requestType, commandUUID string, payload []byte) (types.Command, error) {
	command := types.Command{
		CommandUUID: commandUUID,
		DeviceUDID:  udid,
		RequestType: requestType,
		Payload:     payload,
		Status:      types.CommandStatusPending,
	}

	if udid == "" || commandUUID == "" {
		err := fmt.Errorf("device UDID and command UUID must be set")
		return command, errors.Wrap(err, "QueueCommand")
	}

	if err := db.DB.Create(&command).Error; err != nil {
		return command, errors.Wrap(err, "QueueCommand")
	}

	InfoLogger(LogHolder{
		Message:            "Queued command",
		DeviceUDID:         udid,
		CommandUUID:        commandUUID,
		CommandRequestType: requestType,
	})

	if requestType == "InstallProfile" {
		ProfilesQueued.Inc()
	}

	return command, nil
}

// NextDeliverable returns the oldest pending command for the device and
// atomically claims it: the pending -> sent transition is a conditional
// update keyed on the current status and on no other command for the device
// being in flight, so two concurrent polls (a push-triggered pull racing a
// scheduled one) cannot both walk away with a command. Returns nil when the
// queue is empty or a delivery is already outstanding.
func NextDeliverable(udid string) (*types.Command, error) {
	for {
		var command types.Command
		err := db.DB.
			Where("device_ud_id = ? AND status = ?", udid, types.CommandStatusPending).
			Order("created_at").
			First(&command).Error
		if err != nil {
			if intErrors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil
			}
			return nil, errors.Wrap(err, "NextDeliverable")
		}

		result := db.DB.Model(&types.Command{}).
			Where("command_uuid = ? AND status = ?", command.CommandUUID, types.CommandStatusPending).
			Where(
				"NOT EXISTS (SELECT 1 FROM commands in_flight WHERE in_flight.device_ud_id = ? AND in_flight.status = ?)",
				udid,
				types.CommandStatusSent,
			).
			Updates(map[string]interface{}{
				"status":  types.CommandStatusSent,
				"sent_at": time.Now(),
			})
		if result.Error != nil {
			return nil, errors.Wrap(result.Error, "NextDeliverable: claim")
		}
		if result.RowsAffected == 0 {
			var inFlight int64
			err := db.DB.Model(&types.Command{}).
				Where("device_ud_id = ? AND status = ?", udid, types.CommandStatusSent).
				Count(&inFlight).Error
			if err != nil {
				return nil, errors.Wrap(err, "NextDeliverable: in-flight check")
			}
			if inFlight > 0 {
				// A delivery is already outstanding; its status report (or
				// the stuck-command sweep) frees the queue.
				return nil, nil
			}
			// Lost the claim race; another poll took this one.
			continue
		}

		command.Status = types.CommandStatusSent
		InfoLogger(LogHolder{
			Message:            "Delivering command",
			DeviceUDID:         udid,
			CommandUUID:        command.CommandUUID,
			CommandRequestType: command.RequestType,
		})
		return &command, nil
	}
}

// ReportCommandStatus applies a device's status report to the referenced
// command. Unknown command UUIDs are a logged no-op: the device may reference
// a command this server no longer has a record of.
func ReportCommandStatus(report types.StatusReport) error {
	var command types.Command

	err := db.DB.Where("command_uuid = ?", report.CommandUUID).First(&command).Error
	if err != nil {
		if intErrors.Is(err, gorm.ErrRecordNotFound) {
			WarnLogger(LogHolder{
				Message:       "Status report for unknown command",
				DeviceUDID:    report.UDID,
				CommandUUID:   report.CommandUUID,
				CommandStatus: report.Status,
			})
			return nil
		}
		return errors.Wrap(err, "ReportCommandStatus")
	}

	var updates map[string]interface{}
	switch report.Status {
	case types.StatusAcknowledged:
		updates = map[string]interface{}{
			"status":          types.CommandStatusAcknowledged,
			"acknowledged_at": time.Now(),
		}
		CommandsAcknowledged.Inc()
	case types.StatusError:
		errorString := "command failed"
		if len(report.ErrorChain) > 0 {
			first := report.ErrorChain[0]
			errorString = fmt.Sprintf(
				"%v (%d): %v",
				first.ErrorDomain,
				first.ErrorCode,
				first.USEnglishDescription,
			)
		}
		updates = map[string]interface{}{
			"status":       types.CommandStatusFailed,
			"error_string": errorString,
		}
	case types.StatusNotNow:
		// Device is busy; back to pending so the next poll redelivers. The
		// device's own poll cadence is the only backoff.
		updates = map[string]interface{}{
			"status": types.CommandStatusPending,
		}
	default:
		DebugLogger(LogHolder{
			Message:       "Ignoring status report",
			DeviceUDID:    report.UDID,
			CommandUUID:   report.CommandUUID,
			CommandStatus: report.Status,
		})
		return nil
	}

	err = db.DB.Model(&types.Command{}).
		Where("command_uuid = ?", report.CommandUUID).
		Updates(updates).Error
	if err != nil {
		return errors.Wrap(err, "ReportCommandStatus: update")
	}

	InfoLogger(LogHolder{
		Message:            "Command status updated",
		DeviceUDID:         report.UDID,
		CommandUUID:        report.CommandUUID,
		CommandRequestType: command.RequestType,
		CommandStatus:      report.Status,
	})
	return nil
}

// RequeueStuckCommands returns commands that have sat in sent past the
// timeout to pending. A claim whose device never reported back (crashed
// mid-poll, dropped connection) would otherwise block that device's queue
// forever.
func RequeueStuckCommands(olderThan time.Duration) error {
	cutoff := time.Now().Add(-olderThan)

	result := db.DB.Model(&types.Command{}).
		Where("status = ? AND sent_at < ?", types.CommandStatusSent, cutoff).
		Update("status", types.CommandStatusPending)
	if result.Error != nil {
		return errors.Wrap(result.Error, "RequeueStuckCommands")
	}

	if result.RowsAffected > 0 {
		InfoLogger(LogHolder{
			Message: "Requeued stuck commands",
			Metric:  fmt.Sprintf("%d", result.RowsAffected),
		})
	}
	return nil
}
