package director

import (
	log "github.com/sirupsen/logrus"
)

type LogHolder struct {
	DeviceUDID         string
	DeviceSerial       string
	CommandUUID        string
	CommandRequestType string
	CommandStatus      string
	EnrollmentToken    string
	TokenOwner         string
	Message            string
	Metric             string
}

func processFields(logholder LogHolder) *log.Entry {
	logger := log.WithFields(log.Fields{})
	if logholder.DeviceUDID != "" {
		logger = logger.WithFields(
			log.Fields{
				"device_udid": logholder.DeviceUDID,
			})
	}

	if logholder.DeviceSerial != "" {
		logger = logger.WithFields(
			log.Fields{
				"device_serial": logholder.DeviceSerial,
			})
	}

	if logholder.CommandUUID != "" {
		logger = logger.WithFields(
			log.Fields{
				"command_uuid": logholder.CommandUUID,
			})
	}

	if logholder.CommandStatus != "" {
		logger = logger.WithFields(
			log.Fields{
				"command_status": logholder.CommandStatus,
			})
	}

	if logholder.CommandRequestType != "" {
		logger = logger.WithFields(
			log.Fields{
				"command_request_type": logholder.CommandRequestType,
			})
	}

	if logholder.EnrollmentToken != "" {
		logger = logger.WithFields(
			log.Fields{
				"enrollment_token": logholder.EnrollmentToken,
			})
	}

	if logholder.TokenOwner != "" {
		logger = logger.WithFields(
			log.Fields{
				"token_owner": logholder.TokenOwner,
			})
	}

	if logholder.Metric != "" {
		logger = logger.WithFields(
			log.Fields{
				"metric": logholder.Metric,
			})
	}

	return logger
}

func DebugLogger(logholder LogHolder) {
	logger := processFields(logholder)
	logger.Debug(logholder.Message)
}

func InfoLogger(logholder LogHolder) {
	logger := processFields(logholder)
	logger.Info(logholder.Message)
}

func WarnLogger(logholder LogHolder) {
	logger := processFields(logholder)
	logger.Warn(logholder.Message)
}

func ErrorLogger(logholder LogHolder) {
	logger := processFields(logholder)
	logger.Error(logholder.Message)
}
