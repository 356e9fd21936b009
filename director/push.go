package director

import (
	"fmt"

	"github.com/focusphone/mdmserver/apns"
	"github.com/pkg/errors"
)

// PushDevice wakes a device over APNs so it polls for queued commands. The
// push carries no payload beyond the magic; it is a doorbell, not a delivery.
func PushDevice(udid string) error {
	device, err := GetDevice(udid)
	if err != nil {
		return errors.Wrap(err, "PushDevice")
	}

	if !device.HasPushCredentials() {
		err := fmt.Errorf("device has no push credentials")
		return errors.Wrapf(err, "PushDevice %v", udid)
	}

	client, err := apns.Client()
	if err != nil {
		return errors.Wrap(err, "PushDevice")
	}

	if err := client.Push(device.PushToken, device.PushMagic); err != nil {
		PushErrors.Inc()
		return errors.Wrapf(err, "PushDevice %v", udid)
	}

	TotalPushes.Inc()
	DebugLogger(LogHolder{Message: "Sent push notification", DeviceUDID: udid})
	return nil
}
