package director

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/focusphone/mdmserver/db"
	"github.com/focusphone/mdmserver/types"
	"github.com/focusphone/mdmserver/utils"
	"github.com/pkg/errors"
	"github.com/vmihailenco/taskq/v3"
)

// StuckCommandTimeout is how long a command may sit in sent before the
// reconciliation pass assumes the delivery was lost and requeues it.
const StuckCommandTimeout = 6 * time.Hour

// StaleCheckinThreshold is how long a device may go without checking in
// before the scheduled pass tries to wake it.
const StaleCheckinThreshold = 24 * time.Hour

// ScheduledCheckin periodically wakes devices that have gone quiet or have
// work waiting, and requeues commands stuck in sent. Pushes are routed through
// the task queue so a device is woken at most once per dedupe period no matter
// how many passes see it.
func ScheduledCheckin(pushQueue taskq.Queue) {
	var task = taskq.RegisterTask(&taskq.TaskOptions{
		Name: "push",
		Handler: func(udid string) error {
			err := PushDevice(udid)
			if err != nil {
				ErrorLogger(LogHolder{Message: err.Error(), DeviceUDID: udid})
			}
			return nil
		},
	})

	interval := 30 * time.Minute
	if utils.DebugMode() {
		interval = 2 * time.Minute
	}

	for {
		InfoLogger(LogHolder{Message: "Running scheduled checkin"})
		err := processScheduledCheckin(pushQueue, task)
		if err != nil {
			ErrorLogger(LogHolder{Message: err.Error()})
		}
		time.Sleep(interval)
	}
}

// ProcessScheduledCheckinQueue runs the consumer side of the push queue.
func ProcessScheduledCheckinQueue(pushQueue taskq.Queue) {
	ctx := context.Background()
	p := pushQueue.Consumer()
	DebugLogger(LogHolder{Message: "Processing items from scheduled checkin queue"})
	err := p.Start(ctx)
	if err != nil {
		msg := fmt.Errorf("starting consumer: %v", err.Error())
		ErrorLogger(LogHolder{Message: msg.Error()})
	}
}

func processScheduledCheckin(pushQueue taskq.Queue, task *taskq.Task) error {
	if err := RequeueStuckCommands(StuckCommandTimeout); err != nil {
		return errors.Wrap(err, "processScheduledCheckin")
	}

	if err := pushAll(pushQueue, task); err != nil {
		return errors.Wrap(err, "processScheduledCheckin::pushAll")
	}

	return nil
}

func pushAll(pushQueue taskq.Queue, task *taskq.Task) error {
	var dbDevices []types.Device
	var devices []types.Device

	err := db.DB.
		Where("status IN ?", []string{types.DeviceStatusEnrolled, types.DeviceStatusManaged}).
		Find(&dbDevices).Error
	if err != nil {
		return errors.Wrap(err, "pushAll: find devices")
	}

	for i := range dbDevices {
		device := dbDevices[i]
		needsPush, err := deviceNeedsPush(device)
		if err != nil {
			ErrorLogger(LogHolder{Message: err.Error(), DeviceUDID: device.UDID})
			continue
		}
		if needsPush {
			DebugLogger(LogHolder{
				DeviceUDID:   device.UDID,
				DeviceSerial: device.SerialNumber,
				Message:      "Adding device to push list",
			})
			devices = append(devices, device)
		}
	}

	onceIn := time.Hour
	if utils.DebugMode() {
		onceIn = 2 * time.Minute
	}

	ctx := context.Background()
	for i := range devices {
		device := devices[i]

		msg := task.WithArgs(ctx, device.UDID)
		msg.OnceInPeriod(onceIn, device.UDID)
		err := pushQueue.Add(msg)
		switch {
		case errors.Is(msg.Err, taskq.ErrDuplicate):
			DebugLogger(LogHolder{
				DeviceUDID:   device.UDID,
				DeviceSerial: device.SerialNumber,
				Message:      msg.Err.Error(),
			})
		case err != nil:
			ErrorLogger(LogHolder{
				DeviceUDID:   device.UDID,
				DeviceSerial: device.SerialNumber,
				Message:      err.Error(),
			})
		case msg.Err != nil:
			ErrorLogger(LogHolder{
				DeviceUDID:   device.UDID,
				DeviceSerial: device.SerialNumber,
				Message:      msg.Err.Error(),
			})
		}
	}

	InfoLogger(LogHolder{
		Message: "Completed scheduling pushes",
		Metric:  strconv.Itoa(len(devices)),
	})
	return nil
}

// deviceNeedsPush decides whether the scheduled pass should wake a device: it
// has pending commands waiting, or it has not checked in past the staleness
// threshold. Devices without push credentials are skipped; there is no way to
// reach them.
func deviceNeedsPush(device types.Device) (bool, error) {
	if !device.HasPushCredentials() {
		return false, nil
	}

	var pending int64
	err := db.DB.Model(&types.Command{}).
		Where("device_ud_id = ? AND status = ?", device.UDID, types.CommandStatusPending).
		Count(&pending).Error
	if err != nil {
		return false, errors.Wrap(err, "deviceNeedsPush")
	}
	if pending > 0 {
		return true, nil
	}

	staleCutoff := time.Now().Add(-StaleCheckinThreshold)
	return device.LastCheckedIn.Before(staleCutoff), nil
}
