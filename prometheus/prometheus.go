package prometheus

import (
	"time"

	"github.com/focusphone/mdmserver/db"
	"github.com/focusphone/mdmserver/log"
	"github.com/focusphone/mdmserver/types"
	"github.com/prometheus/client_golang/prometheus"
)

func Metrics() {
	totalDevices()
	pendingCommands()
	outstandingTokens()
}

func totalDevices() {
	var count int64
	totalDevices := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mdmserver",
		Subsystem: "devices",
		Name:      "count",
		Help:      "Total number of devices in the directory",
	})
	prometheus.MustRegister(totalDevices)
	// loop over the ticker and update the total devices every 10 seconds
	go func() {
		for range time.Tick(time.Second * 10) {
			err := db.DB.Model(&types.Device{}).Count(&count).Error
			if err != nil {
				log.Error(err)
			}
			totalDevices.Set(float64(count))
		}
	}()
}

func pendingCommands() {
	var count int64
	pendingCommands := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mdmserver",
		Subsystem: "commands",
		Name:      "pending_count",
		Help:      "Number of commands waiting for delivery",
	})
	prometheus.MustRegister(pendingCommands)
	go func() {
		for range time.Tick(time.Second * 10) {
			err := db.DB.Model(&types.Command{}).
				Where("status = ?", types.CommandStatusPending).
				Count(&count).Error
			if err != nil {
				log.Error(err)
			}
			pendingCommands.Set(float64(count))
		}
	}()
}

func outstandingTokens() {
	var count int64
	outstandingTokens := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mdmserver",
		Subsystem: "enrollment_tokens",
		Name:      "outstanding_count",
		Help:      "Number of unused, unexpired enrollment tokens",
	})
	prometheus.MustRegister(outstandingTokens)
	go func() {
		for range time.Tick(time.Second * 10) {
			err := db.DB.Model(&types.EnrollmentToken{}).
				Where("used = ? AND expires_at > ?", false, time.Now()).
				Count(&count).Error
			if err != nil {
				log.Error(err)
			}
			outstandingTokens.Set(float64(count))
		}
	}()
}
