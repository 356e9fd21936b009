package director

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	TotalPushes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mdmserver",
		Subsystem: "apns_pushes",
		Name:      "total",
		Help:      "Total number of APNs pushes completed.",
	})

	PushErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mdmserver",
		Subsystem: "apns_pushes",
		Name:      "errors_total",
		Help:      "Number of APNs pushes that failed.",
	})

	ProfilesQueued = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mdmserver",
		Subsystem: "profiles",
		Name:      "queued_total",
		Help:      "Number of InstallProfile commands queued.",
	})

	CommandsAcknowledged = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mdmserver",
		Subsystem: "commands",
		Name:      "acknowledged_total",
		Help:      "Number of commands acknowledged by devices.",
	})
)

func Metrics() {
	prometheus.MustRegister(TotalPushes)
	prometheus.MustRegister(PushErrors)
	prometheus.MustRegister(ProfilesQueued)
	prometheus.MustRegister(CommandsAcknowledged)
}
