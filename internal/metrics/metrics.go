package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SimulationTicks counts completed production ticks.
	SimulationTicks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "prodmon_simulation_ticks_total",
			Help: "Total number of completed simulation ticks",
		},
	)

	// TickErrors counts periodic task runs that failed and were skipped.
	TickErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prodmon_tick_errors_total",
			Help: "Total number of periodic task runs skipped because of an error",
		},
		[]string{"task"},
	)

	ShiftRollovers = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "prodmon_shift_rollovers_total",
			Help: "Total number of shift changes observed by the simulator",
		},
	)

	MachineFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "prodmon_machine_failures_total",
			Help: "Total number of injected machine breakdowns",
		},
	)

	// MachinesByStatus is the current machine count per status.
	MachinesByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "prodmon_machines",
			Help: "Number of machines per status in the active shift",
		},
		[]string{"status"},
	)

	OpenTickets = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "prodmon_repair_tickets_open",
			Help: "Number of repair tickets not yet resolved",
		},
	)

	RepairRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "prodmon_repair_requests_total",
			Help: "Total number of repair tickets opened",
		},
	)

	RepairsResolved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "prodmon_repairs_resolved_total",
			Help: "Total number of repair tickets resolved",
		},
	)

	StaleWrites = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "prodmon_stale_writes_total",
			Help: "Total number of shift state writes rejected as stale",
		},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prodmon_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "prodmon_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// ObserveMachines resets the per-status gauge from a machine status list.
func ObserveMachines(statuses []string) {
	MachinesByStatus.Reset()
	for _, s := range statuses {
		MachinesByStatus.WithLabelValues(s).Inc()
	}
}
