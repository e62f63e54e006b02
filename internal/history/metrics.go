package history

import "github.com/prometheus/client_golang/prometheus"

// Action results used as the "result" label.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Metrics holds the automation counters.
type Metrics struct {
	TriggersFired *prometheus.CounterVec
	Actions       *prometheus.CounterVec
}

// NewMetrics creates the counters and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TriggersFired: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "graylogic",
				Subsystem: "automation",
				Name:      "triggers_fired_total",
				Help:      "Device triggers fired, by integration domain and trigger kind.",
			},
			[]string{"domain", "kind"},
		),
		Actions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "graylogic",
				Subsystem: "automation",
				Name:      "actions_total",
				Help:      "Device actions executed, by integration domain, action kind and result.",
			},
			[]string{"domain", "kind", "result"},
		),
	}
	reg.MustRegister(m.TriggersFired, m.Actions)
	return m
}
