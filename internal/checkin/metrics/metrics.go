package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of the check-in subsystem.
type Metrics struct {
	BindOutcomes          *prometheus.CounterVec
	BindLatency           prometheus.Histogram
	OperationsQueued      prometheus.Counter
	ReconcileOutcomes     *prometheus.CounterVec
	PendingOperations     prometheus.Gauge
	OpenConflicts         prometheus.Gauge
	ConnectivityStatus    *prometheus.GaugeVec
	SessionTransitions    *prometheus.CounterVec
	AdministrativeActions *prometheus.CounterVec
}

// New registers the collectors with reg. Pass prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		BindOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "checkin_bind_total",
			Help: "Token bind attempts by outcome",
		}, []string{"outcome"}),
		BindLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "checkin_bind_duration_seconds",
			Help:    "Latency of conditional bind writes against the shared store",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		OperationsQueued: f.NewCounter(prometheus.CounterOpts{
			Name: "checkin_operations_queued_total",
			Help: "Bind operations deferred to the offline queue",
		}),
		ReconcileOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "checkin_reconcile_total",
			Help: "Replayed queue items by outcome",
		}, []string{"outcome"}),
		PendingOperations: f.NewGauge(prometheus.GaugeOpts{
			Name: "checkin_pending_operations",
			Help: "Operations waiting in the local queue",
		}),
		OpenConflicts: f.NewGauge(prometheus.GaugeOpts{
			Name: "checkin_open_conflicts",
			Help: "Sync conflicts waiting for acknowledgement",
		}),
		ConnectivityStatus: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "checkin_connectivity_status",
			Help: "1 for the current connectivity status, 0 otherwise",
		}, []string{"status"}),
		SessionTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "checkin_session_transitions_total",
			Help: "Session controller state transitions by target state",
		}, []string{"state"}),
		AdministrativeActions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "checkin_admin_actions_total",
			Help: "Administrative overrides and corrections by action",
		}, []string{"action"}),
	}
}

func (m *Metrics) ObserveBind(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.BindOutcomes.WithLabelValues(outcome).Inc()
	m.BindLatency.Observe(d.Seconds())
}

func (m *Metrics) IncQueued() {
	if m == nil {
		return
	}
	m.OperationsQueued.Inc()
}

func (m *Metrics) IncReconcile(outcome string) {
	if m == nil {
		return
	}
	m.ReconcileOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.PendingOperations.Set(float64(n))
}

func (m *Metrics) SetOpenConflicts(n int) {
	if m == nil {
		return
	}
	m.OpenConflicts.Set(float64(n))
}

// SetConnectivity flips the status gauge so exactly one label reads 1.
func (m *Metrics) SetConnectivity(current string, all []string) {
	if m == nil {
		return
	}
	for _, s := range all {
		v := 0.0
		if s == current {
			v = 1
		}
		m.ConnectivityStatus.WithLabelValues(s).Set(v)
	}
}

func (m *Metrics) IncTransition(state string) {
	if m == nil {
		return
	}
	m.SessionTransitions.WithLabelValues(state).Inc()
}

func (m *Metrics) IncAdminAction(action string) {
	if m == nil {
		return
	}
	m.AdministrativeActions.WithLabelValues(action).Inc()
}
