package tsgate

import "github.com/prometheus/client_golang/prometheus"

var metricsNamespace = "tsgate"

var (
	numClientsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "num_local_clients",
	})

	ghostsReapedCount = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "ghost_clients_reaped_count",
	})

	heartbeatErrorsCount = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "heartbeat_cycle_errors_count",
	})

	eventsPublishedCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "events_published_count",
	}, []string{"type"})

	clientTransitionsCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "client_transitions_count",
	}, []string{"type"})
)

var (
	clientConnectsCount    prometheus.Counter
	clientDisconnectsCount prometheus.Counter
)

func init() {
	prometheus.MustRegister(numClientsGauge)
	prometheus.MustRegister(ghostsReapedCount)
	prometheus.MustRegister(heartbeatErrorsCount)
	prometheus.MustRegister(eventsPublishedCount)
	prometheus.MustRegister(clientTransitionsCount)

	clientConnectsCount = clientTransitionsCount.WithLabelValues("connect")
	clientDisconnectsCount = clientTransitionsCount.WithLabelValues("disconnect")
}
