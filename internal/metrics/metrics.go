package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	storeOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_store_operations_total",
		Help: "State store operations applied, by operation name",
	}, []string{"operation"})
	logEvictions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dashboard_log_evictions_total",
		Help: "Activity log entries dropped by the keep-last policy",
	})
	notificationsRaised = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_notifications_total",
		Help: "Notifications raised, by kind",
	}, []string{"kind"})
	notificationsExpired = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dashboard_notifications_expired_total",
		Help: "Notifications removed by their expiry timer",
	})
	simulatorTicks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dashboard_simulator_ticks_total",
		Help: "Activity simulator ticks executed",
	})
	simulatorActivities = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_simulator_activities_total",
		Help: "Simulated activities applied, by catalog name",
	}, []string{"activity"})
	simulatorRunning = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dashboard_simulator_running",
		Help: "1 while the activity simulator is running",
	})
	workflowRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_workflow_runs_total",
		Help: "Workflow invocations, by workflow and outcome",
	}, []string{"workflow", "outcome"})
	streamClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dashboard_stream_clients",
		Help: "Connected snapshot stream clients",
	})
)

func init() {
	prometheus.MustRegister(
		storeOperations, logEvictions, notificationsRaised, notificationsExpired,
		simulatorTicks, simulatorActivities, simulatorRunning,
		workflowRuns, streamClients,
	)
	simulatorRunning.Set(0)
}

func StoreOperation(name string) { storeOperations.WithLabelValues(name).Inc() }

func LogEvicted(n int) {
	if n > 0 {
		logEvictions.Add(float64(n))
	}
}

func NotificationRaised(kind string) { notificationsRaised.WithLabelValues(kind).Inc() }

func NotificationExpired() { notificationsExpired.Inc() }

func SimulatorTick(activity string) {
	simulatorTicks.Inc()
	simulatorActivities.WithLabelValues(activity).Inc()
}

func SimulatorRunning(running bool) {
	if running {
		simulatorRunning.Set(1)
		return
	}
	simulatorRunning.Set(0)
}

func WorkflowRun(workflow, outcome string) { workflowRuns.WithLabelValues(workflow, outcome).Inc() }

func StreamClientConnected()    { streamClients.Inc() }
func StreamClientDisconnected() { streamClients.Dec() }

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
