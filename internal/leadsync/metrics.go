package leadsync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sells-group/leadsync/internal/model"
	"github.com/sells-group/leadsync/internal/resilience"
)

var (
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadsync_operations_total",
			Help: "Caller-facing operations by outcome",
		},
		[]string{"op", "status"},
	)

	remotePushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadsync_remote_pushes_total",
			Help: "CRM pushes by backend and outcome",
		},
		[]string{"backend", "status"},
	)

	outboxEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "leadsync_outbox_entries",
			Help: "Outbox entries by status, as of the last drain",
		},
		[]string{"status"},
	)
)

func recordOperation(op string, res model.SyncResult) {
	operationsTotal.WithLabelValues(op, string(res.Status)).Inc()
}

func recordPush(backend, status string) {
	remotePushesTotal.WithLabelValues(backend, status).Inc()
}

func recordOutbox(status resilience.OutboxStatus, n int) {
	outboxEntries.WithLabelValues(string(status)).Set(float64(n))
}
