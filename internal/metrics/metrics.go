// Package metrics holds the bot's Prometheus collectors. They register on the
// default registry through promauto and are served by Handler.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Upstream label values
const (
	UpstreamDirectory = "directory"
	UpstreamLedger    = "ledger"
	UpstreamWhatsApp  = "whatsapp"
	UpstreamAMQP      = "amqp"
	UpstreamJournal   = "journal"
)

var (
	webhookNotifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gastosbot_webhook_notifications_total",
			Help: "Total number of webhook notifications received by decode result",
		},
		[]string{"result"}, // ok, malformed, ignored
	)

	inboundEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gastosbot_inbound_events_total",
			Help: "Total number of inbound user messages by kind",
		},
		[]string{"kind"},
	)

	commandsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gastosbot_commands_processed_total",
			Help: "Total number of processed commands by type",
		},
		[]string{"command"},
	)

	outboundMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gastosbot_outbound_messages_total",
			Help: "Total number of outbound messages by type and result",
		},
		[]string{"type", "result"},
	)

	upstreamErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gastosbot_upstream_errors_total",
			Help: "Total number of failed calls to external services",
		},
		[]string{"upstream"},
	)

	eventHandlingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gastosbot_event_handling_duration_seconds",
			Help:    "Duration of handling one inbound event, reply included",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)
)

func NotificationReceived(result string) {
	webhookNotifications.WithLabelValues(result).Inc()
}

func EventReceived(kind string) {
	inboundEvents.WithLabelValues(kind).Inc()
}

func CommandProcessed(command string) {
	commandsProcessed.WithLabelValues(command).Inc()
}

func MessageSent(replyType string, ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	outboundMessages.WithLabelValues(replyType, result).Inc()
}

func UpstreamError(upstream string) {
	upstreamErrors.WithLabelValues(upstream).Inc()
}

func ObserveEventHandling(d time.Duration) {
	eventHandlingDuration.Observe(d.Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
