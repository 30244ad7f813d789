// Package metrics exposes Prometheus counters for the bot.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the dialogue engine and the scheduler report to.
type Recorder interface {
	RecordEvent(state string)
	RecordMoodSaved()
	RecordStorageFailure(op string)
	RecordReminderSent()
	RecordSendFailure(source string)
}

type Collector struct {
	events          *prometheus.CounterVec
	moodsSaved      prometheus.Counter
	storageFailures *prometheus.CounterVec
	remindersSent   prometheus.Counter
	sendFailures    *prometheus.CounterVec
}

// NewCollector registers all metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mood_events_total",
			Help: "Inbound messages by dialogue state at arrival.",
		}, []string{"state"}),
		moodsSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mood_entries_saved_total",
			Help: "Mood entries committed to the log.",
		}),
		storageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mood_storage_failures_total",
			Help: "Failed storage operations.",
		}, []string{"op"}),
		remindersSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mood_reminders_sent_total",
			Help: "Daily reminders delivered to the transport.",
		}),
		sendFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mood_send_failures_total",
			Help: "Outbound messages the transport rejected.",
		}, []string{"source"}),
	}

	reg.MustRegister(
		c.events,
		c.moodsSaved,
		c.storageFailures,
		c.remindersSent,
		c.sendFailures,
	)
	return c
}

func (c *Collector) RecordEvent(state string) {
	c.events.WithLabelValues(state).Inc()
}

func (c *Collector) RecordMoodSaved() {
	c.moodsSaved.Inc()
}

func (c *Collector) RecordStorageFailure(op string) {
	c.storageFailures.WithLabelValues(op).Inc()
}

func (c *Collector) RecordReminderSent() {
	c.remindersSent.Inc()
}

func (c *Collector) RecordSendFailure(source string) {
	c.sendFailures.WithLabelValues(source).Inc()
}

// Handler serves /metrics for the given gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return mux
}
