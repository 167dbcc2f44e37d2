// Package metrics exposes prometheus collectors for the chat core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "chatt"

// Admission results.
const (
	AdmissionAccepted = "accepted"
	AdmissionRejected = "rejected"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	sessionsOnline    prometheus.Gauge
	rooms             prometheus.Gauge
	messagesBroadcast prometheus.Counter
	evictions         prometheus.Counter
	admissions        *prometheus.CounterVec
}

// New registers all collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		sessionsOnline: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_online",
			Help:      "Sessions currently holding a display name.",
		}),
		rooms: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms",
			Help:      "Rooms known to the registry.",
		}),
		messagesBroadcast: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_broadcast_total",
			Help:      "Message pushes written to member channels.",
		}),
		evictions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evictions_total",
			Help:      "Sessions removed after a failed write.",
		}),
		admissions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admissions_total",
			Help:      "Admission attempts by result.",
		}, []string{"result"}),
	}
}

func (m *Metrics) SessionOpened() {
	if m != nil {
		m.sessionsOnline.Inc()
	}
}

func (m *Metrics) SessionClosed() {
	if m != nil {
		m.sessionsOnline.Dec()
	}
}

func (m *Metrics) RoomAdded() {
	if m != nil {
		m.rooms.Inc()
	}
}

func (m *Metrics) MessagesDelivered(n int) {
	if m != nil && n > 0 {
		m.messagesBroadcast.Add(float64(n))
	}
}

func (m *Metrics) Evicted() {
	if m != nil {
		m.evictions.Inc()
	}
}

func (m *Metrics) Admission(result string) {
	if m != nil {
		m.admissions.WithLabelValues(result).Inc()
	}
}
