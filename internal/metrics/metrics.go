package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "beacon_connections_active",
		Help: "Number of currently connected stream clients.",
	})
	ConnectionsAdmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "beacon_connections_admitted_total",
		Help: "Total number of stream connections admitted.",
	})
	AdmissionRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "beacon_admission_rejections_total",
		Help: "Total number of rejected stream admissions by reason.",
	}, []string{"reason"})
	EventsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "beacon_events_emitted_total",
		Help: "Total number of events emitted by kind.",
	}, []string{"kind"})
	EventsReplayed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "beacon_events_replayed_total",
		Help: "Total number of historical events replayed to reconnecting clients.",
	})
	DeliveryFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "beacon_delivery_failures_total",
		Help: "Total number of per-connection event delivery failures.",
	})
	BroadcastsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "beacon_broadcasts_total",
		Help: "Total number of broadcasts by mode (atomic or chunked).",
	}, []string{"mode"})
	HistorySize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "beacon_history_events",
		Help: "Current number of events held in the replay buffer.",
	})
	IdleTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "beacon_idle_timeouts_total",
		Help: "Total number of connections closed by the idle watchdog.",
	})
	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "beacon_login_attempts_total",
		Help: "Total number of login attempts by outcome.",
	}, []string{"outcome"})
)
