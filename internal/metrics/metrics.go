// Package metrics exposes the server's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the server's Prometheus collectors. A nil *Metrics is
// a valid no-op sink, so disabling metrics by configuration costs one
// nil check per event.
type Metrics struct {
	connectionsTotal prometheus.Counter
	usersOnline      prometheus.Gauge
	authTotal        *prometheus.CounterVec
	packetsTotal     *prometheus.CounterVec
	sessionsTotal    prometheus.Counter
	sessionsActive   prometheus.Gauge
	shotsTotal       *prometheus.CounterVec
	matchesTotal     prometheus.Counter
}

// New registers the battleship collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		connectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "battleship_connections_total",
			Help: "Accepted TCP connections.",
		}),
		usersOnline: factory.NewGauge(prometheus.GaugeOpts{
			Name: "battleship_users_online",
			Help: "Users currently present in the user table.",
		}),
		authTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "battleship_auth_total",
			Help: "Authentication outcomes.",
		}, []string{"result"}),
		packetsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "battleship_packets_total",
			Help: "Packets read from clients by code.",
		}, []string{"code"}),
		sessionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "battleship_sessions_started_total",
			Help: "Game sessions started.",
		}),
		sessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "battleship_sessions_active",
			Help: "Game sessions currently running.",
		}),
		shotsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "battleship_shots_total",
			Help: "Shots resolved by outcome.",
		}, []string{"result"}),
		matchesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "battleship_matches_finished_total",
			Help: "Matches played to a result.",
		}),
	}
}

func (m *Metrics) ConnectionAccepted() {
	if m == nil {
		return
	}
	m.connectionsTotal.Inc()
}

func (m *Metrics) UserOnline() {
	if m == nil {
		return
	}
	m.usersOnline.Inc()
}

func (m *Metrics) UserOffline() {
	if m == nil {
		return
	}
	m.usersOnline.Dec()
}

func (m *Metrics) AuthResult(result string) {
	if m == nil {
		return
	}
	m.authTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) PacketRead(code string) {
	if m == nil {
		return
	}
	m.packetsTotal.WithLabelValues(code).Inc()
}

func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.sessionsTotal.Inc()
	m.sessionsActive.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.sessionsActive.Dec()
}

func (m *Metrics) ShotResolved(result string) {
	if m == nil {
		return
	}
	m.shotsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) MatchFinished() {
	if m == nil {
		return
	}
	m.matchesTotal.Inc()
}
