// Package metrics provides observability for the game server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector gathers server-wide counters and gauges. One instance is shared
// by the hub, the registries, and every room engine.
type Collector struct {
	RoomsActive       prometheus.Gauge
	ConnectionsActive prometheus.Gauge

	GamesStarted   prometheus.Counter
	GamesCompleted prometheus.Counter

	EventsIn      *prometheus.CounterVec
	EventsOut     *prometheus.CounterVec
	EventsDropped prometheus.Counter

	TimerFires   prometheus.Counter
	TimerCancels prometheus.Counter

	MessagesPersisted prometheus.Counter
	PersistErrors     prometheus.Counter

	registry *prometheus.Registry
}

// NewCollector registers all game-server metrics on a fresh registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		RoomsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mafia_rooms_active",
			Help: "Number of rooms currently held by the registry.",
		}),
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mafia_ws_connections_active",
			Help: "Number of open websocket connections.",
		}),
		GamesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mafia_games_started_total",
			Help: "Games that reached role assignment.",
		}),
		GamesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mafia_games_completed_total",
			Help: "Games that reached a winner.",
		}),
		EventsIn: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mafia_events_in_total",
			Help: "Inbound client events by type.",
		}, []string{"event"}),
		EventsOut: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mafia_events_out_total",
			Help: "Outbound events by type.",
		}, []string{"event"}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mafia_events_dropped_total",
			Help: "Outbound events dropped because a client send buffer was full.",
		}),
		TimerFires: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mafia_phase_timer_fires_total",
			Help: "Phase deadline timers that expired.",
		}),
		TimerCancels: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mafia_phase_timer_cancels_total",
			Help: "Phase deadline timers cancelled by early completion.",
		}),
		MessagesPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mafia_chat_messages_persisted_total",
			Help: "Chat messages written to the store.",
		}),
		PersistErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mafia_chat_persist_errors_total",
			Help: "Failed chat message writes.",
		}),
		registry: reg,
	}

	reg.MustRegister(
		c.RoomsActive, c.ConnectionsActive,
		c.GamesStarted, c.GamesCompleted,
		c.EventsIn, c.EventsOut, c.EventsDropped,
		c.TimerFires, c.TimerCancels,
		c.MessagesPersisted, c.PersistErrors,
	)
	return c
}

// Handler exposes the collector for scraping.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
