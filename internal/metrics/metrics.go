// internal/metrics/metrics.go
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every forca metric plus the Go runtime collectors.
var Registry = prometheus.NewRegistry()

var (
	RoomsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "forca",
		Name:      "rooms_created_total",
		Help:      "Rooms created.",
	})
	PlayersJoined = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "forca",
		Name:      "players_joined_total",
		Help:      "Players admitted to a room, hosts excluded.",
	})
	GamesStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "forca",
		Name:      "games_started_total",
		Help:      "Rooms moved from waiting to playing.",
	})
	RoomsFinished = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "forca",
		Name:      "rooms_finished_total",
		Help:      "Rooms moved from playing to finished.",
	})
	GuessOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "forca",
		Name:      "guess_outcomes_total",
		Help:      "Committed guesses by outcome.",
	}, []string{"outcome"})
	GuessesIgnored = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "forca",
		Name:      "guesses_ignored_total",
		Help:      "Guesses that changed nothing, by reason.",
	}, []string{"reason"})
	GuessDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "forca",
		Name:      "guess_duration_seconds",
		Help:      "Time to resolve a guess, store round trips included.",
		Buckets:   prometheus.DefBuckets,
	})
	WebSocketConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "forca",
		Name:      "websocket_connections",
		Help:      "Open room WebSocket connections.",
	})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		RoomsCreated,
		PlayersJoined,
		GamesStarted,
		RoomsFinished,
		GuessOutcomes,
		GuessesIgnored,
		GuessDuration,
		WebSocketConnections,
	)
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
