package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RidesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rideon", Name: "rides_created_total", Help: "Total ride requests created"})
	RideTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rideon", Name: "ride_transitions_total", Help: "Committed ride status transitions"},
		[]string{"to"})
	RidersConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "rideon", Name: "riders_connected", Help: "Riders currently connected to the relay"})
	ClientsConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "rideon", Name: "clients_connected", Help: "All clients currently connected to the relay"})
	RelayEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rideon", Name: "relay_events_total", Help: "Relay events handled, by event name"},
		[]string{"event"})
	RelayDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rideon", Name: "relay_dropped_total", Help: "Relay events dropped for missing routing fields or absent recipients"},
		[]string{"event"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "rideon", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rideon",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
