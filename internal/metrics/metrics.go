// Package metrics exposes the service's Prometheus counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BidsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "playmarket_bids_accepted_total",
		Help: "Bids accepted by the bid engine.",
	})

	BidsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playmarket_bids_rejected_total",
		Help: "Bids rejected, by stable error code.",
	}, []string{"code"})

	AuctionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "playmarket_auctions_created_total",
		Help: "Auctions created.",
	})

	AuctionsEnded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "playmarket_auctions_ended_total",
		Help: "Auctions ended, by sweep or admin action.",
	})

	TransfersInitiated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playmarket_transfers_total",
		Help: "External point transfers, by outcome.",
	}, []string{"status"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playmarket_http_requests_total",
		Help: "HTTP requests, by method and status class.",
	}, []string{"method", "status"})
)
