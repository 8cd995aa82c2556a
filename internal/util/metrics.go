package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BidsAcceptedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bids_accepted_total",
		Help: "Total number of accepted bids",
	}, []string{"auction_type"})

	BidsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bids_rejected_total",
		Help: "Total number of rejected bids",
	}, []string{"reason"})

	BidsTransientErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bids_transient_errors_total",
		Help: "Total number of bid attempts that failed with a transient error",
	}, []string{"kind"})

	BidCommitRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bid_commit_retries_total",
		Help: "Total number of optimistic-concurrency retries during bid commits",
	})

	PlaceBidLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "place_bid_latency_seconds",
		Help:    "Latency of the full place-bid critical section",
		Buckets: prometheus.DefBuckets,
	})

	AuctionsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auctions_created_total",
		Help: "Total number of auctions created",
	})

	AuctionsCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auctions_cancelled_total",
		Help: "Total number of auctions cancelled",
	})

	SweepTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sweep_transitions_total",
		Help: "Status transitions applied by the periodic sweep",
	}, []string{"to_status"})

	SweepLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sweep_latency_seconds",
		Help:    "Latency of one full status sweep pass",
		Buckets: prometheus.DefBuckets,
	})

	FeedSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "feed_subscribers",
		Help: "Currently connected live update feed subscribers",
	})

	FeedEventsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feed_events_dropped_total",
		Help: "Feed events dropped because a subscriber could not keep up",
	})

	WatchTogglesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "watch_toggles_total",
		Help: "Total number of watch toggles",
	}, []string{"watching"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
