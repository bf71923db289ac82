package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PurchasesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ticket_purchases_total",
		Help: "Total number of confirmed ticket purchases",
	})

	TicketsIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tickets_issued_total",
		Help: "Total number of tickets issued",
	})

	PurchasesFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ticket_purchases_failed_total",
		Help: "Total number of failed ticket purchases",
	}, []string{"reason"})

	PurchasesRefundedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ticket_purchases_refunded_total",
		Help: "Total number of refunded purchases",
	})

	InventoryReserveLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "inventory_reserve_latency_seconds",
		Help:    "Latency of inventory reservation operations",
		Buckets: prometheus.DefBuckets,
	})

	InventoryReservationsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_reservations_failed_total",
		Help: "Total number of failed inventory reservations",
	}, []string{"reason"})

	RedemptionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ticket_redemptions_total",
		Help: "Total number of redemption attempts",
	}, []string{"outcome"})

	WebhooksReceivedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_webhooks_received_total",
		Help: "Total number of payment webhooks received",
	}, []string{"result"})

	NotificationsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_sent_total",
		Help: "Total number of confirmation notifications sent",
	}, []string{"channel", "result"})

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
