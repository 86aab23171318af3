package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Shop struct {
	WebhookEvents  *prometheus.CounterVec // by gateway and outcome
	CardsAllocated prometheus.Counter
	Shortfalls     prometheus.Counter
}

func NewShop(service string) *Shop {
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cardshop",
		Subsystem: service,
		Name:      "webhook_events_total",
		Help:      "Webhook notifications by gateway and processing outcome.",
	}, []string{"gateway", "outcome"})
	allocated := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cardshop",
		Subsystem: service,
		Name:      "cards_allocated_total",
		Help:      "Cards claimed by the allocator.",
	})
	shortfalls := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cardshop",
		Subsystem: service,
		Name:      "allocation_shortfalls_total",
		Help:      "Paid orders that could not be fulfilled from stock.",
	})

	prometheus.MustRegister(webhooks, allocated, shortfalls)
	return &Shop{WebhookEvents: webhooks, CardsAllocated: allocated, Shortfalls: shortfalls}
}

func Handler() http.Handler {
	return promhttp.Handler()
}
