package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the storefront's business metrics. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	CartItemsAdded    *prometheus.CounterVec
	CartMerges        prometheus.Counter
	CartMergeSkipped  prometheus.Counter
	OrdersPlaced      *prometheus.CounterVec
	OrderValue        prometheus.Histogram
	OrderItemCount    prometheus.Histogram
	CheckoutFailures  *prometheus.CounterVec
	EventPublishFails prometheus.Counter
}

// NewMetrics registers the business metrics with reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "storefront"
	}
	f := promauto.With(reg)
	const subsystem = "business"

	return &Metrics{
		CartItemsAdded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "cart_items_added_total",
			Help:      "Add-to-cart operations by cart kind",
		}, []string{"cart"}),
		CartMerges: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "cart_merges_total",
			Help:      "Anonymous carts merged into customer carts at login",
		}),
		CartMergeSkipped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "cart_merge_skipped_lines_total",
			Help:      "Anonymous cart lines skipped during merge",
		}),
		OrdersPlaced: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "orders_placed_total",
			Help:      "Orders placed by payment method",
		}, []string{"payment_method"}),
		OrderValue: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "order_value",
			Help:      "Order totals",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500},
		}),
		OrderItemCount: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "order_item_count",
			Help:      "Units per order",
			Buckets:   prometheus.LinearBuckets(1, 2, 10),
		}),
		CheckoutFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "checkout_failures_total",
			Help:      "Failed checkouts by error code",
		}, []string{"code"}),
		EventPublishFails: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "event_publish_failures_total",
			Help:      "Order events that could not be published",
		}),
	}
}

func (m *Metrics) ItemAdded(cart string) {
	if m == nil {
		return
	}
	m.CartItemsAdded.WithLabelValues(cart).Inc()
}

func (m *Metrics) Merged(skipped int) {
	if m == nil {
		return
	}
	m.CartMerges.Inc()
	m.CartMergeSkipped.Add(float64(skipped))
}

func (m *Metrics) OrderPlaced(paymentMethod string, total float64, units int) {
	if m == nil {
		return
	}
	m.OrdersPlaced.WithLabelValues(paymentMethod).Inc()
	m.OrderValue.Observe(total)
	m.OrderItemCount.Observe(float64(units))
}

func (m *Metrics) CheckoutFailed(code string) {
	if m == nil {
		return
	}
	m.CheckoutFailures.WithLabelValues(code).Inc()
}

func (m *Metrics) PublishFailed() {
	if m == nil {
		return
	}
	m.EventPublishFails.Inc()
}
