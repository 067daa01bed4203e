package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// QuotesTotal counts pricing outcomes.
	QuotesTotal *prometheus.CounterVec
	// DiscountSourceTotal counts which mechanism won each priced line.
	DiscountSourceTotal *prometheus.CounterVec
	// OfferCodeRejectedTotal counts soft offer-code rejections by reason.
	OfferCodeRejectedTotal *prometheus.CounterVec
	// TaxIDVerificationTotal counts exemption-id verification outcomes.
	TaxIDVerificationTotal *prometheus.CounterVec
	// CommitReplaysTotal counts idempotent commit replays.
	CommitReplaysTotal prometheus.Counter
	// QuoteTotalCents observes the charged total distribution.
	QuoteTotalCents prometheus.Histogram
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		QuotesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quotes_total",
			Help:      "Count of quote pricing outcomes.",
		}, []string{"operation", "result"})
		DiscountSourceTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discount_source_total",
			Help:      "Count of priced lines by winning discount source.",
		}, []string{"source"})
		OfferCodeRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "offer_code_rejected_total",
			Help:      "Count of soft offer-code rejections by reason.",
		}, []string{"reason"})
		TaxIDVerificationTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tax_id_verification_total",
			Help:      "Count of exemption id verification outcomes.",
		}, []string{"result"})
		CommitReplaysTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commit_replays_total",
			Help:      "Number of commits answered from the idempotency store.",
		})
		QuoteTotalCents = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quote_total_cents",
			Help:      "Distribution of charged quote totals in cents.",
			Buckets:   []float64{100, 500, 1000, 2500, 5000, 10000, 25000, 50000, 100000},
		})

		mustRegisterCollector(reg, QuotesTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				QuotesTotal = v
			}
		})
		mustRegisterCollector(reg, DiscountSourceTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				DiscountSourceTotal = v
			}
		})
		mustRegisterCollector(reg, OfferCodeRejectedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				OfferCodeRejectedTotal = v
			}
		})
		mustRegisterCollector(reg, TaxIDVerificationTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				TaxIDVerificationTotal = v
			}
		})
		mustRegisterCollector(reg, CommitReplaysTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				CommitReplaysTotal = v
			}
		})
		mustRegisterCollector(reg, QuoteTotalCents, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				QuoteTotalCents = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
