package events

// Topic constants for domain events emitted by the pricing service.
const (
	TopicQuotePriced        = "quote.priced"
	TopicQuoteCommitted     = "quote.committed"
	TopicOfferCodeRejected  = "offer_code.rejected"
	TopicTaxIDUnverified    = "tax_id.unverified"
	TopicInstallmentPlanned = "installment_plan.created"
)

// DefaultTopics returns the canonical list of topics that support notifications.
func DefaultTopics() []string {
	return []string{
		TopicQuotePriced,
		TopicQuoteCommitted,
		TopicOfferCodeRejected,
		TopicTaxIDUnverified,
		TopicInstallmentPlanned,
	}
}
