package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/noah-isme/checkout-engine/internal/tax"
)

// KindTaxIDReverify re-checks exemption ids that could not be verified at
// checkout because the external registry was unreachable. The purchase went
// through taxed; a late verification is surfaced for refund handling.
const KindTaxIDReverify = "taxid-reverify"

// TaxIDReverifyPayload is the task body for KindTaxIDReverify.
type TaxIDReverifyPayload struct {
	PurchaseID string `json:"purchaseId"`
	Country    string `json:"country"`
	TaxID      string `json:"taxId"`
}

// EnqueueTaxIDReverify schedules a deferred verification, deduplicated per
// purchase.
func EnqueueTaxIDReverify(ctx context.Context, e Enqueuer, p TaxIDReverifyPayload) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return e.Enqueue(ctx, Task{
		Kind:           KindTaxIDReverify,
		Payload:        raw,
		IdempotencyKey: p.PurchaseID,
		MaxAttempts:    5,
	})
}

// TaxIDReverifier handles KindTaxIDReverify tasks.
type TaxIDReverifier struct {
	Checker *tax.ExemptionChecker
	Logger  zerolog.Logger
}

// Handle implements the worker handler contract.
func (h TaxIDReverifier) Handle(ctx context.Context, t Task) error {
	var p TaxIDReverifyPayload
	if err := json.Unmarshal(t.Payload, &p); err != nil {
		return fmt.Errorf("decode taxid reverify payload: %w", err)
	}
	if h.Checker == nil {
		return errors.New("queue: exemption checker not configured")
	}
	ex, err := h.Checker.Check(ctx, p.Country, p.TaxID)
	if err != nil {
		if errors.Is(err, tax.ErrInvalidTaxID) {
			h.Logger.Info().Str("purchase_id", p.PurchaseID).Msg("tax id rejected on reverify")
			return nil
		}
		return err
	}
	if !ex.Verified {
		// Registry still unavailable; retry with backoff.
		return errors.New("queue: tax id still unverified")
	}
	h.Logger.Info().Str("purchase_id", p.PurchaseID).Str("country", p.Country).
		Msg("tax id verified after checkout, purchase eligible for tax refund")
	return nil
}
