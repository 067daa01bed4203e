package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/checkout-engine/internal/cache"
	"github.com/noah-isme/checkout-engine/internal/cart"
	"github.com/noah-isme/checkout-engine/internal/events"
	"github.com/noah-isme/checkout-engine/internal/obs"
	"github.com/noah-isme/checkout-engine/internal/queue"
	"github.com/noah-isme/checkout-engine/internal/quote"
)

// Service wraps the pricing engine with quote signing and commit
// idempotency. Retried commits for the same purchase id return the stored
// quote byte for byte; they never re-discount, re-tax or re-attribute.
type Service struct {
	Engine *Engine
	Signer quote.Signer
	// R stores committed quotes for idempotent replay.
	R         *redis.Client
	CommitTTL time.Duration
	Events    *events.Bus
	// Queue defers exemption-id reverification when the registry was down at
	// checkout time.
	Queue  *queue.Enqueuer
	Logger *zerolog.Logger
}

// PreviewOutput is a priced quote plus the token a commit must present.
type PreviewOutput struct {
	Quote quote.Quote `json:"quote"`
	Token string      `json:"token"`
}

// Preview prices the snapshot and issues a signed token binding the result.
func (s *Service) Preview(ctx context.Context, snap cart.Snapshot) (PreviewOutput, error) {
	if s == nil || s.Engine == nil {
		return PreviewOutput{}, errors.New("checkout service not configured")
	}
	q, err := s.Engine.Price(ctx, snap)
	if err != nil {
		recordOutcome("preview", "rejected")
		return PreviewOutput{}, err
	}
	token, err := s.Signer.Sign(q)
	if err != nil {
		return PreviewOutput{}, fmt.Errorf("sign quote: %w", err)
	}
	recordQuote("preview", q)
	return PreviewOutput{Quote: q, Token: token}, nil
}


// Commit re-prices the snapshot, proves the previewed price via the token and
// books the quote exactly once per purchase id.
func (s *Service) Commit(ctx context.Context, snap cart.Snapshot, token string) (quote.Quote, error) {
	if s == nil || s.Engine == nil {
		return quote.Quote{}, errors.New("checkout service not configured")
	}
	q, err := s.Engine.Price(ctx, snap)
	if err != nil {
		recordOutcome("commit", "rejected")
		return quote.Quote{}, err
	}
	if err := s.Signer.Verify(token, q); err != nil {
		recordOutcome("commit", "token_rejected")
		return quote.Quote{}, err
	}

	payload, err := json.Marshal(q)
	if err != nil {
		return quote.Quote{}, err
	}
	if s.R != nil {
		ttl := s.CommitTTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		key := cache.KeyCommittedQuote(snap.PurchaseID)
		stored, err := s.R.SetNX(ctx, key, payload, ttl).Result()
		if err != nil {
			return quote.Quote{}, fmt.Errorf("commit store: %w", err)
		}
		if !stored {
			raw, err := s.R.Get(ctx, key).Bytes()
			if err != nil {
				return quote.Quote{}, fmt.Errorf("commit replay: %w", err)
			}
			var prior quote.Quote
			if err := json.Unmarshal(raw, &prior); err != nil {
				return quote.Quote{}, fmt.Errorf("commit replay: %w", err)
			}
			if s.Logger != nil {
				s.Logger.Info().Str("purchase_id", snap.PurchaseID.String()).Msg("commit replayed")
			}
			if obs.CommitReplaysTotal != nil {
				obs.CommitReplaysTotal.Inc()
			}
			return prior, nil
		}
	}

	if s.Events != nil {
		if _, err := s.Events.Emit(ctx, events.TopicQuoteCommitted, snap.PurchaseID, map[string]any{
			"purchaseId": snap.PurchaseID.String(),
			"totalCents": q.TotalCents,
			"currency":   q.Currency,
		}); err != nil && s.Logger != nil {
			s.Logger.Warn().Err(err).Msg("emit quote.committed")
		}
		if q.CodeRejectedReason != "" {
			if _, err := s.Events.Emit(ctx, events.TopicOfferCodeRejected, snap.PurchaseID, map[string]any{
				"purchaseId": snap.PurchaseID.String(),
				"reason":     q.CodeRejectedReason,
			}); err != nil && s.Logger != nil {
				s.Logger.Warn().Err(err).Msg("emit offer_code.rejected")
			}
		}
	}
	if s.Queue != nil && snap.Buyer.TaxID != "" && q.TaxExemptionID == "" {
		err := queue.EnqueueTaxIDReverify(ctx, *s.Queue, queue.TaxIDReverifyPayload{
			PurchaseID: snap.PurchaseID.String(),
			Country:    snap.Buyer.ElectedCountry,
			TaxID:      snap.Buyer.TaxID,
		})
		if err != nil && s.Logger != nil {
			s.Logger.Warn().Err(err).Msg("enqueue taxid reverify")
		}
		if err == nil && s.Events != nil {
			if _, err := s.Events.Emit(ctx, events.TopicTaxIDUnverified, snap.PurchaseID, map[string]any{
				"purchaseId": snap.PurchaseID.String(),
				"country":    snap.Buyer.ElectedCountry,
			}); err != nil && s.Logger != nil {
				s.Logger.Warn().Err(err).Msg("emit tax_id.unverified")
			}
		}
	}
	recordQuote("commit", q)
	return q, nil
}

func recordOutcome(operation, result string) {
	if obs.QuotesTotal != nil {
		obs.QuotesTotal.WithLabelValues(operation, result).Inc()
	}
}

func recordQuote(operation string, q quote.Quote) {
	recordOutcome(operation, "ok")
	if obs.DiscountSourceTotal != nil {
		for _, item := range q.Items {
			obs.DiscountSourceTotal.WithLabelValues(string(item.DiscountSource)).Inc()
		}
	}
	if q.CodeRejectedReason != "" && obs.OfferCodeRejectedTotal != nil {
		obs.OfferCodeRejectedTotal.WithLabelValues(q.CodeRejectedReason).Inc()
	}
	if obs.QuoteTotalCents != nil {
		obs.QuoteTotalCents.Observe(float64(q.TotalCents))
	}
}
