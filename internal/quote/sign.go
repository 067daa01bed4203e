package quote

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/checkout-engine/internal/common"
)

var (
	// ErrTokenMismatch is returned when a commit presents a token signed for
	// a different quote, meaning the cart changed or the price was tampered
	// with between preview and commit.
	ErrTokenMismatch = errors.New("quote: token does not match quote")
	// ErrTokenInvalid is returned for unparsable, unsigned or expired tokens.
	ErrTokenInvalid = errors.New("quote: token invalid")
)

// Signer issues and checks quote tokens: a JWS-signed digest of the Quote that
// lets the commit path prove the previewed price is the committed price.
type Signer struct {
	Secret []byte
	TTL    time.Duration
	Now    func() time.Time
}

func (s Signer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Digest returns the hex SHA-256 of the canonical JSON encoding of the quote.
func Digest(q Quote) (string, error) {
	payload, err := json.Marshal(q)
	if err != nil {
		return "", err
	}
	return common.Sha256Hex(string(payload)), nil
}

// Sign issues a token binding the quote and its purchase id.
func (s Signer) Sign(q Quote) (string, error) {
	digest, err := Digest(q)
	if err != nil {
		return "", err
	}
	now := s.now()
	ttl := s.TTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	tok, err := jwt.NewBuilder().
		IssuedAt(now).
		Expiration(now.Add(ttl)).
		Claim("quote_digest", digest).
		Claim("purchase_id", q.PurchaseID.String()).
		Build()
	if err != nil {
		return "", err
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, s.Secret))
	if err != nil {
		return "", err
	}
	return string(signed), nil
}

// Verify checks the token signature, expiry and quote binding.
func (s Signer) Verify(token string, q Quote) error {
	tok, err := jwt.Parse([]byte(token),
		jwt.WithKey(jwa.HS256, s.Secret),
		jwt.WithValidate(true),
		jwt.WithClock(jwt.ClockFunc(s.now)),
	)
	if err != nil {
		return ErrTokenInvalid
	}
	claim, ok := tok.Get("quote_digest")
	if !ok {
		return ErrTokenInvalid
	}
	digest, err := Digest(q)
	if err != nil {
		return err
	}
	if got, ok := claim.(string); !ok || got != digest {
		return ErrTokenMismatch
	}
	return nil
}
