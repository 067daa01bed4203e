package quote

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func testQuote() Quote {
	return Quote{
		PurchaseID:    uuid.MustParse("a2f7c9d0-0000-4000-8000-000000000001"),
		Currency:      "usd",
		SubtotalCents: 4999,
		TotalCents:    5274,
	}
}

func TestSignAndVerify(t *testing.T) {
	signer := Signer{Secret: []byte("test-secret")}
	q := testQuote()
	token, err := signer.Sign(q)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := signer.Verify(token, q); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestVerifyRejectsMutatedQuote(t *testing.T) {
	signer := Signer{Secret: []byte("test-secret")}
	q := testQuote()
	token, err := signer.Sign(q)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	q.TotalCents = 1
	if err := signer.Verify(token, q); !errors.Is(err, ErrTokenMismatch) {
		t.Fatalf("expected ErrTokenMismatch, got %v", err)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	issued := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	signer := Signer{Secret: []byte("test-secret"), TTL: time.Minute, Now: func() time.Time { return issued }}
	q := testQuote()
	token, err := signer.Sign(q)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	signer.Now = func() time.Time { return issued.Add(time.Hour) }
	if err := signer.Verify(token, q); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	q := testQuote()
	token, err := Signer{Secret: []byte("one")}.Sign(q)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := (Signer{Secret: []byte("two")}).Verify(token, q); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestDigestDeterministic(t *testing.T) {
	a, err := Digest(testQuote())
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	b, err := Digest(testQuote())
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	if a != b {
		t.Fatal("identical quotes must produce identical digests")
	}
}
