package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"chatcommerce/internal/domain"
)

func TestCreatePaymentLink(t *testing.T) {
	var got linkPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "key" || pass != "secret" {
			t.Errorf("expected basic auth, got %q %q", user, pass)
		}
		if r.URL.Path != "/payment_links" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"id":"plink_1","short_url":"https://rzp.io/i/abc"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", "secret", "https://shop.example/paid")
	link, err := c.CreatePaymentLink(context.Background(), LinkRequest{
		Amount: 18000, Reference: "ORD20250808ABCDEF123456", Contact: "919000000001",
	})
	if err != nil {
		t.Fatalf("create link: %v", err)
	}
	if link.URL != "https://rzp.io/i/abc" || link.ID != "plink_1" {
		t.Fatalf("unexpected link %+v", link)
	}
	if got.Amount != 18000 || got.Currency != "INR" || got.ReferenceID != "ORD20250808ABCDEF123456" {
		t.Fatalf("unexpected payload %+v", got)
	}
	if got.Customer.Contact != "+919000000001" || got.CallbackMethod != "get" {
		t.Fatalf("unexpected customer/callback %+v", got)
	}
}

func TestCreatePaymentLinkUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"amount invalid"}}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "k", "s", "").CreatePaymentLink(context.Background(), LinkRequest{Amount: 1})
	if domain.KindOf(err) != domain.KindUpstream {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"event":"payment_link.paid"}`)
	sig := Sign(body, "whsec")

	if err := VerifySignature(body, sig, "whsec"); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}
	if err := VerifySignature(body, sig, "other"); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected invalid signature for wrong secret, got %v", err)
	}
	if err := VerifySignature([]byte(`{}`), sig, "whsec"); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected invalid signature for tampered body")
	}
	if err := VerifySignature(body, "zz", "whsec"); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected invalid signature for non-hex input")
	}
}

func TestEventPaid(t *testing.T) {
	body := []byte(`{"event":"payment_link.paid","payload":{"payment_link":{"entity":{"id":"plink_1","reference_id":"ORD1","customer":{"contact":"+91 90000 00001"}}}}}`)
	ev, err := ParseEvent(body)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	ref, contact, ok := ev.Paid()
	if !ok || ref != "ORD1" || contact != "919000000001" {
		t.Fatalf("unexpected paid result %q %q %v", ref, contact, ok)
	}

	ev.Event = "payment_link.expired"
	if _, _, ok := ev.Paid(); ok {
		t.Fatalf("expected non-paid event ignored")
	}
}
