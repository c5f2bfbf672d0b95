package app

import (
	"testing"
	"time"

	"github.com/form3tech-oss/jwt-go"
)

func TestInviteServiceRoundTrip(t *testing.T) {
	svc := NewInviteService("test-secret", "comparity", time.Hour)

	ticket, err := svc.Issue("session-1", "user-1")
	if err != nil {
		t.Fatalf("issue error: %v", err)
	}

	got, err := svc.Verify(ticket)
	if err != nil {
		t.Fatalf("verify error: %v", err)
	}
	if got.SessionID != "session-1" {
		t.Fatalf("SessionID = %s, want session-1", got.SessionID)
	}
	if got.InviterID != "user-1" {
		t.Fatalf("InviterID = %s, want user-1", got.InviterID)
	}
	if !got.ExpiresAt.After(time.Now()) {
		t.Fatalf("ExpiresAt %v should be in the future", got.ExpiresAt)
	}
}

func TestInviteServiceRejectsWrongSecret(t *testing.T) {
	ticket, err := NewInviteService("secret-a", "comparity", time.Hour).Issue("session-1", "user-1")
	if err != nil {
		t.Fatalf("issue error: %v", err)
	}
	if _, err := NewInviteService("secret-b", "comparity", time.Hour).Verify(ticket); err == nil {
		t.Fatal("expected error for ticket signed with another secret")
	}
}

func TestInviteServiceRejectsExpiredTicket(t *testing.T) {
	svc := NewInviteService("test-secret", "comparity", time.Hour)
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	ticket, err := svc.Issue("session-1", "user-1")
	if err != nil {
		t.Fatalf("issue error: %v", err)
	}
	svc.now = time.Now
	if _, err := svc.Verify(ticket); err == nil {
		t.Fatal("expected error for expired ticket")
	}
}

func TestInviteServiceRejectsOtherIssuer(t *testing.T) {
	ticket, err := NewInviteService("test-secret", "someone-else", time.Hour).Issue("session-1", "user-1")
	if err != nil {
		t.Fatalf("issue error: %v", err)
	}
	if _, err := NewInviteService("test-secret", "comparity", time.Hour).Verify(ticket); err == nil {
		t.Fatal("expected error for foreign issuer")
	}
}

func TestInviteServiceRejectsUnsignedTicket(t *testing.T) {
	claims := inviteClaims{
		SessionID: "session-1",
		StandardClaims: jwt.StandardClaims{
			Issuer:    "comparity",
			ExpiresAt: time.Now().Add(time.Hour).Unix(),
		},
	}
	ticket, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign error: %v", err)
	}
	if _, err := NewInviteService("test-secret", "comparity", time.Hour).Verify(ticket); err == nil {
		t.Fatal("expected error for alg=none ticket")
	}
}

func TestInviteServiceRequiresSecret(t *testing.T) {
	svc := NewInviteService("", "comparity", time.Hour)
	if _, err := svc.Issue("session-1", "user-1"); err == nil {
		t.Fatal("expected error without a secret")
	}
}
