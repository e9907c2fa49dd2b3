package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"lokapos/agent/internal/domain"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(testSecret, time.Hour, "owner-1", "kasir-rahasia")
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestNewManagerValidation(t *testing.T) {
	if _, err := NewManager("short", time.Hour, "owner-1", "pw"); err == nil {
		t.Fatalf("short secret accepted")
	}
	if _, err := NewManager(testSecret, time.Hour, "  ", "pw"); err == nil {
		t.Fatalf("blank owner id accepted")
	}
}

func TestLoginIssuesParsableToken(t *testing.T) {
	m := newTestManager(t)

	resp, err := m.Login(domain.LoginRequest{Device: "kasir-depan", Password: "kasir-rahasia"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if resp.OwnerID != "owner-1" {
		t.Fatalf("owner id = %s, want owner-1", resp.OwnerID)
	}
	if resp.AccessToken == "" || resp.ExpiresAt == "" {
		t.Fatalf("incomplete login response: %+v", resp)
	}

	actor, err := m.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if actor.Device != "kasir-depan" || actor.OwnerID != "owner-1" {
		t.Fatalf("actor = %+v", actor)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	m := newTestManager(t)

	if _, err := m.Login(domain.LoginRequest{Device: "kasir-depan", Password: "wrong"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := m.Login(domain.LoginRequest{Device: "", Password: "kasir-rahasia"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("blank device err = %v, want ErrInvalidCredentials", err)
	}
	if m.CurrentOwnerID() != "" {
		t.Fatalf("owner id available after failed login")
	}
}

func TestCurrentOwnerIDFollowsSession(t *testing.T) {
	m := newTestManager(t)

	if m.CurrentOwnerID() != "" {
		t.Fatalf("owner id available before login")
	}

	if _, err := m.Login(domain.LoginRequest{Device: "kasir-depan", Password: "kasir-rahasia"}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if m.CurrentOwnerID() != "owner-1" {
		t.Fatalf("owner id = %s after login, want owner-1", m.CurrentOwnerID())
	}

	m.Logout()
	if m.CurrentOwnerID() != "" {
		t.Fatalf("owner id still available after logout")
	}
}

func TestParseTokenRejectsTampering(t *testing.T) {
	m := newTestManager(t)
	resp, err := m.Login(domain.LoginRequest{Device: "kasir-depan", Password: "kasir-rahasia"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if _, err := m.ParseToken("not-a-token"); err == nil {
		t.Fatalf("garbage token accepted")
	}

	parts := strings.Split(resp.AccessToken, ".")
	tampered := strings.Join([]string{parts[0], parts[1], "AAAA"}, ".")
	if _, err := m.ParseToken(tampered); err == nil {
		t.Fatalf("tampered signature accepted")
	}

	other, err := NewManager("ffffffffffffffffffffffffffffffff", time.Hour, "owner-1", "kasir-rahasia")
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if _, err := other.ParseToken(resp.AccessToken); err == nil {
		t.Fatalf("token signed with another secret accepted")
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	m := newTestManager(t)

	token, err := m.sign("kasir-depan", time.Now().UTC().Add(-time.Minute))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.ParseToken(token); err == nil {
		t.Fatalf("expired token accepted")
	}
}
