package server

import (
	"strings"
	"testing"
	"time"

	"github.com/beamlink/beamlink/internal/protocol"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(":memory:")
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	return store
}

func TestStoreCreateResolve(t *testing.T) {
	store := newTestStore(t)

	code, err := store.CreateSession("addr-sender", time.Minute)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if len(code) != protocol.CodeLength {
		t.Errorf("Expected code of length %d, got %q", protocol.CodeLength, code)
	}
	for _, r := range code {
		if !strings.ContainsRune(protocol.CodeAlphabet, r) {
			t.Errorf("Code %q contains %q outside the alphabet", code, r)
		}
	}

	addr, err := store.ResolveSession(code)
	if err != nil {
		t.Fatalf("ResolveSession failed: %v", err)
	}
	if addr != "addr-sender" {
		t.Errorf("Expected 'addr-sender', got %q", addr)
	}
}

func TestStoreResolveCaseInsensitive(t *testing.T) {
	store := newTestStore(t)

	code, err := store.CreateSession("addr-sender", time.Minute)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	addr, err := store.ResolveSession("  " + strings.ToLower(code) + " ")
	if err != nil {
		t.Fatalf("ResolveSession failed for lowercased code: %v", err)
	}
	if addr != "addr-sender" {
		t.Errorf("Expected 'addr-sender', got %q", addr)
	}
}

func TestStoreResolveUnknownCode(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.ResolveSession("ZZZZZZ"); err != ErrSessionNotFound {
		t.Fatalf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestStoreExpiredCode(t *testing.T) {
	store := newTestStore(t)

	code, err := store.CreateSession("addr-sender", -time.Second)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	if _, err := store.ResolveSession(code); err != ErrSessionNotFound {
		t.Fatalf("Expected ErrSessionNotFound for expired code, got %v", err)
	}
}

func TestStorePurgeExpired(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.CreateSession("addr-a", -time.Second); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if _, err := store.CreateSession("addr-b", -time.Second); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	live, err := store.CreateSession("addr-c", time.Minute)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	purged, err := store.PurgeExpired()
	if err != nil {
		t.Fatalf("PurgeExpired failed: %v", err)
	}
	if purged != 2 {
		t.Errorf("Expected 2 purged sessions, got %d", purged)
	}

	if _, err := store.ResolveSession(live); err != nil {
		t.Errorf("Live session purged: %v", err)
	}
}

func TestStoreCodesDiffer(t *testing.T) {
	store := newTestStore(t)

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		code, err := store.CreateSession("addr", time.Minute)
		if err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}
		if seen[code] {
			t.Fatalf("Duplicate code %q issued", code)
		}
		seen[code] = true
	}
}
