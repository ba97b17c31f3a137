package web

import (
	"testing"
	"time"
)

func TestLimiterStoreEvictsIdleClients(t *testing.T) {
	t0 := time.Date(2026, 1, 19, 9, 0, 0, 0, time.UTC)
	now := t0
	store := newLimiterStore(1, 1)
	store.now = func() time.Time { return now }

	if !store.get("10.0.0.1").Allow() {
		t.Fatalf("first request from 10.0.0.1 should pass")
	}
	if store.get("10.0.0.1").Allow() {
		t.Fatalf("second request from 10.0.0.1 should be throttled")
	}

	now = t0.Add(5 * time.Minute)
	store.get("10.0.0.2")

	now = t0.Add(11 * time.Minute)
	store.get("10.0.0.3")
	if n := store.size(); n != 2 {
		t.Fatalf("store holds %d clients, want 2 after sweeping the idle one", n)
	}

	if !store.get("10.0.0.1").Allow() {
		t.Fatalf("evicted client should start with a fresh bucket")
	}
}

func TestLimiterStoreSweepsAtMostOncePerTTL(t *testing.T) {
	t0 := time.Date(2026, 1, 19, 9, 0, 0, 0, time.UTC)
	now := t0
	store := newLimiterStore(60, 10)
	store.now = func() time.Time { return now }

	store.get("10.0.0.1")
	now = t0.Add(9 * time.Minute)
	store.get("10.0.0.2")
	now = t0.Add(10*time.Minute + time.Second)
	store.get("10.0.0.2")
	if n := store.size(); n != 1 {
		t.Fatalf("store holds %d clients, want 1", n)
	}
	if !store.lastSweep.Equal(now) {
		t.Fatalf("last sweep = %v, want %v", store.lastSweep, now)
	}
}
