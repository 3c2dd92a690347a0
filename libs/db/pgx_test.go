package db

import (
	"context"
	"testing"
	"time"
)

func TestOptionsDefaults(t *testing.T) {
	got := Options{MinConns: 20, MaxConns: 4}.withDefaults()
	if got.MaxConns != 4 || got.MinConns != 4 {
		t.Fatalf("expected min clamped to max, got %+v", got)
	}
	got = Options{}.withDefaults()
	if got.MaxConns != 10 || got.MinConns != 1 || got.MaxConnLifetime != 30*time.Minute || got.MaxConnIdleTime != 5*time.Minute {
		t.Fatalf("unexpected defaults: %+v", got)
	}
}

func TestReadyCheckWithoutPool(t *testing.T) {
	if err := ReadyCheck(nil)(context.Background()); err == nil {
		t.Fatal("expected error for missing pool")
	}
}
