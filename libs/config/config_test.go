package config

import (
	"testing"
	"time"
)

func TestIntFallsBackOnInvalid(t *testing.T) {
	t.Setenv("TEST_INT", "abc")
	if got := Int("TEST_INT", 7); got != 7 {
		t.Fatalf("expected fallback 7, got %d", got)
	}
	t.Setenv("TEST_INT", "-3")
	if got := Int("TEST_INT", 7); got != 7 {
		t.Fatalf("expected fallback for negative, got %d", got)
	}
	t.Setenv("TEST_INT", "42")
	if got := Int("TEST_INT", 7); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
}

func TestBool(t *testing.T) {
	t.Setenv("TEST_BOOL", "yes")
	if !Bool("TEST_BOOL", false) {
		t.Fatal("expected true for yes")
	}
	t.Setenv("TEST_BOOL", "off")
	if Bool("TEST_BOOL", true) {
		t.Fatal("expected false for off")
	}
	t.Setenv("TEST_BOOL", "maybe")
	if !Bool("TEST_BOOL", true) {
		t.Fatal("expected fallback for unknown value")
	}
}

func TestListAndSeconds(t *testing.T) {
	t.Setenv("TEST_LIST", " a, ,b ,c")
	got := List("TEST_LIST", "")
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("unexpected list: %#v", got)
	}
	t.Setenv("TEST_SECONDS", "90")
	if d := Seconds("TEST_SECONDS", time.Second); d != 90*time.Second {
		t.Fatalf("expected 90s, got %s", d)
	}
}

func TestLocation(t *testing.T) {
	t.Setenv("TEST_TZ", "")
	loc, err := Location("TEST_TZ")
	if err != nil || loc != time.UTC {
		t.Fatalf("expected UTC default, got %v (%v)", loc, err)
	}
	t.Setenv("TEST_TZ", "Not/AZone")
	if _, err := Location("TEST_TZ"); err == nil {
		t.Fatal("expected error for invalid zone")
	}
}

func TestPort(t *testing.T) {
	t.Setenv("TEST_PORT", "70000")
	if _, err := Port("TEST_PORT", "8080"); err == nil {
		t.Fatal("expected error for out of range port")
	}
}
