package session

import (
	"testing"
	"time"
)

func TestManager_OpenTouchHas(t *testing.T) {
	m := New(2 * time.Second)
	now := time.Now()
	if m.Has("1.2.3.4", 19132) {
		t.Fatalf("expected no session initially")
	}
	if m.Touch("1.2.3.4", 19132, now) {
		t.Fatalf("touch must not create a session")
	}
	if !m.Open("1.2.3.4", 19132, now) {
		t.Fatalf("first open should report a new session")
	}
	if m.Open("1.2.3.4", 19132, now) {
		t.Fatalf("second open should only refresh")
	}
	if !m.Has("1.2.3.4", 19132) || m.Has("1.2.3.4", 19133) {
		t.Fatalf("session must be keyed by address and port")
	}
	if !m.Touch("1.2.3.4", 19132, now) {
		t.Fatalf("touch on open session should succeed")
	}
}

func TestManager_TickExpires(t *testing.T) {
	m := New(500 * time.Millisecond)
	ts := time.Now()
	m.Open("a", 1, ts)
	m.Open("b", 1, ts)
	m.Touch("b", 1, ts.Add(400*time.Millisecond))

	m.Tick(ts.Add(400 * time.Millisecond))
	if m.Count() != 2 {
		t.Fatalf("nothing should expire before timeout, got %d", m.Count())
	}
	m.Tick(ts.Add(600 * time.Millisecond))
	if m.Has("a", 1) {
		t.Fatalf("idle session should expire")
	}
	if !m.Has("b", 1) {
		t.Fatalf("touched session should survive")
	}
}

func TestManager_Close(t *testing.T) {
	m := New(time.Minute)
	now := time.Now()
	m.Open("a", 1, now)
	m.Close("a", 1)
	m.Close("never", 2)
	if m.Count() != 0 {
		t.Fatalf("expected 0 sessions, got %d", m.Count())
	}
}

func TestKey_IPv6(t *testing.T) {
	if got := Key("::1", 19132); got != "[::1]:19132" {
		t.Fatalf("unexpected key %q", got)
	}
}
