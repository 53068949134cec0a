package monitor

import (
	"testing"
	"time"
)

func TestDebounceFirstOccurrenceAllowed(t *testing.T) {
	d := NewDebounce()
	now := time.Now()

	if !d.Allow("sess_a", KindTabSwitch, now, 2*time.Second) {
		t.Error("first occurrence should be allowed")
	}
}

func TestDebounceWithinCooldownDenied(t *testing.T) {
	d := NewDebounce()
	now := time.Now()

	d.Allow("sess_a", KindFaceMissing, now, 2*time.Second)

	// One second later is inside the 2s window
	if d.Allow("sess_a", KindFaceMissing, now.Add(time.Second), 2*time.Second) {
		t.Error("occurrence within cooldown should be denied")
	}

	// Exactly at the cooldown boundary is still denied (must exceed)
	if d.Allow("sess_a", KindFaceMissing, now.Add(2*time.Second), 2*time.Second) {
		t.Error("occurrence exactly at cooldown should be denied")
	}

	// Past the boundary is allowed
	if !d.Allow("sess_a", KindFaceMissing, now.Add(2*time.Second+time.Millisecond), 2*time.Second) {
		t.Error("occurrence past cooldown should be allowed")
	}
}

func TestDebounceDeniedKeepsEntry(t *testing.T) {
	d := NewDebounce()
	now := time.Now()

	d.Allow("sess_a", KindTabSwitch, now, 2*time.Second)

	// Repeated denied attempts must not push the window forward: an
	// attempt 3s after the original record is allowed even though a
	// denied attempt happened 1s before it.
	d.Allow("sess_a", KindTabSwitch, now.Add(2*time.Second), 2*time.Second)
	if !d.Allow("sess_a", KindTabSwitch, now.Add(3*time.Second), 2*time.Second) {
		t.Error("denied attempt should not have refreshed the cooldown")
	}
}

func TestDebounceKindsIndependent(t *testing.T) {
	d := NewDebounce()
	now := time.Now()

	d.Allow("sess_a", KindFaceMissing, now, 2*time.Second)

	if !d.Allow("sess_a", KindProlongedSilence, now, 5*time.Second) {
		t.Error("different kinds must not share a debounce entry")
	}
}

func TestDebounceSessionsIndependent(t *testing.T) {
	d := NewDebounce()
	now := time.Now()

	d.Allow("sess_a", KindTabSwitch, now, 2*time.Second)

	if !d.Allow("sess_b", KindTabSwitch, now, 2*time.Second) {
		t.Error("different sessions must not share a debounce entry")
	}
}

func TestDebounceForget(t *testing.T) {
	d := NewDebounce()
	now := time.Now()

	d.Allow("sess_a", KindTabSwitch, now, time.Minute)
	d.Allow("sess_a", KindFaceMissing, now, time.Minute)
	d.Allow("sess_b", KindTabSwitch, now, time.Minute)

	d.Forget("sess_a")

	// sess_a entries dropped — immediately allowed again
	if !d.Allow("sess_a", KindTabSwitch, now, time.Minute) {
		t.Error("forgotten session should allow immediately")
	}
	// sess_b untouched
	if d.Allow("sess_b", KindTabSwitch, now, time.Minute) {
		t.Error("other session's entries should survive Forget")
	}
}
