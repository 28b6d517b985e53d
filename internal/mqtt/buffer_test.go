package mqtt

import (
	"testing"

	"github.com/sweeney/heater-node/internal/core"
)

func setpoint(v float64) core.Command {
	return core.Command{Surface: core.SurfaceThermostat, Kind: core.CommandSetpoint, Value: v}
}

func TestRingBufferEmptyDrain(t *testing.T) {
	rb := newRingBuffer(10)
	got := rb.drainAll()
	if got != nil {
		t.Errorf("expected nil from empty drain, got %d items", len(got))
	}
}

func TestRingBufferPushAndDrain(t *testing.T) {
	rb := newRingBuffer(10)
	for i := 0; i < 5; i++ {
		if rb.push(setpoint(float64(i))) {
			t.Fatalf("push %d: unexpected drop", i)
		}
	}
	if rb.len() != 5 {
		t.Errorf("len: got %d, want 5", rb.len())
	}

	got := rb.drainAll()
	if len(got) != 5 {
		t.Fatalf("expected 5 items, got %d", len(got))
	}
	for i := 0; i < 5; i++ {
		if got[i].Value != float64(i) {
			t.Errorf("item %d: expected value %d, got %v", i, i, got[i].Value)
		}
	}

	// Second drain should be empty
	if got2 := rb.drainAll(); got2 != nil {
		t.Errorf("expected nil from second drain, got %d items", len(got2))
	}
}

func TestRingBufferOverflow(t *testing.T) {
	capacity := 5
	rb := newRingBuffer(capacity)

	// Push capacity+3 items (0..7), buffer should keep the most recent 5 (3..7)
	drops := 0
	for i := 0; i < capacity+3; i++ {
		if rb.push(setpoint(float64(i))) {
			drops++
		}
	}
	if drops != 3 {
		t.Errorf("drops: got %d, want 3", drops)
	}

	got := rb.drainAll()
	if len(got) != capacity {
		t.Fatalf("expected %d items, got %d", capacity, len(got))
	}
	for i := 0; i < capacity; i++ {
		want := float64(i + 3) // oldest 3 were dropped
		if got[i].Value != want {
			t.Errorf("item %d: expected value %v, got %v", i, want, got[i].Value)
		}
	}
	if rb.overflow {
		t.Error("overflow should reset after drain")
	}
}

func TestRingBufferMultipleCycles(t *testing.T) {
	rb := newRingBuffer(5)

	for cycle := 0; cycle < 3; cycle++ {
		for i := 0; i < 3; i++ {
			rb.push(setpoint(float64(cycle*10 + i)))
		}
		got := rb.drainAll()
		if len(got) != 3 {
			t.Fatalf("cycle %d: expected 3 items, got %d", cycle, len(got))
		}
		if got[0].Value != float64(cycle*10) {
			t.Errorf("cycle %d: first item %v, want %d", cycle, got[0].Value, cycle*10)
		}
	}
}

func TestRingBufferMinimumCapacity(t *testing.T) {
	rb := newRingBuffer(0)
	rb.push(setpoint(1))
	rb.push(setpoint(2))

	got := rb.drainAll()
	if len(got) != 1 || got[0].Value != 2 {
		t.Errorf("expected only the newest command, got %+v", got)
	}
}
