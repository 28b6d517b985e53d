package core

import (
	"io"
	"log"
	"testing"
)

type fakeSensor struct {
	reading Reading
	err     error
	reads   int
}

func (f *fakeSensor) Read() (Reading, error) {
	f.reads++
	if f.err != nil {
		return Reading{}, f.err
	}
	return f.reading, nil
}

type fakeActuator struct {
	drives []Drive
}

func (f *fakeActuator) Drive(d Drive) {
	f.drives = append(f.drives, d)
}

func (f *fakeActuator) last() Drive {
	if len(f.drives) == 0 {
		return DriveOff
	}
	return f.drives[len(f.drives)-1]
}

type fakeTelemetry struct {
	sent     []Report
	attempts []Report
	// fail holds the number of upcoming failures per metric.
	fail map[Metric]int
	down bool
}

func (f *fakeTelemetry) Send(r Report) bool {
	f.attempts = append(f.attempts, r)
	if f.down {
		return false
	}
	if f.fail[r.Metric] > 0 {
		f.fail[r.Metric]--
		return false
	}
	f.sent = append(f.sent, r)
	return true
}

func (f *fakeTelemetry) sentOf(metrics ...Metric) []Report {
	var out []Report
	for _, r := range f.sent {
		for _, m := range metrics {
			if r.Metric == m {
				out = append(out, r)
			}
		}
	}
	return out
}

func (f *fakeTelemetry) reset() {
	f.sent = nil
	f.attempts = nil
}

type fakeIndicator struct {
	on   bool
	sets int
}

func (f *fakeIndicator) Set(on bool) {
	f.on = on
	f.sets++
}

type harness struct {
	core      *Core
	sensor    *fakeSensor
	actuator  *fakeActuator
	telemetry *fakeTelemetry
	fault     *fakeIndicator
	activity  *fakeIndicator
	now       Tick
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{
		sensor:    &fakeSensor{reading: Reading{Temperature: 20, Humidity: 45}},
		actuator:  &fakeActuator{},
		telemetry: &fakeTelemetry{fail: map[Metric]int{}},
		fault:     &fakeIndicator{},
		activity:  &fakeIndicator{},
	}
	c, err := New(cfg, Ports{
		Sensor:    h.sensor,
		Actuator:  h.actuator,
		Telemetry: h.telemetry,
		Fault:     h.fault,
		Activity:  h.activity,
	}, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.core = c
	return h
}

// tick steps the core at the current time and advances the clock by 100ms.
func (h *harness) tick() {
	h.core.Tick(h.now)
	h.now += 100
}

func (h *harness) ticks(n int) {
	for i := 0; i < n; i++ {
		h.tick()
	}
}

// settle runs ticks until the startup report cycle has completed.
func (h *harness) settle(t *testing.T) {
	t.Helper()
	for i := 0; i < 20 && h.core.Status().ReportNeeded; i++ {
		h.tick()
	}
	if h.core.Status().ReportNeeded {
		t.Fatal("startup report cycle did not complete")
	}
}
