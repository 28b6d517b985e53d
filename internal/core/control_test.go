package core

import (
	"errors"
	"testing"
)

// runUntil ticks until cond holds, failing after limit ticks.
func (h *harness) runUntil(t *testing.T, limit int, what string, cond func(Status) bool) {
	t.Helper()
	for i := 0; i < limit; i++ {
		if cond(h.core.Status()) {
			return
		}
		h.tick()
	}
	if !cond(h.core.Status()) {
		t.Fatalf("%s: not reached after %d ticks", what, limit)
	}
}

func heating(s Status) bool    { return s.Heating }
func notHeating(s Status) bool { return !s.Heating }

// assertHeatingBurst checks that a heating burst lasts at least the dwell
// time even when the room warms past the target right away.
func assertHeatingBurst(t *testing.T, h *harness) {
	t.Helper()
	h.sensor.reading = Reading{Temperature: 18.5, Humidity: 40}
	if err := h.core.Apply(Command{Surface: SurfaceThermostat, Kind: CommandFlowState, On: true}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	h.runUntil(t, 20, "heating start", heating)
	heatStart := h.now - 100

	h.sensor.reading.Temperature = 25
	reads := h.sensor.reads
	for h.now.Sub(heatStart) < 60_000 {
		h.tick()
		if !h.core.Status().Heating {
			t.Fatalf("heater switched off after %dms, want >= 60000ms", (h.now - 100).Sub(heatStart))
		}
	}
	if h.sensor.reads != reads {
		t.Errorf("sensor read during dwell: %d extra reads", h.sensor.reads-reads)
	}

	h.runUntil(t, 10, "heating stop", notHeating)
	if h.sensor.reads != reads+1 {
		t.Errorf("expected exactly one re-read before switching off, got %d", h.sensor.reads-reads)
	}
	if h.actuator.last() != DriveOff {
		t.Errorf("actuator: got %s, want OFF", h.actuator.last())
	}
}

func TestThermostatMinimumBurst(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	assertHeatingBurst(t, h)
}

func TestThermostatMinimumBurstAcrossWrap(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.now = Tick(^uint32(0) - 20_000)
	assertHeatingBurst(t, h)
}

func TestThermostatIdleStates(t *testing.T) {
	tests := []struct {
		name     string
		temp     float64
		engaged  bool
		wantHeat bool
	}{
		{"cold and engaged", 18.0, true, true},
		{"at target", 19.0, true, true},
		{"warm and engaged", 19.5, true, false},
		{"cold and disengaged", 10.0, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, DefaultConfig())
			h.sensor.reading.Temperature = tt.temp
			h.core.Apply(Command{Surface: SurfaceThermostat, Kind: CommandFlowState, On: tt.engaged})

			var everHeated bool
			for i := 0; i < 50; i++ {
				h.tick()
				everHeated = everHeated || h.core.Status().Heating
			}
			if everHeated != tt.wantHeat {
				t.Errorf("heated: got %v, want %v", everHeated, tt.wantHeat)
			}
		})
	}
}

func TestOnOffDrivesDirectly(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.sensor.reading.Temperature = 30 // irrelevant in on/off mode

	h.core.Apply(Command{Surface: SurfaceOnOff, Kind: CommandStatus, On: true})
	h.runUntil(t, 10, "on/off heating", heating)
	if h.core.Status().ControlState != ControlRead {
		t.Errorf("ControlState: got %s, want read (no dwell)", h.core.Status().ControlState)
	}

	h.core.Apply(Command{Surface: SurfaceOnOff, Kind: CommandStatus, On: false})
	h.runUntil(t, 10, "on/off stop", notHeating)
}

func TestModeNoneKeepsHeaterOff(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.sensor.reading.Temperature = 5

	for i := 0; i < 100; i++ {
		h.tick()
		if h.core.Status().Heating {
			t.Fatalf("tick %d: heater on with no active surface", i)
		}
	}
	for _, d := range h.actuator.drives {
		if d != DriveOff {
			t.Fatalf("unexpected drive %s", d)
		}
	}
}

func TestSurfaceSwitchTakesOver(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.sensor.reading.Temperature = 25

	h.core.Apply(Command{Surface: SurfaceOnOff, Kind: CommandStatus, On: true})
	h.runUntil(t, 10, "on/off heating", heating)

	// Thermostat wins; the room is above target so the heater stops.
	h.core.Apply(Command{Surface: SurfaceThermostat, Kind: CommandFlowState, On: true})
	h.runUntil(t, 10, "thermostat off", notHeating)
	if h.core.Status().Arbitration.Mode != ModeThermostat {
		t.Errorf("Mode: got %s, want thermostat", h.core.Status().Arbitration.Mode)
	}
}

func TestSensorFailure(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.sensor.reading.Temperature = 10
	h.core.Apply(Command{Surface: SurfaceOnOff, Kind: CommandStatus, On: true})
	h.runUntil(t, 10, "heating", heating)
	h.telemetry.reset()

	h.sensor.err = errors.New("i2c: no ack")
	var readTimes []Tick
	raised := false
	for h.now < 40_000 {
		before := h.sensor.reads
		at := h.now
		h.tick()
		if h.sensor.reads != before {
			readTimes = append(readTimes, at)
		}
		if h.core.Status().Fault {
			raised = true
		} else if raised {
			t.Fatalf("fault indicator dropped at %d during repeated failures", at)
		}
		if raised && h.core.Status().Heating {
			t.Fatalf("heater on at %d during sensor fault", at)
		}
	}

	if !raised || !h.fault.on {
		t.Fatal("expected fault indicator raised")
	}
	if h.actuator.last() != DriveOff {
		t.Errorf("actuator: got %s, want OFF", h.actuator.last())
	}
	if len(readTimes) < 3 {
		t.Fatalf("expected repeated read attempts, got %d", len(readTimes))
	}
	for i := 1; i < len(readTimes); i++ {
		if gap := readTimes[i].Sub(readTimes[i-1]); gap < 10_000 {
			t.Errorf("read %d retried after %dms, want >= 10000ms", i, gap)
		}
	}
	if n := len(h.telemetry.sentOf(MetricTemperature, MetricHumidity)); n != 0 {
		t.Errorf("expected no measurement reports during fault, got %d", n)
	}

	// Recovery clears the indicator on the next good read.
	h.sensor.err = nil
	h.runUntil(t, 200, "recovery", func(s Status) bool { return !s.Fault })
	if h.core.Status().ControlState != ControlReportTemperature {
		t.Errorf("ControlState: got %s, want report_temperature", h.core.Status().ControlState)
	}
}

func TestMeasuredReportsAreDebounced(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.settle(t)
	h.telemetry.reset()
	last := h.core.Status().Temperature.LastTick

	h.sensor.reading.Temperature = 21
	for h.now.Sub(last) < 29_000 {
		h.tick()
	}
	if n := len(h.telemetry.sentOf(MetricTemperature)); n != 0 {
		t.Fatalf("temperature reported %d times before the interval", n)
	}

	for h.now.Sub(last) < 61_000 {
		h.tick()
	}
	sent := h.telemetry.sentOf(MetricTemperature)
	if len(sent) != 1 {
		t.Fatalf("expected one temperature report, got %d", len(sent))
	}
	if sent[0].Value != 21 {
		t.Errorf("temperature: got %v, want 21", sent[0].Value)
	}
	if n := len(h.telemetry.sentOf(MetricHumidity)); n != 0 {
		t.Errorf("unchanged humidity reported %d times", n)
	}
}

func TestReportNeededForcesMeasuredReports(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.settle(t)
	h.ticks(10)
	h.telemetry.reset()

	h.core.Apply(Command{Surface: SurfaceThermostat, Kind: CommandSetpoint, Value: 20})
	h.ticks(6)

	if n := len(h.telemetry.sentOf(MetricTemperature)); n == 0 {
		t.Error("expected forced temperature report")
	}
	if n := len(h.telemetry.sentOf(MetricHumidity)); n == 0 {
		t.Error("expected forced humidity report")
	}
}

func TestCommandDuringDwellForcesMeasuredReports(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.sensor.reading = Reading{Temperature: 18.5, Humidity: 40}
	h.core.Apply(Command{Surface: SurfaceThermostat, Kind: CommandFlowState, On: true})
	h.runUntil(t, 30, "dwell", func(s Status) bool { return s.ControlState == ControlThermostat1 })
	h.settle(t)
	h.telemetry.reset()

	h.core.Apply(Command{Surface: SurfaceThermostat, Kind: CommandSetpoint, Value: 21})
	h.ticks(20)
	if h.core.Status().ReportNeeded {
		t.Fatal("status cycle should have completed within the dwell")
	}
	if h.core.Status().ControlState != ControlThermostat1 {
		t.Fatalf("ControlState: got %s, want thermostat_1", h.core.Status().ControlState)
	}

	h.runUntil(t, 700, "forced measured reports", func(Status) bool {
		return len(h.telemetry.sentOf(MetricTemperature)) > 0 && len(h.telemetry.sentOf(MetricHumidity)) > 0
	})
	if n := len(h.telemetry.sentOf(MetricTemperature)); n != 1 {
		t.Errorf("temperature reports: got %d, want 1", n)
	}
}

func TestCommandForcesMeasuredReportsAtAnyPhase(t *testing.T) {
	for phase := 0; phase < 8; phase++ {
		h := newHarness(t, DefaultConfig())
		h.settle(t)
		h.ticks(phase)
		h.telemetry.reset()

		h.core.Apply(Command{Surface: SurfaceThermostat, Kind: CommandFlowState, On: false})
		h.ticks(30)

		temps := len(h.telemetry.sentOf(MetricTemperature))
		hums := len(h.telemetry.sentOf(MetricHumidity))
		if temps != 1 || hums != 1 {
			t.Errorf("phase %d: temperature=%d humidity=%d, want 1 each", phase, temps, hums)
		}
	}
}

func TestFailedMeasuredSendDoesNotBlock(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.telemetry.fail[MetricTemperature] = 1000
	h.sensor.reading.Temperature = 10
	h.core.Apply(Command{Surface: SurfaceOnOff, Kind: CommandStatus, On: true})

	h.runUntil(t, 10, "heating despite failed sends", heating)
	if rec := h.core.Status().Temperature; rec.LastValue != 0 || rec.LastTick != 0 {
		t.Errorf("record must stay untouched after failed sends: %+v", rec)
	}
}

func TestTemperatureOffsetApplied(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.sensor.reading.Temperature = 20
	if err := h.core.Apply(Command{Surface: SurfaceThermostat, Kind: CommandOffset, Value: -2}); err != nil {
		t.Fatalf("Apply offset: %v", err)
	}
	h.core.Apply(Command{Surface: SurfaceThermostat, Kind: CommandFlowState, On: true})

	h.runUntil(t, 10, "heating with offset", heating)
	if got := h.core.Status().Reading.Temperature; got != 18 {
		t.Errorf("Reading.Temperature: got %v, want 18", got)
	}
	temps := h.telemetry.sentOf(MetricTemperature)
	if len(temps) == 0 || temps[0].Value != 18 {
		t.Errorf("reported temperature should include offset: %+v", temps)
	}
}

func TestActivityIndicator(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	h.tick() // read
	if !h.activity.on {
		t.Error("activity should be on while reading and reporting")
	}
	h.ticks(3) // report temperature, report humidity, control
	if h.activity.on {
		t.Error("activity should be off once control starts")
	}
}
