package mqtt

import (
	"errors"
	"testing"

	"github.com/sweeney/heater-node/internal/core"
)

func TestMessageTopic(t *testing.T) {
	m := Message{NodeID: 12, ChildID: 0, Command: CmdSet, Type: VHVACSetpointHeat}
	if got := m.Topic("mysensors-out"); got != "mysensors-out/12/0/1/0/45" {
		t.Errorf("Topic: got %q", got)
	}
	m.Ack = true
	if got := m.Topic("p"); got != "p/12/0/1/1/45" {
		t.Errorf("Topic with ack: got %q", got)
	}
}

func TestParseMessage(t *testing.T) {
	m, err := ParseMessage("mysensors-in", "mysensors-in/12/2/1/0/2", []byte("1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := Message{NodeID: 12, ChildID: 2, Command: CmdSet, Type: VStatus, Payload: "1"}
	if m != want {
		t.Errorf("got %+v, want %+v", m, want)
	}
}

func TestParseMessageMalformed(t *testing.T) {
	for _, topic := range []string{
		"other/12/2/1/0/2",
		"mysensors-in/12/2/1/0",
		"mysensors-in/12/2/1/0/2/9",
		"mysensors-in/12/x/1/0/2",
		"mysensors-in/12/-1/1/0/2",
		"mysensors-in",
	} {
		if _, err := ParseMessage("mysensors-in", topic, nil); !errors.Is(err, ErrMalformedTopic) {
			t.Errorf("%q: expected ErrMalformedTopic, got %v", topic, err)
		}
	}
}

func TestSubscribeTopic(t *testing.T) {
	if got := SubscribeTopic("mysensors-in", 7); got != "mysensors-in/7/+/1/+/+" {
		t.Errorf("SubscribeTopic: got %q", got)
	}
}

func TestDecodeCommand(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want core.Command
	}{
		{"switch on", Message{ChildID: ChildSwitch, Command: CmdSet, Type: VStatus, Payload: "1"},
			core.Command{Surface: core.SurfaceOnOff, Kind: core.CommandStatus, On: true}},
		{"switch off", Message{ChildID: ChildSwitch, Command: CmdSet, Type: VStatus, Payload: "0"},
			core.Command{Surface: core.SurfaceOnOff, Kind: core.CommandStatus, On: false}},
		{"heat on", Message{ChildID: ChildHeater, Command: CmdSet, Type: VHVACFlowState, Payload: "HeatOn"},
			core.Command{Surface: core.SurfaceThermostat, Kind: core.CommandFlowState, On: true}},
		{"auto change over", Message{ChildID: ChildHeater, Command: CmdSet, Type: VHVACFlowState, Payload: "AutoChangeOver"},
			core.Command{Surface: core.SurfaceThermostat, Kind: core.CommandFlowState, On: true}},
		{"cool on disengages", Message{ChildID: ChildHeater, Command: CmdSet, Type: VHVACFlowState, Payload: "CoolOn"},
			core.Command{Surface: core.SurfaceThermostat, Kind: core.CommandFlowState, On: false}},
		{"off", Message{ChildID: ChildHeater, Command: CmdSet, Type: VHVACFlowState, Payload: "Off"},
			core.Command{Surface: core.SurfaceThermostat, Kind: core.CommandFlowState, On: false}},
		{"setpoint", Message{ChildID: ChildHeater, Command: CmdSet, Type: VHVACSetpointHeat, Payload: "21.5"},
			core.Command{Surface: core.SurfaceThermostat, Kind: core.CommandSetpoint, Value: 21.5}},
		{"out of range setpoint passes through", Message{ChildID: ChildHeater, Command: CmdSet, Type: VHVACSetpointHeat, Payload: "50"},
			core.Command{Surface: core.SurfaceThermostat, Kind: core.CommandSetpoint, Value: 50}},
		{"offset", Message{ChildID: ChildHeater, Command: CmdSet, Type: VVar1, Payload: " -1.5 "},
			core.Command{Surface: core.SurfaceThermostat, Kind: core.CommandOffset, Value: -1.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeCommand(tt.msg)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDecodeCommandErrors(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want error
	}{
		{"not a set", Message{ChildID: ChildHeater, Command: CmdReq, Type: VTemp}, ErrUnknownType},
		{"unknown type", Message{ChildID: ChildHeater, Command: CmdSet, Type: VTemp, Payload: "20"}, ErrUnknownType},
		{"status on heater child", Message{ChildID: ChildHeater, Command: CmdSet, Type: VStatus, Payload: "1"}, ErrUnknownType},
		{"bad status", Message{ChildID: ChildSwitch, Command: CmdSet, Type: VStatus, Payload: "maybe"}, ErrBadPayload},
		{"bad setpoint", Message{ChildID: ChildHeater, Command: CmdSet, Type: VHVACSetpointHeat, Payload: "warm"}, ErrBadPayload},
		{"NaN setpoint", Message{ChildID: ChildHeater, Command: CmdSet, Type: VHVACSetpointHeat, Payload: "NaN"}, ErrBadPayload},
		{"bad offset", Message{ChildID: ChildHeater, Command: CmdSet, Type: VVar1, Payload: ""}, ErrBadPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeCommand(tt.msg); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestEncodeReport(t *testing.T) {
	tests := []struct {
		report core.Report
		child  int
		typ    int
		want   string
	}{
		{core.Report{Metric: core.MetricStatus, On: true}, ChildSwitch, VStatus, "1"},
		{core.Report{Metric: core.MetricStatus}, ChildSwitch, VStatus, "0"},
		{core.Report{Metric: core.MetricFlowState, On: true}, ChildHeater, VHVACFlowState, "HeatOn"},
		{core.Report{Metric: core.MetricFlowState}, ChildHeater, VHVACFlowState, "Off"},
		{core.Report{Metric: core.MetricSetpoint, Value: 19}, ChildHeater, VHVACSetpointHeat, "19.0"},
		{core.Report{Metric: core.MetricTemperature, Value: 21.26}, ChildHeater, VTemp, "21.3"},
		{core.Report{Metric: core.MetricHumidity, Value: 48.04}, ChildHumidity, VHum, "48.0"},
	}

	for _, tt := range tests {
		t.Run(tt.report.Metric.String(), func(t *testing.T) {
			m, err := EncodeReport(5, tt.report)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if m.NodeID != 5 || m.Command != CmdSet {
				t.Errorf("header: got %+v", m)
			}
			if m.ChildID != tt.child || m.Type != tt.typ || m.Payload != tt.want {
				t.Errorf("got child=%d type=%d payload=%q, want child=%d type=%d payload=%q",
					m.ChildID, m.Type, m.Payload, tt.child, tt.typ, tt.want)
			}
		})
	}

	if _, err := EncodeReport(5, core.Report{Metric: core.Metric(42)}); !errors.Is(err, ErrUnknownType) {
		t.Errorf("expected ErrUnknownType, got %v", err)
	}
}

func TestPresentationSteps(t *testing.T) {
	dual := Presentation(3, core.DualSurface, "Electric Heater", "0.3.0")
	if len(dual) != 5 {
		t.Fatalf("dual: expected 5 steps, got %d", len(dual))
	}
	if dual[0].Type != ISketchName || dual[0].Payload != "Electric Heater" || dual[0].Command != CmdInternal {
		t.Errorf("step 0: got %+v", dual[0])
	}
	if dual[1].Type != ISketchVersion || dual[1].Payload != "0.3.0" {
		t.Errorf("step 1: got %+v", dual[1])
	}
	if dual[2].ChildID != ChildHeater || dual[2].Type != SHVAC || dual[2].Command != CmdPresentation {
		t.Errorf("step 2: got %+v", dual[2])
	}
	if dual[4].ChildID != ChildSwitch || dual[4].Type != SBinary {
		t.Errorf("step 4: got %+v", dual[4])
	}

	single := Presentation(3, core.ThermostatOnly, "Electric Heater", "0.3.0")
	if len(single) != 4 {
		t.Fatalf("thermostat only: expected 4 steps, got %d", len(single))
	}
	for _, m := range single {
		if m.ChildID == ChildSwitch {
			t.Error("thermostat-only node must not present the switch")
		}
	}
}
