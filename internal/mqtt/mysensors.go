package mqtt

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/sweeney/heater-node/internal/core"
)

// MySensors serial protocol commands.
const (
	CmdPresentation = 0
	CmdSet          = 1
	CmdReq          = 2
	CmdInternal     = 3
)

// Child sensor ids of this node.
const (
	ChildHeater   = 0
	ChildHumidity = 1
	ChildSwitch   = 2
	// ChildNode addresses the node itself for internal messages.
	ChildNode = 255
)

// Presentation (sensor) types.
const (
	SBinary = 3
	SHum    = 7
	SHVAC   = 29
)

// Variable types.
const (
	VTemp             = 0
	VHum              = 1
	VStatus           = 2
	VHVACFlowState    = 21
	VVar1             = 24
	VHVACSetpointHeat = 45
)

// Internal message types.
const (
	ISketchName    = 11
	ISketchVersion = 12
)

var (
	// ErrMalformedTopic is returned for topics that are not
	// <prefix>/<node>/<child>/<command>/<ack>/<type>.
	ErrMalformedTopic = errors.New("malformed topic")
	// ErrUnknownType is returned for messages this node does not handle.
	ErrUnknownType = errors.New("unknown message type")
	// ErrBadPayload is returned for payloads that do not parse.
	ErrBadPayload = errors.New("bad payload")
)

// Message is one MySensors message carried over MQTT.
type Message struct {
	NodeID  int
	ChildID int
	Command int
	Ack     bool
	Type    int
	Payload string
}

// Topic renders the MQTT topic for m under prefix.
func (m Message) Topic(prefix string) string {
	ack := 0
	if m.Ack {
		ack = 1
	}
	return fmt.Sprintf("%s/%d/%d/%d/%d/%d", prefix, m.NodeID, m.ChildID, m.Command, ack, m.Type)
}

// ParseMessage decodes a topic under prefix and its payload.
func ParseMessage(prefix, topic string, payload []byte) (Message, error) {
	rest, ok := strings.CutPrefix(topic, prefix+"/")
	if !ok {
		return Message{}, fmt.Errorf("%w: %q does not start with %q", ErrMalformedTopic, topic, prefix)
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 5 {
		return Message{}, fmt.Errorf("%w: %q", ErrMalformedTopic, topic)
	}
	var nums [5]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Message{}, fmt.Errorf("%w: %q: field %d not a number", ErrMalformedTopic, topic, i)
		}
		nums[i] = n
	}
	return Message{
		NodeID:  nums[0],
		ChildID: nums[1],
		Command: nums[2],
		Ack:     nums[3] == 1,
		Type:    nums[4],
		Payload: string(payload),
	}, nil
}

// SubscribeTopic is the filter for set messages addressed to node.
func SubscribeTopic(prefix string, node int) string {
	return fmt.Sprintf("%s/%d/+/%d/+/+", prefix, node, CmdSet)
}

// DecodeCommand maps an inbound set message to a core command.
func DecodeCommand(m Message) (core.Command, error) {
	if m.Command != CmdSet {
		return core.Command{}, fmt.Errorf("%w: command %d", ErrUnknownType, m.Command)
	}
	switch {
	case m.ChildID == ChildSwitch && m.Type == VStatus:
		on, err := parseBool(m.Payload)
		if err != nil {
			return core.Command{}, err
		}
		return core.Command{Surface: core.SurfaceOnOff, Kind: core.CommandStatus, On: on}, nil

	case m.ChildID == ChildHeater && m.Type == VHVACFlowState:
		return core.Command{
			Surface: core.SurfaceThermostat,
			Kind:    core.CommandFlowState,
			On:      core.FlowEngaged(strings.TrimSpace(m.Payload)),
		}, nil

	case m.ChildID == ChildHeater && m.Type == VHVACSetpointHeat:
		v, err := parseFloat(m.Payload)
		if err != nil {
			return core.Command{}, err
		}
		return core.Command{Surface: core.SurfaceThermostat, Kind: core.CommandSetpoint, Value: v}, nil

	case m.ChildID == ChildHeater && m.Type == VVar1:
		v, err := parseFloat(m.Payload)
		if err != nil {
			return core.Command{}, err
		}
		return core.Command{Surface: core.SurfaceThermostat, Kind: core.CommandOffset, Value: v}, nil
	}
	return core.Command{}, fmt.Errorf("%w: child %d type %d", ErrUnknownType, m.ChildID, m.Type)
}

// EncodeReport maps an outbound report to a set message from node.
func EncodeReport(node int, r core.Report) (Message, error) {
	m := Message{NodeID: node, Command: CmdSet}
	switch r.Metric {
	case core.MetricStatus:
		m.ChildID, m.Type, m.Payload = ChildSwitch, VStatus, formatBool(r.On)
	case core.MetricFlowState:
		m.ChildID, m.Type, m.Payload = ChildHeater, VHVACFlowState, core.FlowState(r.On)
	case core.MetricSetpoint:
		m.ChildID, m.Type, m.Payload = ChildHeater, VHVACSetpointHeat, formatFloat(r.Value)
	case core.MetricTemperature:
		m.ChildID, m.Type, m.Payload = ChildHeater, VTemp, formatFloat(r.Value)
	case core.MetricHumidity:
		m.ChildID, m.Type, m.Payload = ChildHumidity, VHum, formatFloat(r.Value)
	default:
		return Message{}, fmt.Errorf("%w: metric %d", ErrUnknownType, r.Metric)
	}
	return m, nil
}

// Presentation returns the presentation steps of node in send order: sketch
// name, sketch version, then one message per child sensor.
func Presentation(node int, caps core.Capabilities, sketch, version string) []Message {
	steps := []Message{
		{NodeID: node, ChildID: ChildNode, Command: CmdInternal, Type: ISketchName, Payload: sketch},
		{NodeID: node, ChildID: ChildNode, Command: CmdInternal, Type: ISketchVersion, Payload: version},
		{NodeID: node, ChildID: ChildHeater, Command: CmdPresentation, Type: SHVAC, Payload: "Heater"},
		{NodeID: node, ChildID: ChildHumidity, Command: CmdPresentation, Type: SHum, Payload: "Humidity"},
	}
	if caps == core.DualSurface {
		steps = append(steps, Message{NodeID: node, ChildID: ChildSwitch, Command: CmdPresentation, Type: SBinary, Payload: "Heater switch"})
	}
	return steps
}

func parseBool(s string) (bool, error) {
	switch strings.TrimSpace(s) {
	case "1", "on", "ON", "true":
		return true, nil
	case "0", "off", "OFF", "false":
		return false, nil
	}
	return false, fmt.Errorf("%w: %q is not a status", ErrBadPayload, s)
}

func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) {
		return 0, fmt.Errorf("%w: %q is not a number", ErrBadPayload, s)
	}
	return v, nil
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// formatFloat renders values with one decimal, as controllers expect.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
