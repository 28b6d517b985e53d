package mqtt

import (
	"github.com/sweeney/heater-node/internal/core"
)

// FakeTransport records published traffic for test assertions.
type FakeTransport struct {
	// Reports contains all core reports that were accepted.
	Reports []core.Report

	// Messages contains all MySensors messages that were accepted.
	Messages []Message

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// Attempts counts every Send and SendMessage call.
	Attempts int

	// FailNext makes the next N sends fail.
	FailNext int

	// Down makes every send fail while set.
	Down bool

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool

	// Inbox receives Deliver calls from tests.
	Inbox *Inbox

	node int
}

// NewFakeTransport creates a FakeTransport for node with an inbox under the
// default inbound prefix.
func NewFakeTransport(node int) *FakeTransport {
	return &FakeTransport{
		Inbox:     NewInbox(DefaultInPrefix, node, 16, nil),
		Connected: true,
		node:      node,
	}
}

func (f *FakeTransport) accept() bool {
	f.Attempts++
	if f.Down {
		return false
	}
	if f.FailNext > 0 {
		f.FailNext--
		return false
	}
	return true
}

// Send records the report and its encoded message.
func (f *FakeTransport) Send(r core.Report) bool {
	m, err := EncodeReport(f.node, r)
	if err != nil {
		f.Attempts++
		return false
	}
	if !f.accept() {
		return false
	}
	f.Reports = append(f.Reports, r)
	f.Messages = append(f.Messages, m)
	return true
}

// SendMessage records a raw message.
func (f *FakeTransport) SendMessage(m Message) bool {
	if !f.accept() {
		return false
	}
	f.Messages = append(f.Messages, m)
	return true
}

// PublishSystem records the system event.
func (f *FakeTransport) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}

	f.SystemEvents = append(f.SystemEvents, event)

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemPayloads = append(f.SystemPayloads, payload)
	return nil
}

// Deliver injects an inbound message as if it came from the broker.
func (f *FakeTransport) Deliver(topic string, payload string) {
	f.Inbox.Deliver(topic, []byte(payload))
}

// Drain returns injected commands.
func (f *FakeTransport) Drain() []core.Command {
	return f.Inbox.Drain()
}

// Close marks the transport as closed.
func (f *FakeTransport) Close() error {
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake transport is "connected".
func (f *FakeTransport) IsConnected() bool {
	return f.Connected
}

// ReportsOf returns the accepted reports of the given metric.
func (f *FakeTransport) ReportsOf(m core.Metric) []core.Report {
	var out []core.Report
	for _, r := range f.Reports {
		if r.Metric == m {
			out = append(out, r)
		}
	}
	return out
}

// Reset clears recorded traffic.
func (f *FakeTransport) Reset() {
	f.Reports = nil
	f.Messages = nil
	f.SystemEvents = nil
	f.SystemPayloads = nil
	f.Attempts = 0
	f.FailNext = 0
	f.Down = false
	f.Closed = false
	f.PublishSystemError = nil
}
