// Package mqtt carries the node's MySensors traffic over MQTT, with
// abstraction for testing.
package mqtt

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/sweeney/heater-node/internal/core"
)

// Default MySensors MQTT gateway prefixes.
const (
	DefaultOutPrefix = "mysensors-out"
	DefaultInPrefix  = "mysensors-in"
)

// SystemTopic is the MQTT topic for system lifecycle events of node.
func SystemTopic(outPrefix string, node int) string {
	return fmt.Sprintf("%s/%d/system", outPrefix, node)
}

// Transport is the node's link to the controller.
type Transport interface {
	// Send publishes a core report. It returns false when the message was
	// not accepted; it never blocks beyond the publish timeout.
	Send(r core.Report) bool

	// SendMessage publishes a raw MySensors message.
	SendMessage(m Message) bool

	// PublishSystem sends a system lifecycle event.
	PublishSystem(event SystemEvent) error

	// Drain returns the commands queued since the last call, oldest first.
	Drain() []core.Command

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// Observer is notified of transport outcomes. Implemented by metrics.
type Observer interface {
	SendResult(metric string, ok bool)
	CommandDropped(reason string)
}

type nopObserver struct{}

func (nopObserver) SendResult(string, bool) {}
func (nopObserver) CommandDropped(string)   {}

// Inbox decodes inbound messages into commands and queues them until the
// scheduler drains them at a tick boundary. Safe for concurrent use.
type Inbox struct {
	prefix   string
	node     int
	observer Observer

	mu    sync.Mutex
	queue *ringBuffer
}

// NewInbox creates an inbox for set messages addressed to node under prefix.
func NewInbox(prefix string, node, capacity int, observer Observer) *Inbox {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Inbox{
		prefix:   prefix,
		node:     node,
		observer: observer,
		queue:    newRingBuffer(capacity),
	}
}

// Deliver decodes one MQTT message and queues the command. Invalid messages
// are logged and dropped.
func (in *Inbox) Deliver(topic string, payload []byte) {
	m, err := ParseMessage(in.prefix, topic, payload)
	if err != nil {
		log.Printf("mqtt: drop %s: %v", topic, err)
		in.observer.CommandDropped("malformed")
		return
	}
	if m.NodeID != in.node {
		return
	}
	cmd, err := DecodeCommand(m)
	if err != nil {
		log.Printf("mqtt: drop %s %q: %v", topic, payload, err)
		in.observer.CommandDropped("invalid")
		return
	}

	in.mu.Lock()
	dropped := in.queue.push(cmd)
	in.mu.Unlock()
	if dropped {
		in.observer.CommandDropped("overflow")
	}
}

// Drain returns queued commands, oldest first.
func (in *Inbox) Drain() []core.Command {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.queue.drainAll()
}

// Len returns the number of queued commands.
func (in *Inbox) Len() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.queue.len()
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// willPayload is the last-will message the broker publishes if the node
// drops off without a clean shutdown.
func willPayload() []byte {
	data, _ := json.Marshal(SystemPayload{System: SystemPayloadInner{Event: "OFFLINE", Reason: "LWT"}})
	return data
}
