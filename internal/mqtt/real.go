package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/sweeney/heater-node/internal/core"
)

// Options configures a Client.
type Options struct {
	Broker         string
	ClientID       string // generated when empty
	NodeID         int
	InPrefix       string
	OutPrefix      string
	PublishTimeout time.Duration
	QueueSize      int
	Observer       Observer

	// Presentation is sent on every (re)connect.
	Presentation  []Message
	PresentPause  time.Duration
	OnReconnected func()
}

// ErrNotConnected is returned by PublishSystem while the broker link is down.
var ErrNotConnected = errors.New("mqtt: not connected")

// Client is the paho-backed Transport.
type Client struct {
	client paho.Client
	opts   Options
	inbox  *Inbox

	// connectedOnce is set by the first connect handler run. paho calls the
	// handler from its own goroutines.
	connectedOnce atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
}

// ClientID returns a broker client id for node, unique per process.
func ClientID(node int) string {
	return fmt.Sprintf("heater-node-%d-%s", node, uuid.NewString()[:8])
}

// Dial creates a client and starts connecting to the broker. An unreachable
// broker is not an error: paho keeps retrying. Subscriptions and
// presentation are redone by the connect handler after every reconnect.
func Dial(opts Options) (*Client, error) {
	if opts.ClientID == "" {
		opts.ClientID = ClientID(opts.NodeID)
	}
	if opts.InPrefix == "" {
		opts.InPrefix = DefaultInPrefix
	}
	if opts.OutPrefix == "" {
		opts.OutPrefix = DefaultOutPrefix
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = 500 * time.Millisecond
	}
	if opts.PresentPause <= 0 {
		opts.PresentPause = 50 * time.Millisecond
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		opts:   opts,
		inbox:  NewInbox(opts.InPrefix, opts.NodeID, opts.QueueSize, opts.Observer),
		ctx:    ctx,
		cancel: cancel,
	}

	po := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(SystemTopic(opts.OutPrefix, opts.NodeID), string(willPayload()), 1, true).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		}).
		SetOnConnectHandler(c.handleConnect)

	c.client = paho.NewClient(po)
	token := c.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		// SetConnectRetry keeps trying; sends fail fast until it succeeds.
		log.Printf("mqtt: broker %s not reachable yet, retrying in background", opts.Broker)
		return c, nil
	}
	if err := token.Error(); err != nil {
		cancel()
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return c, nil
}

func (c *Client) handleConnect(pc paho.Client) {
	c.onConnect(pc, !c.connectedOnce.Swap(true))
}

func (c *Client) onConnect(pc paho.Client, first bool) {
	filter := SubscribeTopic(c.opts.InPrefix, c.opts.NodeID)
	token := pc.Subscribe(filter, 1, func(_ paho.Client, m paho.Message) {
		c.inbox.Deliver(m.Topic(), m.Payload())
	})
	if token.WaitTimeout(5*time.Second) && token.Error() != nil {
		log.Printf("mqtt: subscribe %s: %v", filter, token.Error())
	}
	log.Printf("mqtt: connected, subscribed to %s", filter)

	if !first && c.opts.OnReconnected != nil {
		c.opts.OnReconnected()
	}
	if len(c.opts.Presentation) > 0 {
		go func() {
			if err := Present(c.ctx, c, c.opts.Presentation, c.opts.PresentPause); err != nil {
				log.Printf("mqtt: presentation aborted: %v", err)
				return
			}
			log.Printf("mqtt: presented %d steps", len(c.opts.Presentation))
		}()
	}
}

// Send publishes a core report. Returns false without blocking when the
// connection is down.
func (c *Client) Send(r core.Report) bool {
	m, err := EncodeReport(c.opts.NodeID, r)
	if err != nil {
		log.Printf("mqtt: %v", err)
		return false
	}
	ok := c.SendMessage(m)
	c.opts.Observer.SendResult(r.Metric.String(), ok)
	return ok
}

// SendMessage publishes a raw MySensors message with QoS 1.
func (c *Client) SendMessage(m Message) bool {
	if !c.client.IsConnectionOpen() {
		return false
	}
	token := c.client.Publish(m.Topic(c.opts.OutPrefix), 1, false, m.Payload)
	if !token.WaitTimeout(c.opts.PublishTimeout) {
		log.Printf("mqtt: publish %s: timeout", m.Topic(c.opts.OutPrefix))
		return false
	}
	if err := token.Error(); err != nil {
		log.Printf("mqtt: publish %s: %v", m.Topic(c.opts.OutPrefix), err)
		return false
	}
	return true
}

// PublishSystem sends a system lifecycle event to the MQTT broker. It
// returns ErrNotConnected without queueing while the link is down, so the
// caller's loop never waits on a reconnect.
func (c *Client) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	if !c.client.IsConnectionOpen() {
		return ErrNotConnected
	}

	// QoS 1 (at-least-once) - lifecycle events should survive a flaky link
	token := c.client.Publish(SystemTopic(c.opts.OutPrefix, c.opts.NodeID), 1, event.Retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish system timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish system: %w", err)
	}
	return nil
}

// Drain returns the commands received since the last call.
func (c *Client) Drain() []core.Command {
	return c.inbox.Drain()
}

// IsConnected reports whether the broker connection is up.
func (c *Client) IsConnected() bool {
	return c.client.IsConnectionOpen()
}

// Close stops presentation and disconnects from the broker.
func (c *Client) Close() error {
	c.cancel()
	c.client.Disconnect(1000) // 1 second timeout
	return nil
}
