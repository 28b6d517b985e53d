// Package status provides a thread-safe status tracker for the heater-node daemon.
// It is read by the HTTP handlers and the heartbeat publisher.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/heater-node/internal/core"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	NodeID         int
	Capabilities   string
	SetpointPolicy string
	TickMs         int64
	HeartbeatMs    int64
	Broker         string
	HTTPAddr       string
}

// CommandCounts tallies inbound commands by outcome.
type CommandCounts struct {
	Applied  int
	Rejected int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and stays valid after the lock is released.
type Snapshot struct {
	Core          core.Status
	Updated       bool // false until the first Update
	Commands      CommandCounts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update stores the core state. Called from runLoop on every tick.
func (t *Tracker) Update(st core.Status) {
	t.mu.Lock()
	t.snap.Core = st
	t.snap.Updated = true
	t.mu.Unlock()
}

// RecordCommand counts one inbound command; err is the result of applying it.
func (t *Tracker) RecordCommand(err error) {
	t.mu.Lock()
	if err != nil {
		t.snap.Commands.Rejected++
	} else {
		t.snap.Commands.Applied++
	}
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
