// Command heater-node runs the electric heater controller: it reads the room
// sensor, drives the heater triac and talks MySensors over MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/heater-node/internal/config"
	"github.com/sweeney/heater-node/internal/core"
	"github.com/sweeney/heater-node/internal/gpio"
	"github.com/sweeney/heater-node/internal/metrics"
	"github.com/sweeney/heater-node/internal/mqtt"
	"github.com/sweeney/heater-node/internal/sensor"
	"github.com/sweeney/heater-node/internal/status"
	"github.com/sweeney/heater-node/internal/web"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file")
	broker := flag.String("broker", "", "MQTT broker address (overrides config)")
	node := flag.Int("node", 0, "MySensors node id (overrides config)")
	httpAddr := flag.String("http", "", `HTTP status address (overrides config, "off" disables)`)
	tick := flag.Duration("tick", 0, "Scheduler tick (overrides config)")
	heartbeat := flag.Duration("heartbeat", 0, "Heartbeat interval (overrides config)")
	printReading := flag.Bool("print-reading", false, "Print one sensor reading and exit")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "broker":
			cfg.MQTT.Broker = *broker
		case "node":
			cfg.MQTT.NodeID = *node
		case "http":
			cfg.HTTP.Addr = *httpAddr
			if *httpAddr == "off" {
				cfg.HTTP.Addr = ""
			}
		case "tick":
			cfg.Tick = *tick
		case "heartbeat":
			cfg.Heartbeat = *heartbeat
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("fatal: invalid flags: %v", err)
	}

	if err := run(cfg, *printReading); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg *config.Config, printReading bool) error {
	logOut := cfg.Log.LogWriter()
	log.SetOutput(logOut)

	coreCfg, err := cfg.CoreConfig()
	if err != nil {
		return err
	}
	unit, err := sensor.ParseHumidityUnit(cfg.Sensor.HumidityUnit)
	if err != nil {
		return err
	}

	// Print reading mode
	if printReading {
		rd, err := openSensor(cfg.Sensor, unit)
		if err != nil {
			return err
		}
		r, err := rd.Read()
		if err != nil {
			return fmt.Errorf("read sensor: %w", err)
		}
		fmt.Printf("Temperature: %.1f °C, Humidity: %.1f %%\n", r.Temperature, r.Humidity)
		return nil
	}

	// Initialize GPIO; the yellow LED stays on until the loop starts
	board, err := gpio.NewBoard(cfg.GPIO.Chip, cfg.Pins())
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer board.Close()

	var rd core.Sensor
	haltReason := ""
	hw, err := openSensor(cfg.Sensor, unit)
	if err != nil {
		log.Printf("sensor: %v", err)
		rd = missingSensor{err: err}
		haltReason = "sensor not detected"
	} else {
		log.Printf("sensor: using %s", hw.Dir())
		rd = hw
	}

	m := metrics.New()

	reconnected := make(chan struct{}, 1)
	client, err := mqtt.Dial(mqtt.Options{
		Broker:         cfg.MQTT.Broker,
		ClientID:       cfg.MQTT.ClientID,
		NodeID:         cfg.MQTT.NodeID,
		InPrefix:       cfg.MQTT.InPrefix,
		OutPrefix:      cfg.MQTT.OutPrefix,
		PublishTimeout: cfg.MQTT.PublishTimeout,
		QueueSize:      cfg.MQTT.QueueSize,
		Observer:       m,
		Presentation:   mqtt.Presentation(cfg.MQTT.NodeID, coreCfg.Capabilities, cfg.MQTT.SketchName, cfg.MQTT.SketchVersion),
		OnReconnected: func() {
			select {
			case reconnected <- struct{}{}:
			default:
			}
		},
	})
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer client.Close()

	c, err := core.New(coreCfg, core.Ports{
		Sensor:    rd,
		Actuator:  board,
		Telemetry: client,
		Fault:     board.LED(gpio.LEDRed),
		Activity:  board.LED(gpio.LEDGreen),
	}, nil)
	if err != nil {
		return fmt.Errorf("init core: %w", err)
	}
	if haltReason != "" {
		c.Halt(haltReason)
	}

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		NodeID:         cfg.MQTT.NodeID,
		Capabilities:   coreCfg.Capabilities.String(),
		SetpointPolicy: coreCfg.SetpointPolicy.String(),
		TickMs:         cfg.Tick.Milliseconds(),
		HeartbeatMs:    cfg.Heartbeat.Milliseconds(),
		Broker:         cfg.MQTT.Broker,
		HTTPAddr:       cfg.HTTP.Addr,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}
	tracker.Update(c.Status())
	tracker.SetMQTTConnected(client.IsConnected())

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", haltReason),
	}
	if err := client.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	// Start HTTP status server
	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, m.Handler(), logOut)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTP.Addr)
	}

	log.Printf("started: node=%d caps=%s broker=%s tick=%v heartbeat=%v",
		cfg.MQTT.NodeID, coreCfg.Capabilities, cfg.MQTT.Broker, cfg.Tick, cfg.Heartbeat)
	board.LED(gpio.LEDYellow).Set(false)

	ticker := time.NewTicker(cfg.Tick)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(loopDeps{
		core:      c,
		transport: client,
		conn:      client,
		tracker:   tracker,
		metrics:   m,
		heartbeat: cfg.Heartbeat,
		now:       time.Now,
	}, ticker.C, sigCh, reconnected)
}

// openSensor returns the configured hwmon device after checking it answers.
func openSensor(cfg config.SensorConfig, unit sensor.HumidityUnit) (*sensor.Hwmon, error) {
	var hw *sensor.Hwmon
	if cfg.Path != "" {
		hw = sensor.NewHwmon(cfg.Path, unit)
	} else {
		var err error
		if hw, err = sensor.Find(cfg.HwmonRoot, cfg.Names, unit); err != nil {
			return nil, err
		}
	}
	if err := hw.Detect(); err != nil {
		return nil, err
	}
	return hw, nil
}

// missingSensor stands in for a sensor that failed detection; the core is
// halted before it is ever read.
type missingSensor struct{ err error }

func (s missingSensor) Read() (core.Reading, error) { return core.Reading{}, s.err }

// loopDeps are the collaborators of runLoop.
type loopDeps struct {
	core      *core.Core
	transport mqtt.Transport
	conn      mqtt.ConnectionStatus // optional
	tracker   *status.Tracker       // optional
	metrics   *metrics.Metrics      // optional
	heartbeat time.Duration         // 0 disables
	now       func() time.Time
}

// tickAt converts wall time since start into core ticks. The uint32
// conversion wraps after about 49.7 days; the core compares ticks wrap-safely.
func tickAt(start, t time.Time) core.Tick {
	return core.Tick(uint32(t.Sub(start).Milliseconds()))
}

func runLoop(d loopDeps, tick <-chan time.Time, sig <-chan os.Signal, reconnected <-chan struct{}) error {
	startTime := d.now()
	lastHeartbeat := startTime

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}

			st := d.core.Status()
			var exitErr error
			if st.Halted {
				exitErr = fmt.Errorf("halted: %s", st.HaltReason)
			} else {
				// Heater off before anything else.
				d.core.Halt("shutdown: " + signalName)
			}

			event := mqtt.SystemEvent{
				Timestamp: d.now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if d.tracker != nil {
				d.refresh()
				snap := d.tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
			}
			if err := d.transport.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return exitErr

		case <-reconnected:
			event := mqtt.SystemEvent{Timestamp: d.now(), Event: "RECONNECTED"}
			if err := d.transport.PublishSystem(event); err != nil {
				log.Printf("failed to publish reconnected event: %v", err)
			}

		case <-tick:
			t := d.now()

			// Commands only touch the core between ticks.
			for _, cmd := range d.transport.Drain() {
				err := d.core.Apply(cmd)
				if err != nil {
					log.Printf("command %s %s rejected: %v", cmd.Surface, cmd.Kind, err)
				}
				if d.tracker != nil {
					d.tracker.RecordCommand(err)
				}
				if d.metrics != nil {
					d.metrics.CommandApplied(err)
				}
			}

			d.core.Tick(tickAt(startTime, t))
			d.refresh()

			// Check for heartbeat
			if d.heartbeat > 0 && t.Sub(lastHeartbeat) >= d.heartbeat {
				lastHeartbeat = t
				st := d.core.Status()
				log.Printf("heartbeat: mode=%s heating=%v fault=%v temp=%.1f",
					st.Arbitration.Mode, st.Heating, st.Fault, st.Reading.Temperature)

				hbEvent := mqtt.SystemEvent{
					Timestamp: t,
					Event:     "HEARTBEAT",
				}
				if d.tracker != nil {
					// Refresh network info for heartbeat
					if net := readNetworkInfo(); net != nil {
						d.tracker.SetNetwork(net)
					}
					hbEvent.RawPayload = status.FormatStatusEvent(d.tracker.Snapshot(), "HEARTBEAT", "")
				}
				if err := d.transport.PublishSystem(hbEvent); err != nil {
					log.Printf("heartbeat publish error: %v", err)
				}
			}
		}
	}
}

// refresh pushes the core state to the status tracker and metrics.
func (d loopDeps) refresh() {
	st := d.core.Status()
	if d.tracker != nil {
		d.tracker.Update(st)
		if d.conn != nil {
			d.tracker.SetMQTTConnected(d.conn.IsConnected())
		}
	}
	if d.metrics != nil {
		d.metrics.Observe(st)
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
