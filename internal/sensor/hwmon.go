package sensor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/sweeney/heater-node/internal/core"
)

// DefaultHwmonRoot is where the kernel lists hwmon devices.
const DefaultHwmonRoot = "/sys/class/hwmon"

// ErrNotDetected is returned when no supported sensor is present.
var ErrNotDetected = errors.New("sensor not detected")

// Hwmon reads a single hwmon device directory. Values in the sysfs files are
// milli-units.
type Hwmon struct {
	dir  string
	unit HumidityUnit
}

// NewHwmon creates a reader for the given hwmon device directory.
func NewHwmon(dir string, unit HumidityUnit) *Hwmon {
	return &Hwmon{dir: dir, unit: unit}
}

// Dir returns the device directory.
func (h *Hwmon) Dir() string {
	return h.dir
}

// Find scans root for the first hwmon device whose name matches one of names.
// An empty root means DefaultHwmonRoot.
func Find(root string, names []string, unit HumidityUnit) (*Hwmon, error) {
	if root == "" {
		root = DefaultHwmonRoot
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %v", ErrNotDetected, root, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, e := range entries {
		dir := filepath.Join(root, e.Name())
		raw, err := os.ReadFile(filepath.Join(dir, "name"))
		if err != nil {
			continue
		}
		name := strings.TrimSpace(string(raw))
		for _, want := range names {
			if name == want {
				return NewHwmon(dir, unit), nil
			}
		}
	}
	return nil, fmt.Errorf("%w: no hwmon device named %v under %s", ErrNotDetected, names, root)
}

// Detect checks that the device answers with a valid reading.
func (h *Hwmon) Detect() error {
	if _, err := h.Read(); err != nil {
		return fmt.Errorf("%w: %v", ErrNotDetected, err)
	}
	return nil
}

// Read returns the current temperature in °C and humidity in percent.
func (h *Hwmon) Read() (core.Reading, error) {
	temp, err := readMilli(filepath.Join(h.dir, "temp1_input"))
	if err != nil {
		return core.Reading{}, fmt.Errorf("read temperature: %w", err)
	}
	hum, err := readMilli(filepath.Join(h.dir, "humidity1_input"))
	if err != nil {
		return core.Reading{}, fmt.Errorf("read humidity: %w", err)
	}
	return core.Reading{Temperature: temp, Humidity: h.unit.toPercent(hum)}, nil
}

func readMilli(path string) (float64, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return float64(v) / 1000, nil
}
