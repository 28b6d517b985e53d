// Package sensor provides temperature/humidity readings for the control core.
// The real implementation reads the Linux hwmon interface exposed by the
// AHT10/AHT20 kernel driver. The fake implementation allows testing without
// hardware.
package sensor

import "fmt"

// HumidityUnit says how the transducer reports relative humidity.
type HumidityUnit string

const (
	// HumidityPercent values are already in percent.
	HumidityPercent HumidityUnit = "percent"
	// HumidityFraction values are in [0,1] and are scaled by 100.
	HumidityFraction HumidityUnit = "fraction"
)

// ParseHumidityUnit validates a configured humidity unit.
func ParseHumidityUnit(s string) (HumidityUnit, error) {
	switch HumidityUnit(s) {
	case HumidityPercent, "":
		return HumidityPercent, nil
	case HumidityFraction:
		return HumidityFraction, nil
	}
	return "", fmt.Errorf("unknown humidity unit %q", s)
}

// toPercent normalizes a humidity value to percent.
func (u HumidityUnit) toPercent(v float64) float64 {
	if u == HumidityFraction {
		return v * 100
	}
	return v
}

// DefaultNames are the hwmon driver names accepted by Find.
var DefaultNames = []string{"aht10", "aht20", "dht20"}
