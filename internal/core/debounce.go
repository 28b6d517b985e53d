package core

import "math"

// ReportRecord is the last successfully sent value of a metric.
type ReportRecord struct {
	LastValue float64
	LastTick  Tick
}

// Debouncer decides when a measured metric must be retransmitted.
type Debouncer struct {
	threshold   float64
	minInterval Tick
	record      ReportRecord
	// covered is the last report event a successful send went out for.
	covered uint32
}

// NewDebouncer creates a debouncer that reports changes of at least
// threshold, no more often than once per minInterval.
func NewDebouncer(threshold float64, minInterval Tick) *Debouncer {
	return &Debouncer{threshold: threshold, minInterval: minInterval}
}

// ShouldReport returns true when force is set, or when the value moved by at
// least the threshold and the minimum interval has elapsed.
func (d *Debouncer) ShouldReport(value float64, now Tick, force bool) bool {
	if force {
		return true
	}
	return math.Abs(value-d.record.LastValue) >= d.threshold &&
		now.Sub(d.record.LastTick) >= d.minInterval
}

// Reported records a successful send. Failed sends must not call it so the
// same delta is retried.
func (d *Debouncer) Reported(value float64, now Tick) {
	d.record = ReportRecord{LastValue: value, LastTick: now}
}

// Pending reports whether report event generation has not been covered by a
// successful send yet.
func (d *Debouncer) Pending(generation uint32) bool {
	return d.covered != generation
}

// Cover marks generation as sent.
func (d *Debouncer) Cover(generation uint32) {
	d.covered = generation
}

// Record returns the last reported value and time.
func (d *Debouncer) Record() ReportRecord {
	return d.record
}
