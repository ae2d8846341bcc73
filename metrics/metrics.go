// Package metrics records counters and latencies for the payment flow.
package metrics

import "time"

// Recorder receives flow events. Labels carry at least "network", which may
// be empty before an option is known.
type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}

// NoopRecorder discards everything; it is the default when metrics are off.
type NoopRecorder struct{}

func (NoopRecorder) IncCounter(string, map[string]string)                    {}
func (NoopRecorder) ObserveLatency(string, time.Duration, map[string]string) {}
