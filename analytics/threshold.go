package analytics

import (
	"errors"
	"fmt"
	"io"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/yaron8/netmon/metrics"
	"github.com/yaron8/netmon/telemetrics"
)

// Limits are the average and maximum bounds configured for one metric.
type Limits struct {
	Avg float64 `json:"avg" yaml:"avg"`
	Max float64 `json:"max" yaml:"max"`
}

func (l Limits) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Avg, validation.Min(0.0)),
		validation.Field(&l.Max, validation.Min(0.0)),
	)
}

// ThresholdSpec maps metric name to its limits.
type ThresholdSpec map[string]Limits

// Validate checks every metric entry
func (s ThresholdSpec) Validate() error {
	errs := validation.Errors{}
	for name, limits := range s {
		if err := limits.Validate(); err != nil {
			errs[name] = err
		}
	}
	return errs.Filter()
}

// DefaultThresholds are the capture-trigger bounds of the monitoring backend:
// external latency avg 75ms / max 100ms, packet loss avg 5% / max 10%
// expressed as fractions to match the feed.
func DefaultThresholds() ThresholdSpec {
	return ThresholdSpec{
		telemetrics.ExternalLatency:    {Avg: 75, Max: 100},
		telemetrics.ExternalPacketLoss: {Avg: 0.05, Max: 0.10},
	}
}

// LoadThresholds decodes a YAML document of the form
//
//	external_latency:
//	  avg: 75
//	  max: 100
func LoadThresholds(r io.Reader) (ThresholdSpec, error) {
	spec := ThresholdSpec{}
	if err := yaml.NewDecoder(r).Decode(&spec); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode thresholds: %w", err)
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid thresholds: %w", err)
	}
	return spec, nil
}

// Monitor evaluates values against a ThresholdSpec.
type Monitor struct {
	spec ThresholdSpec
}

// NewMonitor creates a Monitor; a nil spec means DefaultThresholds.
func NewMonitor(spec ThresholdSpec) *Monitor {
	if spec == nil {
		spec = DefaultThresholds()
	}
	return &Monitor{spec: spec}
}

// Limits returns the limits configured for name
func (m *Monitor) Limits(name string) (Limits, bool) {
	l, ok := m.spec[name]
	return l, ok
}

// Exceeded reports whether v is strictly above either limit of name.
// Unconfigured metrics never exceed.
func (m *Monitor) Exceeded(name string, v float64) bool {
	l, ok := m.spec[name]
	if !ok {
		return false
	}
	return v > l.Avg || v > l.Max
}

// ExceededLatest evaluates the most recent raw point.
func (m *Monitor) ExceededLatest(name string, points []metrics.Point) bool {
	if len(points) == 0 {
		return false
	}
	return m.Exceeded(name, points[len(points)-1].Value)
}

// ExceededBucketed evaluates the mean of the most recent bucket.
func (m *Monitor) ExceededBucketed(name string, buckets []Bucket) bool {
	if len(buckets) == 0 {
		return false
	}
	return m.Exceeded(name, buckets[len(buckets)-1].Mean)
}
