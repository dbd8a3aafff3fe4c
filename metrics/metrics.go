package metrics

import "time"

// DefaultCapacity is the sliding-window length kept per metric
const DefaultCapacity = 100

// Point is one timestamped reading of a metric.
type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}
