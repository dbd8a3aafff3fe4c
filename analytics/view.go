package analytics

import (
	"time"

	"github.com/yaron8/netmon/metrics"
)

// View is every derived figure for one metric at one refresh.
type View struct {
	Metric         string         `json:"metric"`
	Latest         *metrics.Point `json:"latest,omitempty"`
	Samples        int            `json:"samples"`
	Buckets        []Bucket       `json:"buckets"`
	Distribution   Distribution   `json:"distribution"`
	Exceeded       bool           `json:"exceeded"`
	BucketExceeded bool           `json:"bucket_exceeded"`
}

// Deriver bundles the three transforms with their configuration.
type Deriver struct {
	Interval   time.Duration
	Classifier *Classifier
	Monitor    *Monitor
}

// NewDeriver fills nil collaborators with defaults.
func NewDeriver(interval time.Duration, classifier *Classifier, monitor *Monitor) *Deriver {
	if classifier == nil {
		classifier = NewClassifier(nil)
	}
	if monitor == nil {
		monitor = NewMonitor(nil)
	}
	return &Deriver{Interval: interval, Classifier: classifier, Monitor: monitor}
}

// Derive computes the view of points. It does not modify points.
func (d *Deriver) Derive(name string, points []metrics.Point) View {
	buckets := Aggregate(points, d.Interval)

	view := View{
		Metric:         name,
		Samples:        len(points),
		Buckets:        buckets,
		Distribution:   d.Classifier.Classify(name, points),
		Exceeded:       d.Monitor.ExceededLatest(name, points),
		BucketExceeded: d.Monitor.ExceededBucketed(name, buckets),
	}
	if len(points) > 0 {
		latest := points[len(points)-1]
		view.Latest = &latest
	}
	return view
}
