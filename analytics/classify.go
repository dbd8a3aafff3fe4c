package analytics

import (
	"fmt"
	"strconv"

	"github.com/yaron8/netmon/metrics"
	"github.com/yaron8/netmon/telemetrics"
)

// CutPoints split a metric's value range into Low, Medium and High bands.
type CutPoints struct {
	Low  float64 `json:"low" yaml:"low"`
	High float64 `json:"high" yaml:"high"`
}

// FallbackCutPoints apply to metrics with no configured cut points
var FallbackCutPoints = CutPoints{Low: 100, High: 500}

// DefaultCutPoints returns the built-in cut points for the tracked metrics.
func DefaultCutPoints() map[string]CutPoints {
	return map[string]CutPoints{
		telemetrics.BytesSent:       {Low: 100, High: 500},
		telemetrics.BytesRecv:       {Low: 100, High: 500},
		telemetrics.ThroughputSent:  {Low: 100, High: 500},
		telemetrics.ThroughputRecv:  {Low: 100, High: 500},
		telemetrics.ExternalLatency: {Low: 50, High: 100},
		telemetrics.LocalLatency:    {Low: 50, High: 100},
	}
}

const (
	LabelNoLoss = "No Loss"
	LabelLoss   = "Loss"
)

// Distribution is the percentage share of samples per labelled band.
// Shares and Labels are index-aligned; non-empty shares sum to 100.
type Distribution struct {
	Shares []float64 `json:"shares"`
	Labels []string  `json:"labels"`
}

// Classifier bins metric values into labelled bands.
type Classifier struct {
	cuts map[string]CutPoints
}

// NewClassifier creates a classifier; a nil map means DefaultCutPoints.
func NewClassifier(cuts map[string]CutPoints) *Classifier {
	if cuts == nil {
		cuts = DefaultCutPoints()
	}
	return &Classifier{cuts: cuts}
}

// CutPointsFor returns the cut points applied to name
func (c *Classifier) CutPointsFor(name string) CutPoints {
	if cp, ok := c.cuts[name]; ok {
		return cp
	}
	return FallbackCutPoints
}

// Classify partitions the values of points. Packet loss is split into zero
// and non-zero; every other metric into three bands by its cut points.
func (c *Classifier) Classify(name string, points []metrics.Point) Distribution {
	if len(points) == 0 {
		return Distribution{Shares: []float64{}, Labels: []string{}}
	}

	if name == telemetrics.ExternalPacketLoss {
		counts := [2]int{}
		for _, p := range points {
			if p.Value > 0 {
				counts[1]++
			} else {
				counts[0]++
			}
		}
		return Distribution{
			Shares: shares(counts[:], len(points)),
			Labels: []string{LabelNoLoss, LabelLoss},
		}
	}

	cp := c.CutPointsFor(name)
	counts := [3]int{}
	for _, p := range points {
		switch {
		case p.Value < cp.Low:
			counts[0]++
		case p.Value < cp.High:
			counts[1]++
		default:
			counts[2]++
		}
	}

	low, high := formatCut(cp.Low), formatCut(cp.High)
	return Distribution{
		Shares: shares(counts[:], len(points)),
		Labels: []string{
			fmt.Sprintf("Low (<%s)", low),
			fmt.Sprintf("Medium (%s-%s)", low, high),
			fmt.Sprintf("High (>%s)", high),
		},
	}
}

var defaultClassifier = NewClassifier(nil)

// Classify uses the default cut points.
func Classify(name string, points []metrics.Point) Distribution {
	return defaultClassifier.Classify(name, points)
}

func shares(counts []int, total int) []float64 {
	out := make([]float64, len(counts))
	for i, n := range counts {
		out[i] = float64(n) / float64(total) * 100
	}
	return out
}

func formatCut(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
