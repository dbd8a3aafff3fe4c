package analytics

import (
	"slices"
	"time"

	"github.com/yaron8/netmon/metrics"
)

// DefaultInterval is the bucket width used when none is given
const DefaultInterval = 5 * time.Minute

// Bucket is the mean of all points whose timestamp falls in [Start, Start+width).
type Bucket struct {
	Start time.Time `json:"start"`
	Mean  float64   `json:"mean"`
	Count int       `json:"count"`
}

// Aggregate groups points into fixed-width time buckets aligned to the Unix
// epoch and returns each bucket's mean, ordered by bucket start. A
// non-positive width means DefaultInterval. The input is not modified.
func Aggregate(points []metrics.Point, width time.Duration) []Bucket {
	if len(points) == 0 {
		return []Bucket{}
	}
	if width <= 0 {
		width = DefaultInterval
	}
	widthNs := int64(width)

	type acc struct {
		sum   float64
		count int
	}
	groups := make(map[int64]*acc)
	keys := make([]int64, 0)

	for _, p := range points {
		key := BucketKey(p.Timestamp.UnixNano(), widthNs)
		g, ok := groups[key]
		if !ok {
			g = &acc{}
			groups[key] = g
			keys = append(keys, key)
		}
		g.sum += p.Value
		g.count++
	}

	// first-seen order is not ascending when input is out of order
	slices.Sort(keys)

	buckets := make([]Bucket, 0, len(keys))
	for _, key := range keys {
		g := groups[key]
		buckets = append(buckets, Bucket{
			Start: time.Unix(0, key).UTC(),
			Mean:  g.sum / float64(g.count),
			Count: g.count,
		})
	}
	return buckets
}

// BucketKey returns floor(t / width) * width for t and width in the same
// unit, flooring toward negative infinity for instants before the epoch.
func BucketKey(t, width int64) int64 {
	q := t / width
	if t%width != 0 && t < 0 {
		q--
	}
	return q * width
}
