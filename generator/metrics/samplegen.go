package metrics

import (
	"math/rand"
	"sync"
	"time"

	"github.com/yaron8/netmon/telemetrics"
)

// windowSize is how many recent external pings feed the sample aggregates
const windowSize = 15

var attackKinds = []string{"Port Scan", "SYN Flood", "DDoS", "Brute Force"}

// SampleGenerator fabricates feed samples: bytes moved since the previous
// sample, throughput derived from them, and ping figures shaped by the
// simulated delay and loss.
type SampleGenerator struct {
	mu        sync.Mutex
	rnd       *rand.Rand
	delay     time.Duration
	loss      float64
	layout    string
	now       func() time.Time
	lastAt    time.Time
	latencies []float64
	losses    []float64
}

// NewSampleGenerator creates a generator. layout is a time layout for sample
// timestamps; seed makes output reproducible.
func NewSampleGenerator(delay time.Duration, loss float64, layout string, seed int64) *SampleGenerator {
	return &SampleGenerator{
		rnd:    rand.New(rand.NewSource(seed)),
		delay:  delay,
		loss:   loss,
		layout: layout,
		now:    time.Now,
	}
}

// Next returns the next sample.
func (g *SampleGenerator) Next() telemetrics.MetricsSample {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	elapsed := 2.0
	if !g.lastAt.IsZero() {
		if s := now.Sub(g.lastAt).Seconds(); s > 0 {
			elapsed = s
		}
	}
	g.lastAt = now

	sent := 50 + g.rnd.Float64()*800
	recv := 50 + g.rnd.Float64()*1200

	sample := telemetrics.MetricsSample{
		Timestamp:      now.Format(g.layout),
		BytesSent:      telemetrics.Float(sent),
		BytesRecv:      telemetrics.Float(recv),
		ThroughputSent: telemetrics.Float(sent / elapsed),
		ThroughputRecv: telemetrics.Float(recv / elapsed),
		ExternalPing:   g.externalPing(),
		LocalPing:      &telemetrics.PingStats{AvgLatency: telemetrics.Float(0.1 + g.rnd.Float64()*2)},
	}
	if len(g.latencies) > 0 {
		sample.Aggregates = g.aggregates()
	}
	return sample
}

// externalPing returns a ping summary; one ping in fifty fails outright and
// reports no latency with total loss.
func (g *SampleGenerator) externalPing() *telemetrics.PingStats {
	if g.rnd.Intn(50) == 0 {
		return &telemetrics.PingStats{PacketLoss: telemetrics.Float(1)}
	}

	latency := 10 + g.rnd.Float64()*40 + float64(g.delay)/float64(time.Millisecond)
	loss := 0.0
	if g.loss > 0 && g.rnd.Float64() < 0.5 {
		loss = min(g.loss*(0.5+g.rnd.Float64()), 1)
	}

	g.latencies = appendWindow(g.latencies, latency)
	g.losses = appendWindow(g.losses, loss)

	return &telemetrics.PingStats{
		AvgLatency: telemetrics.Float(latency),
		PacketLoss: telemetrics.Float(loss),
	}
}

func (g *SampleGenerator) aggregates() *telemetrics.Aggregates {
	agg := &telemetrics.Aggregates{}
	for i := range g.latencies {
		agg.AvgLatency += g.latencies[i]
		agg.AvgLoss += g.losses[i]
		agg.MaxLatency = max(agg.MaxLatency, g.latencies[i])
		agg.MaxLoss = max(agg.MaxLoss, g.losses[i])
	}
	n := float64(len(g.latencies))
	agg.AvgLatency /= n
	agg.AvgLoss /= n
	return agg
}

// NextAttack returns an attack verdict; roughly one in five is positive.
func (g *SampleGenerator) NextAttack() telemetrics.AttackDetection {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.rnd.Intn(5) != 0 {
		return telemetrics.AttackDetection{}
	}
	return telemetrics.AttackDetection{
		AttackDetected: true,
		Details:        attackKinds[g.rnd.Intn(len(attackKinds))],
	}
}

func appendWindow(window []float64, v float64) []float64 {
	window = append(window, v)
	if len(window) > windowSize {
		window = window[len(window)-windowSize:]
	}
	return window
}
