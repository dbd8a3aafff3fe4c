package telemetrics

// Metric names, one series per name in the dashboard store.
const (
	BytesSent          = "bytes_sent"
	BytesRecv          = "bytes_recv"
	ThroughputSent     = "throughput_sent"
	ThroughputRecv     = "throughput_recv"
	ExternalLatency    = "external_latency"
	ExternalPacketLoss = "external_packet_loss"
	LocalLatency       = "local_latency"
)

// GetMetricNames returns the tracked metric names in display order.
func GetMetricNames() []string {
	return []string{
		BytesSent,
		BytesRecv,
		ThroughputSent,
		ThroughputRecv,
		ExternalLatency,
		ExternalPacketLoss,
		LocalLatency,
	}
}

// IsKnownMetric reports whether name is one of the tracked metrics
func IsKnownMetric(name string) bool {
	for _, n := range GetMetricNames() {
		if n == name {
			return true
		}
	}
	return false
}

// PingStats is a ping summary. Fields are nil when the backend's ping failed.
type PingStats struct {
	AvgLatency *float64 `json:"avg_latency"`
	PacketLoss *float64 `json:"packet_loss,omitempty"`
}

// Aggregates are the backend's own sliding-window figures. The dashboard
// decodes them but derives its own views from the raw series.
type Aggregates struct {
	AvgLatency float64 `json:"avg_latency"`
	AvgLoss    float64 `json:"avg_loss"`
	MaxLatency float64 `json:"max_latency"`
	MaxLoss    float64 `json:"max_loss"`
}

// MetricsSample is the payload of a "metrics" frame.
type MetricsSample struct {
	Timestamp      string      `json:"timestamp"`
	BytesSent      *float64    `json:"bytes_sent"`
	BytesRecv      *float64    `json:"bytes_recv"`
	ThroughputSent *float64    `json:"throughput_sent"`
	ThroughputRecv *float64    `json:"throughput_recv"`
	ExternalPing   *PingStats  `json:"external_ping"`
	LocalPing      *PingStats  `json:"local_ping"`
	Aggregates     *Aggregates `json:"aggregates,omitempty"`
}

// MetricValue is one named reading extracted from a sample.
type MetricValue struct {
	Name  string
	Value float64
}

// Values flattens the sample into named readings in GetMetricNames order.
// Null ping readings are skipped.
func (s MetricsSample) Values() []MetricValue {
	candidates := []struct {
		name  string
		value *float64
	}{
		{BytesSent, s.BytesSent},
		{BytesRecv, s.BytesRecv},
		{ThroughputSent, s.ThroughputSent},
		{ThroughputRecv, s.ThroughputRecv},
		{ExternalLatency, pingField(s.ExternalPing, func(p *PingStats) *float64 { return p.AvgLatency })},
		{ExternalPacketLoss, pingField(s.ExternalPing, func(p *PingStats) *float64 { return p.PacketLoss })},
		{LocalLatency, pingField(s.LocalPing, func(p *PingStats) *float64 { return p.AvgLatency })},
	}

	values := make([]MetricValue, 0, len(candidates))
	for _, c := range candidates {
		if c.value == nil {
			continue
		}
		values = append(values, MetricValue{Name: c.name, Value: *c.value})
	}
	return values
}

func pingField(p *PingStats, get func(*PingStats) *float64) *float64 {
	if p == nil {
		return nil
	}
	return get(p)
}

// AttackDetection is the payload of an "attack_detection" frame.
type AttackDetection struct {
	AttackDetected bool   `json:"attack_detected"`
	Details        string `json:"details,omitempty"`
}

// Float returns a pointer to v, for building samples.
func Float(v float64) *float64 {
	return &v
}
