package telemetrics

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/gjson"
)

// Frame type tags on the feed.
const (
	TypeMetrics         = "metrics"
	TypeAttackDetection = "attack_detection"
)

// ErrMalformedFrame wraps every decode failure.
var ErrMalformedFrame = errors.New("malformed frame")

// Frame is one decoded feed message: MetricsFrame, AttackFrame or UnknownFrame.
type Frame interface {
	FrameType() string
	isFrame()
}

// MetricsFrame carries one sample with its parsed timestamp.
type MetricsFrame struct {
	Timestamp time.Time
	Sample    MetricsSample
}

func (MetricsFrame) FrameType() string { return TypeMetrics }
func (MetricsFrame) isFrame()          {}

// AttackFrame carries the latest attack-detection verdict.
type AttackFrame struct {
	Detection AttackDetection
}

func (AttackFrame) FrameType() string { return TypeAttackDetection }
func (AttackFrame) isFrame()          {}

// UnknownFrame is any frame whose type tag this client does not handle.
type UnknownFrame struct {
	Type string
}

func (f UnknownFrame) FrameType() string { return f.Type }
func (UnknownFrame) isFrame()            {}

// DecodeFrame parses raw into a Frame. Unknown type tags decode to UnknownFrame
// without error; anything structurally invalid returns an error wrapping
// ErrMalformedFrame.
func DecodeFrame(raw []byte) (Frame, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("%w: invalid json", ErrMalformedFrame)
	}

	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: frame is not an object", ErrMalformedFrame)
	}

	tag := root.Get("type")
	if tag.Type != gjson.String {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedFrame)
	}

	data := root.Get("data")

	switch tag.Str {
	case TypeMetrics:
		return decodeMetrics(data)
	case TypeAttackDetection:
		return decodeAttack(data)
	default:
		return UnknownFrame{Type: tag.Str}, nil
	}
}

func decodeMetrics(data gjson.Result) (Frame, error) {
	if !data.IsObject() {
		return nil, fmt.Errorf("%w: metrics data is not an object", ErrMalformedFrame)
	}

	var sample MetricsSample
	if err := json.Unmarshal([]byte(data.Raw), &sample); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}

	if sample.BytesSent == nil || sample.BytesRecv == nil ||
		sample.ThroughputSent == nil || sample.ThroughputRecv == nil {
		return nil, fmt.Errorf("%w: missing counter fields", ErrMalformedFrame)
	}
	if sample.ExternalPing == nil || sample.LocalPing == nil {
		return nil, fmt.Errorf("%w: missing ping fields", ErrMalformedFrame)
	}

	ts, err := ParseTimestamp(sample.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}

	return MetricsFrame{Timestamp: ts, Sample: sample}, nil
}

func decodeAttack(data gjson.Result) (Frame, error) {
	if !data.IsObject() {
		return nil, fmt.Errorf("%w: attack data is not an object", ErrMalformedFrame)
	}

	flag := data.Get("attack_detected")
	if flag.Type != gjson.True && flag.Type != gjson.False {
		return nil, fmt.Errorf("%w: attack_detected is not a bool", ErrMalformedFrame)
	}

	detection := AttackDetection{AttackDetected: flag.Bool()}
	if details := data.Get("details"); details.Type == gjson.String {
		detection.Details = details.Str
	}

	return AttackFrame{Detection: detection}, nil
}

// zoned layouts carry their own offset; the rest are read as local time
var (
	zonedLayouts = []string{time.RFC3339Nano}
	localLayouts = []string{
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05.999999999",
		time.ANSIC,
	}
)

// ParseTimestamp accepts ISO-8601 timestamps with or without an offset and the
// ctime layout ("Mon Jan  2 15:04:05 2006") some backends emit.
func ParseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}

	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// EncodeMetrics renders sample as a "metrics" frame.
func EncodeMetrics(sample MetricsSample) ([]byte, error) {
	return json.Marshal(envelope{Type: TypeMetrics, Data: sample})
}

// EncodeAttack renders detection as an "attack_detection" frame.
func EncodeAttack(detection AttackDetection) ([]byte, error) {
	return json.Marshal(envelope{Type: TypeAttackDetection, Data: detection})
}
