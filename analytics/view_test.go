package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaron8/netmon/metrics"
	"github.com/yaron8/netmon/telemetrics"
)

func TestDeriver_Derive(t *testing.T) {
	d := NewDeriver(5*time.Minute, nil, nil)
	points := []metrics.Point{at(0, 40), at(time.Minute, 90), at(6*time.Minute, 70)}

	view := d.Derive(telemetrics.ExternalLatency, points)

	assert.Equal(t, telemetrics.ExternalLatency, view.Metric)
	assert.Equal(t, 3, view.Samples)
	require.NotNil(t, view.Latest)
	assert.Equal(t, 70.0, view.Latest.Value)
	require.Len(t, view.Buckets, 2)
	assert.Equal(t, 65.0, view.Buckets[0].Mean)
	assert.False(t, view.Exceeded, "70 is below both limits")
	assert.False(t, view.BucketExceeded)
	assert.InDelta(t, 100, sum(view.Distribution.Shares), 1e-9)
}

func TestDeriver_DeriveEmpty(t *testing.T) {
	view := NewDeriver(0, nil, nil).Derive(telemetrics.BytesSent, nil)

	assert.Nil(t, view.Latest)
	assert.Zero(t, view.Samples)
	assert.Empty(t, view.Buckets)
	assert.Empty(t, view.Distribution.Shares)
	assert.False(t, view.Exceeded)
}
