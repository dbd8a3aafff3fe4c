package service

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yaron8/netmon/analytics"
	"github.com/yaron8/netmon/metrics"
)

type AggregateResponse struct {
	Metric   string             `json:"metric"`
	Interval string             `json:"interval"`
	Buckets  []analytics.Bucket `json:"buckets"`
}

type ClassifyResponse struct {
	Metric string `json:"metric"`
	analytics.Distribution
}

type ThresholdResponse struct {
	Metric         string            `json:"metric"`
	Limits         *analytics.Limits `json:"limits"`
	Latest         *metrics.Point    `json:"latest"`
	Exceeded       bool              `json:"exceeded"`
	BucketExceeded bool              `json:"bucket_exceeded"`
}

// AggregateHandler buckets a metric's series. The optional interval parameter
// is a Go duration such as 30s or 5m.
func (api *APIServer) AggregateHandler(c *gin.Context) {
	name, ok := api.metricParam(c)
	if !ok {
		return
	}

	interval := api.sources.Deriver.Interval
	if raw := c.Query("interval"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid interval parameter: " + raw})
			return
		}
		interval = d
	}
	if interval <= 0 {
		interval = analytics.DefaultInterval
	}

	c.JSON(http.StatusOK, AggregateResponse{
		Metric:   name,
		Interval: interval.String(),
		Buckets:  analytics.Aggregate(api.sources.Store.Read(name), interval),
	})
}

func (api *APIServer) ClassifyHandler(c *gin.Context) {
	name, ok := api.metricParam(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, ClassifyResponse{
		Metric:       name,
		Distribution: api.sources.Deriver.Classifier.Classify(name, api.sources.Store.Read(name)),
	})
}

// ThresholdHandler evaluates the latest raw point and the latest bucket mean.
// Limits is null for metrics without configured thresholds.
func (api *APIServer) ThresholdHandler(c *gin.Context) {
	name, ok := api.metricParam(c)
	if !ok {
		return
	}

	view := api.sources.Deriver.Derive(name, api.sources.Store.Read(name))
	resp := ThresholdResponse{
		Metric:         name,
		Latest:         view.Latest,
		Exceeded:       view.Exceeded,
		BucketExceeded: view.BucketExceeded,
	}
	if limits, ok := api.sources.Deriver.Monitor.Limits(name); ok {
		resp.Limits = &limits
	}

	c.JSON(http.StatusOK, resp)
}
