package service

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	"github.com/yaron8/netmon/metrics"
	"github.com/yaron8/netmon/telemetrics"
)

type MetricResponse struct {
	Metric string          `json:"metric"`
	Points []metrics.Point `json:"points"`
}

func (api *APIServer) GetMetricHandler(c *gin.Context) {
	name, ok := api.metricParam(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, MetricResponse{
		Metric: name,
		Points: api.sources.Store.Read(name),
	})
}

// metricParam reads the metric query parameter and writes the error response
// when it is missing or names no series.
func (api *APIServer) metricParam(c *gin.Context) (string, bool) {
	name := c.Query("metric")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing metric parameter"})
		return "", false
	}

	if !telemetrics.IsKnownMetric(name) && !slices.Contains(api.sources.Store.Names(), name) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown metric: " + name})
		return "", false
	}
	return name, true
}
