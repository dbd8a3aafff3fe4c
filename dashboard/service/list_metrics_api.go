package service

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yaron8/netmon/metrics"
	"github.com/yaron8/netmon/telemetrics"
)

// ListMetricsHandler returns the latest point of every metric; metrics with
// no samples yet map to null.
func (api *APIServer) ListMetricsHandler(c *gin.Context) {
	latest := map[string]*metrics.Point{}
	for _, name := range telemetrics.GetMetricNames() {
		latest[name] = nil
	}

	for _, name := range api.sources.Store.Names() {
		if p, ok := api.sources.Store.Latest(name); ok {
			latest[name] = &p
		}
	}

	c.JSON(http.StatusOK, latest)
}
