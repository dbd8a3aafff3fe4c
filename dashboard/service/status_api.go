package service

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yaron8/netmon/analytics"
	"github.com/yaron8/netmon/dashboard/stream"
)

type ViewsResponse struct {
	RefreshedAt time.Time                 `json:"refreshed_at"`
	Views       map[string]analytics.View `json:"views"`
}

type ConnectionResponse struct {
	State       stream.State `json:"state"`
	Attempt     int          `json:"attempt"`
	NextDelayMs int64        `json:"next_delay_ms"`
}

// ViewHandler returns the views of the last refresh, or only the view of the
// metric parameter when given.
func (api *APIServer) ViewHandler(c *gin.Context) {
	if c.Query("metric") == "" {
		views, refreshedAt := api.sources.Views.Views()
		c.JSON(http.StatusOK, ViewsResponse{RefreshedAt: refreshedAt, Views: views})
		return
	}

	name, ok := api.metricParam(c)
	if !ok {
		return
	}

	view, ok := api.sources.Views.View(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "No view yet for metric: " + name})
		return
	}
	c.JSON(http.StatusOK, view)
}

func (api *APIServer) AttackHandler(c *gin.Context) {
	c.JSON(http.StatusOK, api.sources.Attack.Snapshot())
}

// ConnectionHandler reports the feed connection state. NextDelayMs is the
// pending reconnect delay and is zero while connected.
func (api *APIServer) ConnectionHandler(c *gin.Context) {
	s := api.sources.Connection.State()

	resp := ConnectionResponse{State: s.State, Attempt: s.Attempt}
	if s.State == stream.Disconnected || s.State == stream.Error {
		resp.NextDelayMs = s.Delay.Milliseconds()
	}
	c.JSON(http.StatusOK, resp)
}
