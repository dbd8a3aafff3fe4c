package service

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/yaron8/netmon/telemetrics"
)

const writeWait = 5 * time.Second

// feedHandler upgrades to websocket and pushes a metrics frame every
// FeedInterval, plus an attack_detection frame after every AttackEvery
// metrics frames, until the client goes away or the server shuts down.
func (api *APIServer) feedHandler(c *gin.Context) {
	conn, err := api.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the error response
		api.logger.Warn("Error upgrading feed connection", "error", err)
		return
	}
	defer conn.Close()

	logger := api.logger.With("remote", conn.RemoteAddr().String())
	logger.Info("Feed client connected")

	// the client never sends; reading only surfaces its close
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(api.config.FeedInterval)
	defer ticker.Stop()

	for sent := 1; ; sent++ {
		if err := api.writeSample(conn); err != nil {
			logger.Warn("Feed write failed", "error", err)
			return
		}
		if api.config.AttackEvery > 0 && sent%api.config.AttackEvery == 0 {
			if err := api.writeAttack(conn); err != nil {
				logger.Warn("Feed write failed", "error", err)
				return
			}
		}

		select {
		case <-gone:
			logger.Info("Feed client disconnected", "frames", sent)
			return
		case <-api.done:
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			return
		case <-ticker.C:
		}
	}
}

func (api *APIServer) writeSample(conn *websocket.Conn) error {
	frame, err := telemetrics.EncodeMetrics(api.generator.Next())
	if err != nil {
		return fmt.Errorf("failed to encode sample: %w", err)
	}
	return writeFrame(conn, frame)
}

func (api *APIServer) writeAttack(conn *websocket.Conn) error {
	frame, err := telemetrics.EncodeAttack(api.generator.NextAttack())
	if err != nil {
		return fmt.Errorf("failed to encode attack verdict: %w", err)
	}
	return writeFrame(conn, frame)
}

func writeFrame(conn *websocket.Conn, frame []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, frame)
}
