package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"fleet_monitor/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	maxMsgSize       = 1 << 12 // viewers only send control frames
	defaultInterval  = 1 * time.Second
	maxInterval      = 10 * time.Second
	maxIntervalMilli = 10_000

	snapshotType = "snapshot"
)

type wsEnvelope struct {
	Type  string      `json:"type"`
	Seq   uint64      `json:"seq"`
	At    time.Time   `json:"at"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

// fleetSnapshot is what a viewer sees on every tick.
type fleetSnapshot struct {
	Machines      []models.Machine        `json:"machines"`
	Notifications []models.Notification   `json:"notifications"`
	Connection    models.ConnectionStatus `json:"connection"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true }, // TODO: restrict origins once the dashboard host is configurable
}

// @Summary      Viewer snapshot stream
// @Description  WebSocket upgrade. Pushes {"type":"snapshot","seq":n,"at":t,"data":{machines,notifications,connection}} immediately and then every interval. With auth enabled pass the token as Authorization header or ?access_token=.
// @Tags         stream
// @Param        interval      query  string  false  "Go duration, max 10s"  example(2s)
// @Param        interval_ms   query  int     false  "Milliseconds, max 10000"
// @Param        access_token  query  string  false  "Bearer token"
// @Router       /ws [get]
func (h *Handler) wsConnect(c *gin.Context) {
	interval := h.parseInterval(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_upgrade_failed", "err", err)
		}
		return
	}
	defer func() { _ = conn.Close() }()

	if h.log != nil {
		h.log.Debugw("viewer_connected", "remote", c.ClientIP(), "interval", interval, "operator", c.GetString(operatorCtxKey))
	}
	err = h.streamSnapshots(c.Request.Context(), conn, interval)
	if h.log != nil {
		h.log.Debugw("viewer_disconnected", "remote", c.ClientIP(), "err", err)
	}
}

// streamSnapshots writes a snapshot now and on every tick, pinging in
// between, until the viewer goes away or a write fails.
func (h *Handler) streamSnapshots(ctx context.Context, conn *websocket.Conn, interval time.Duration) error {
	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	go drainReads(conn, done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	var seq uint64
	send := func() error {
		seq++
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(wsEnvelope{Type: snapshotType, Seq: seq, At: time.Now().UTC(), Data: h.snapshot()})
	}

	if err := send(); err != nil {
		return err
	}
	for {
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return err
			}
		case <-ticker.C:
			if err := send(); err != nil {
				return err
			}
		}
	}
}

// parseInterval reads ?interval=2s or ?interval_ms=2000 with bounds.
func (h *Handler) parseInterval(c *gin.Context) time.Duration {
	if s := c.Query("interval"); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 && d <= maxInterval {
			return d
		}
	}
	if ms := c.Query("interval_ms"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil && v > 0 && v <= maxIntervalMilli {
			return time.Duration(v) * time.Millisecond
		}
	}
	return defaultInterval
}

// drainReads consumes control frames and closes done when the viewer leaves.
func drainReads(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handler) snapshot() fleetSnapshot {
	return fleetSnapshot{
		Machines:      h.services.Machines.List(),
		Notifications: h.services.Notifications.List(),
		Connection:    h.services.Connection.Status(),
	}
}
