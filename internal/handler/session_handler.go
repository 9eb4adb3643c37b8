package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/jengzang/runtrack-go/internal/geolocation"
	"github.com/jengzang/runtrack-go/internal/logging"
	"github.com/jengzang/runtrack-go/internal/models"
	"github.com/jengzang/runtrack-go/internal/tracking"
	"github.com/jengzang/runtrack-go/pkg/response"
)

const (
	liveWriteWait = 10 * time.Second
	livePongWait  = 60 * time.Second
)

// LiveMessage is one frame of the live session feed
type LiveMessage struct {
	Type string                 `json:"type"`
	Data models.SessionSnapshot `json:"data"`
}

// SessionHandler handles HTTP requests for the run session
type SessionHandler struct {
	manager      *tracking.Manager
	relay        *geolocation.Relay
	liveInterval time.Duration
	upgrader     websocket.Upgrader
}

// NewSessionHandler creates a new session handler. relay is nil when fixes
// come from a replay file instead of the HTTP bridge.
func NewSessionHandler(manager *tracking.Manager, relay *geolocation.Relay, liveInterval time.Duration) *SessionHandler {
	if liveInterval <= 0 {
		liveInterval = time.Second
	}
	return &SessionHandler{
		manager:      manager,
		relay:        relay,
		liveInterval: liveInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:   1024,
			WriteBufferSize:  4096,
			HandshakeTimeout: 10 * time.Second,
			CheckOrigin:      func(*http.Request) bool { return true },
		},
	}
}

// Start handles POST /api/v1/session/start
func (h *SessionHandler) Start(c *gin.Context) {
	snap, err := h.manager.Start()
	if err != nil {
		sessionError(c, err)
		return
	}
	response.Success(c, snap)
}

// Pause handles POST /api/v1/session/pause
func (h *SessionHandler) Pause(c *gin.Context) {
	snap, err := h.manager.Pause()
	if err != nil {
		sessionError(c, err)
		return
	}
	response.Success(c, snap)
}

// Resume handles POST /api/v1/session/resume
func (h *SessionHandler) Resume(c *gin.Context) {
	snap, err := h.manager.Resume()
	if err != nil {
		sessionError(c, err)
		return
	}
	response.Success(c, snap)
}

// Stop handles POST /api/v1/session/stop. The summary is returned for every
// outcome, including a failed save.
func (h *SessionHandler) Stop(c *gin.Context) {
	summary, err := h.manager.Stop(c.Request.Context())
	if err != nil {
		sessionError(c, err)
		return
	}
	response.Success(c, summary)
}

// Get handles GET /api/v1/session
func (h *SessionHandler) Get(c *gin.Context) {
	snap, err := h.manager.Snapshot()
	if err != nil {
		sessionError(c, err)
		return
	}
	response.Success(c, snap)
}

// PushFix handles POST /api/v1/session/fixes. The call returns once the
// session has taken the fix.
func (h *SessionHandler) PushFix(c *gin.Context) {
	if h.relay == nil {
		response.Conflict(c, "Positions are replayed from a file")
		return
	}

	var fix models.GeoFix
	if err := c.ShouldBindJSON(&fix); err != nil {
		response.BadRequest(c, "Invalid position fix")
		return
	}

	if err := h.relay.Push(c.Request.Context(), fix); err != nil {
		sessionError(c, err)
		return
	}
	response.Success(c, nil)
}

// PushError handles POST /api/v1/session/errors
func (h *SessionHandler) PushError(c *gin.Context) {
	if h.relay == nil {
		response.Conflict(c, "Positions are replayed from a file")
		return
	}

	var report models.PositionErrorReport
	if err := c.ShouldBindJSON(&report); err != nil {
		response.BadRequest(c, "Invalid position error")
		return
	}

	perr := &geolocation.PositionError{
		Code:    geolocation.ErrorCode(report.Code),
		Message: report.Message,
	}
	if err := h.relay.PushError(c.Request.Context(), perr); err != nil {
		sessionError(c, err)
		return
	}
	response.Success(c, nil)
}

// Live handles GET /api/v1/session/live, pushing a snapshot every interval
// until the client goes away.
func (h *SessionHandler) Live(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Warn().Err(err).Msg("live feed upgrade failed")
		return
	}
	defer conn.Close()

	// the reader only notices the close frame; clients send nothing else
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(livePongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(livePongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.liveInterval)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		if err := h.writeSnapshot(conn); err != nil {
			return
		}

		select {
		case <-gone:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (h *SessionHandler) writeSnapshot(conn *websocket.Conn) error {
	snap, err := h.manager.Snapshot()
	if errors.Is(err, tracking.ErrNoSession) {
		snap = models.SessionSnapshot{Status: models.StatusIdle, Route: []models.RoutePoint{}}
	}

	if err := conn.SetWriteDeadline(time.Now().Add(liveWriteWait)); err != nil {
		return err
	}
	if err := conn.WriteJSON(LiveMessage{Type: "snapshot", Data: snap}); err != nil {
		return err
	}
	return conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(liveWriteWait))
}

// sessionError maps tracking errors to HTTP status codes
func sessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, tracking.ErrNoSession):
		response.NotFound(c, "No run session")
	case errors.Is(err, tracking.ErrSessionActive),
		errors.Is(err, tracking.ErrInvalidTransition):
		response.Conflict(c, err.Error())
	case errors.Is(err, geolocation.ErrNoWatch):
		response.Conflict(c, "No session is tracking positions")
	case c.Request.Context().Err() != nil:
		response.Error(c, http.StatusRequestTimeout, "Request cancelled")
	default:
		response.InternalError(c, err.Error())
	}
}
