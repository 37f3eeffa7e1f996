package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/pkg/cache"
	xlogger "github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/pkg/logger"
	"github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/pkg/queue"
	"github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/pkg/util"
)

const (
	jobPollInterval = time.Second
	jobWatchTimeout = 30 * time.Minute
	wsWriteTimeout  = 10 * time.Second
	wsPingInterval  = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORS for the REST surface is handled at the middleware layer; the
	// watch endpoint mirrors its allow-all default.
	CheckOrigin: func(*http.Request) bool { return true },
}

// WatchJob streams status transitions of one enqueued job over a WebSocket.
// Each state change is pushed as one JSON frame; the connection closes after
// a terminal state, the watch timeout, or the client going away.
func (h *ScoringHandler) WatchJob(c echo.Context) error {
	id := c.Param("id")

	// Reject unknown jobs before upgrading so the client gets a proper 404.
	last, err := h.status.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return echo.NewHTTPError(http.StatusNotFound, "unknown or expired job")
		}
		h.logger.Error("job watch lookup error", xlogger.String("job_id", id), xlogger.Error(err))
		return err
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := h.writeStatus(conn, last); err != nil {
		return nil
	}
	if terminal(last.State) {
		return nil
	}

	// Clients may shorten the watch with ?timeout_sec=N; the server cap
	// still applies.
	timeout := time.Duration(util.ParseIntDefault(c.QueryParam("timeout_sec"), 0)) * time.Second
	if timeout <= 0 || timeout > jobWatchTimeout {
		timeout = jobWatchTimeout
	}

	ctx := c.Request().Context()
	poll := time.NewTicker(jobPollInterval)
	defer poll.Stop()
	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	// Drain client frames so close messages are processed.
	go func() {
		for {
			if _, _, rerr := conn.ReadMessage(); rerr != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-deadline.C:
			return nil
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		case <-poll.C:
			st, gerr := h.status.Get(ctx, id)
			if gerr != nil {
				// Expired mid-watch; nothing more will arrive.
				return nil
			}
			if st.State == last.State && st.Attempts == last.Attempts {
				continue
			}
			last = st
			if err := h.writeStatus(conn, st); err != nil {
				return nil
			}
			if terminal(st.State) {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, st.State))
				return nil
			}
		}
	}
}

func (h *ScoringHandler) writeStatus(conn *websocket.Conn, st *queue.JobStatus) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(st)
}

func terminal(state string) bool {
	return state == queue.StateSucceeded || state == queue.StateDead
}
