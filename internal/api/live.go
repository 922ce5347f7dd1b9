package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/victornm/codexa/internal/domain"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

func (a *API) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || a.origins[origin]
		},
	}
}

// liveLeaderboard streams leaderboard.updated notifications of a quiz over a WebSocket, starting
// with a snapshot of the current standings.
func (a *API) liveLeaderboard(c *gin.Context) {
	quizID, ok := quizIDParam(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()

	// Subscribe before the snapshot so no update falls between the two.
	sub := a.redis.Subscribe(ctx, a.quizChannel(quizID))
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		renderError(c, err)
		return
	}

	snapshot, err := a.ls.GetStandings(ctx, quizID)
	if err != nil {
		renderError(c, err)
		return
	}

	conn, err := a.upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		slog.WarnContext(ctx, "live: upgrade failed", "quiz_id", quizID, "error", err)
		return
	}
	defer conn.Close()

	b, err := json.Marshal(Notification{Event: domain.EventNameLeaderboardUpdated, Data: leaderboardView(snapshot)})
	if err != nil {
		slog.ErrorContext(ctx, "live: marshal snapshot", "quiz_id", quizID, "error", err)
		return
	}

	if err := write(conn, websocket.TextMessage, b); err != nil {
		return
	}

	closed := make(chan struct{})
	go readUntilClosed(conn, closed)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	msgs := sub.Channel()
	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			if err := write(conn, websocket.TextMessage, []byte(msg.Payload)); err != nil {
				slog.InfoContext(ctx, "live: client gone", "quiz_id", quizID, "error", err)
				return
			}

		case <-ticker.C:
			if err := write(conn, websocket.PingMessage, nil); err != nil {
				return
			}

		case <-closed:
			return

		case <-ctx.Done():
			return
		}
	}
}

func write(conn *websocket.Conn, typ int, b []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(typ, b)
}

// readUntilClosed drains client frames so pongs and close frames are processed.
func readUntilClosed(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
