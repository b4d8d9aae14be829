package http

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"livequiz-service/internal/app"
	"livequiz-service/internal/poller"
	"livequiz-service/internal/presenter"
)

const writeWait = 10 * time.Second

// StreamHandler pushes session snapshots over a websocket. It polls the
// service on a fixed interval and writes only snapshots that changed; it
// does not subscribe to changes.
type StreamHandler struct {
	service  *app.QuizService
	interval time.Duration
	upgrader websocket.Upgrader
}

func NewStreamHandler(service *app.QuizService, interval time.Duration) *StreamHandler {
	return &StreamHandler{
		service:  service,
		interval: interval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// ServeWS streams snapshots of one session until it completes or the
// client goes away.
func (h *StreamHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	// Resolve the session before upgrading so unknown ids get a plain 404.
	if _, err := h.service.GetSession(r.Context(), sessionID); err != nil {
		writeError(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The client never sends anything meaningful; reading only notices it leaving.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	p := poller.New(func(ctx context.Context) (presenter.Snapshot, error) {
		return h.service.Snapshot(ctx, sessionID)
	}, h.interval)

	err = p.Run(ctx, func(snap presenter.Snapshot) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(outboundMessage[presenter.Snapshot]{Type: "snapshot", Payload: snap})
	})
	if err != nil && ctx.Err() == nil {
		var closeErr *websocket.CloseError
		if !errors.As(err, &closeErr) {
			log.Printf("ws stream %s: %v", sessionID, err)
			_ = conn.WriteJSON(outboundMessage[errorBody]{Type: "error", Payload: errorBody{Message: rootMessage(err)}})
		}
	}

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stream ended"),
		time.Now().Add(writeWait))
}
