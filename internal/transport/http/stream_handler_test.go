package http

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"livequiz-service/internal/domain"
	"livequiz-service/internal/presenter"
)

func TestStreamSendsChangedSnapshotsUntilCompleted(t *testing.T) {
	server := newTestServer(t)
	base := server.URL
	quiz := createQuiz(t, base)

	var session domain.QuizSession
	call(t, http.MethodPost, base+"/api/sessions", map[string]any{"quizId": quiz.ID}, &session)

	u := "ws" + strings.TrimPrefix(base, "http") + "/api/sessions/" + session.ID + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	first := readSnapshot(t, conn)
	if first.Session.Status != domain.StatusWaiting || len(first.Players) != 0 {
		t.Fatalf("expected empty waiting room first, got %+v", first)
	}

	var ann domain.Player
	call(t, http.MethodPost, base+"/api/sessions/"+session.ID+"/players", map[string]any{"name": "Ann"}, &ann)
	joined := readSnapshot(t, conn)
	if len(joined.Players) != 1 || joined.Players[0].Name != "Ann" {
		t.Fatalf("expected Ann in the lobby, got %+v", joined.Players)
	}

	call(t, http.MethodPost, base+"/api/sessions/"+session.ID+"/start", nil, &session)
	call(t, http.MethodPatch, base+"/api/sessions/"+session.ID, map[string]any{"status": "completed"}, &session)

	// Intermediate states may be coalesced; the stream must end on completion.
	for {
		snap := readSnapshot(t, conn)
		if snap.Session.Status == domain.StatusCompleted {
			if snap.Winner == nil || snap.Winner.ID != ann.ID {
				t.Fatalf("expected Ann as winner, got %+v", snap.Winner)
			}
			break
		}
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Fatalf("expected normal close after completion, got %v", err)
	}
}

func TestStreamUnknownSession(t *testing.T) {
	server := newTestServer(t)
	u := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/sessions/missing/stream"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 before upgrade, got %+v", resp)
	}
}

func readSnapshot(t *testing.T, conn *websocket.Conn) presenter.Snapshot {
	t.Helper()
	var msg struct {
		Type    string             `json:"type"`
		Payload presenter.Snapshot `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if msg.Type != "snapshot" {
		t.Fatalf("expected snapshot message, got %s", msg.Type)
	}
	return msg.Payload
}
