package http

import (
	"math"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"livequiz-service/internal/app"
	"livequiz-service/internal/domain"
)

// Handler serves the REST endpoints on top of the quiz use cases.
type Handler struct {
	service *app.QuizService
}

func NewHandler(service *app.QuizService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) ListQuizzes(w http.ResponseWriter, r *http.Request) {
	quizzes, err := h.service.ListQuizzes(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quizzes)
}

func (h *Handler) GetQuiz(w http.ResponseWriter, r *http.Request) {
	quiz, err := h.service.GetQuiz(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (h *Handler) CreateQuiz(w http.ResponseWriter, r *http.Request) {
	var in domain.NewQuiz
	if err := decodeJSON(r, &in, false); err != nil {
		writeError(w, r, err)
		return
	}
	quiz, err := h.service.CreateQuiz(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, quiz)
}

func (h *Handler) AddQuestion(w http.ResponseWriter, r *http.Request) {
	var in domain.NewQuestion
	if err := decodeJSON(r, &in, false); err != nil {
		writeError(w, r, err)
		return
	}
	q, err := h.service.AddQuestion(r.Context(), mux.Vars(r)["id"], in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var in domain.NewSession
	if err := decodeJSON(r, &in, false); err != nil {
		writeError(w, r, err)
		return
	}
	session, err := h.service.CreateSession(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.GetSession(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *Handler) GetSessionByPin(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.GetSessionByPin(r.Context(), mux.Vars(r)["pin"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *Handler) UpdateSession(w http.ResponseWriter, r *http.Request) {
	var patch domain.SessionPatch
	if err := decodeJSON(r, &patch, false); err != nil {
		writeError(w, r, err)
		return
	}
	session, err := h.service.UpdateSession(r.Context(), mux.Vars(r)["id"], patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.Start(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

type advanceRequest struct {
	FromIndex *int `json:"fromIndex"`
	// DelayMs schedules the advance instead of applying it now; 0 uses the
	// configured leaderboard delay.
	DelayMs *int `json:"delayMs"`
}

func (h *Handler) AdvanceSession(w http.ResponseWriter, r *http.Request) {
	var req advanceRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeError(w, r, err)
		return
	}
	id := mux.Vars(r)["id"]

	if req.DelayMs != nil {
		if *req.DelayMs < 0 {
			writeError(w, r, domain.NewValidationError("delayMs", "must not be negative"))
			return
		}
		delay := time.Duration(*req.DelayMs) * time.Millisecond
		session, err := h.service.ScheduleAdvance(r.Context(), id, req.FromIndex, delay)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, session)
		return
	}

	session, err := h.service.Advance(r.Context(), id, req.FromIndex)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Snapshot(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) JoinSession(w http.ResponseWriter, r *http.Request) {
	var in domain.NewPlayer
	if err := decodeJSON(r, &in, false); err != nil {
		writeError(w, r, err)
		return
	}
	player, err := h.service.JoinSession(r.Context(), mux.Vars(r)["id"], in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, player)
}

func (h *Handler) ListPlayers(w http.ResponseWriter, r *http.Request) {
	players, err := h.service.ListSessionPlayers(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, players)
}

func (h *Handler) GetPlayer(w http.ResponseWriter, r *http.Request) {
	player, err := h.service.GetPlayer(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, player)
}

type scoreRequest struct {
	Score *float64 `json:"score"`
}

func (h *Handler) UpdateScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	switch {
	case req.Score == nil:
		writeError(w, r, domain.NewValidationError("score", "is required"))
		return
	case *req.Score != math.Trunc(*req.Score) || math.Abs(*req.Score) > math.MaxInt32:
		writeError(w, r, domain.NewValidationError("score", "must be an integer"))
		return
	}
	player, err := h.service.UpdatePlayerScore(r.Context(), mux.Vars(r)["id"], int(*req.Score))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, player)
}

func (h *Handler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var in domain.AnswerSubmission
	if err := decodeJSON(r, &in, false); err != nil {
		writeError(w, r, err)
		return
	}
	result, err := h.service.SubmitAnswer(r.Context(), mux.Vars(r)["id"], in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) ListPlayerResponses(w http.ResponseWriter, r *http.Request) {
	responses, err := h.service.ListPlayerResponses(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, responses)
}

func (h *Handler) RecordResponse(w http.ResponseWriter, r *http.Request) {
	var in domain.NewResponse
	if err := decodeJSON(r, &in, false); err != nil {
		writeError(w, r, err)
		return
	}
	response, err := h.service.RecordResponse(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, response)
}

func (h *Handler) ListQuestionResponses(w http.ResponseWriter, r *http.Request) {
	responses, err := h.service.ListQuestionResponses(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, responses)
}
