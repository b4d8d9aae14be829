package http

import (
	"bufio"
	"errors"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"livequiz-service/internal/app"
)

// NewRouter mounts the JSON API under /api plus the health check.
func NewRouter(service *app.QuizService, streamInterval time.Duration) *mux.Router {
	h := NewHandler(service)
	stream := NewStreamHandler(service, streamInterval)

	r := mux.NewRouter()
	r.Use(logRequests)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/quizzes", h.ListQuizzes).Methods(http.MethodGet)
	api.HandleFunc("/quizzes", h.CreateQuiz).Methods(http.MethodPost)
	api.HandleFunc("/quizzes/{id}", h.GetQuiz).Methods(http.MethodGet)
	api.HandleFunc("/quizzes/{id}/questions", h.AddQuestion).Methods(http.MethodPost)

	api.HandleFunc("/sessions", h.CreateSession).Methods(http.MethodPost)
	api.HandleFunc("/sessions/pin/{pin}", h.GetSessionByPin).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}", h.GetSession).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}", h.UpdateSession).Methods(http.MethodPatch)
	api.HandleFunc("/sessions/{id}/start", h.StartSession).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/advance", h.AdvanceSession).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/snapshot", h.Snapshot).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}/stream", stream.ServeWS).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}/players", h.JoinSession).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/players", h.ListPlayers).Methods(http.MethodGet)

	api.HandleFunc("/players/{id}", h.GetPlayer).Methods(http.MethodGet)
	api.HandleFunc("/players/{id}/score", h.UpdateScore).Methods(http.MethodPatch)
	api.HandleFunc("/players/{id}/answers", h.SubmitAnswer).Methods(http.MethodPost)
	api.HandleFunc("/players/{id}/responses", h.ListPlayerResponses).Methods(http.MethodGet)

	api.HandleFunc("/responses", h.RecordResponse).Methods(http.MethodPost)
	api.HandleFunc("/questions/{id}/responses", h.ListQuestionResponses).Methods(http.MethodGet)

	notFound := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Message: "route not found"})
	})
	r.NotFoundHandler = notFound
	api.NotFoundHandler = notFound
	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// Hijack hands the connection to the websocket upgrader.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Printf("%s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Microsecond))
	})
}
