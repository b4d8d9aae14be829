// Package client is a typed HTTP client for the quiz API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"livequiz-service/internal/domain"
	"livequiz-service/internal/poller"
	"livequiz-service/internal/presenter"
)

// APIError is a non-2xx reply. It unwraps to the matching domain error when
// the server reported one, so errors.Is works across the wire.
type APIError struct {
	Status  int                 `json:"-"`
	Message string              `json:"message"`
	Fields  []domain.FieldError `json:"errors"`
}

func (e *APIError) Error() string {
	if len(e.Fields) > 0 {
		parts := make([]string, 0, len(e.Fields))
		for _, f := range e.Fields {
			parts = append(parts, f.Field+": "+f.Message)
		}
		return fmt.Sprintf("%d %s (%s)", e.Status, e.Message, strings.Join(parts, "; "))
	}
	return fmt.Sprintf("%d %s", e.Status, e.Message)
}

var knownErrors = map[string]error{}

func init() {
	for _, err := range []error{
		domain.ErrQuizNotFound, domain.ErrQuestionNotFound, domain.ErrSessionNotFound, domain.ErrPlayerNotFound,
		domain.ErrInvalidTransition, domain.ErrSessionNotJoinable, domain.ErrSessionNotActive,
		domain.ErrNoPlayers, domain.ErrNoQuestions, domain.ErrQuestionNotCurrent, domain.ErrAlreadyAnswered,
		domain.ErrPinExhausted,
	} {
		knownErrors[err.Error()] = err
	}
}

func (e *APIError) Unwrap() error {
	if len(e.Fields) > 0 {
		return &domain.ValidationError{Fields: e.Fields}
	}
	return knownErrors[e.Message]
}

// Client talks to one quiz server.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client for baseURL (for example http://localhost:8080).
// A nil httpClient uses a client with a 10 second timeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

func (c *Client) ListQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	var out []domain.Quiz
	err := c.do(ctx, http.MethodGet, "/api/quizzes", nil, &out)
	return out, err
}

func (c *Client) GetQuiz(ctx context.Context, id string) (domain.QuizWithQuestions, error) {
	var out domain.QuizWithQuestions
	err := c.do(ctx, http.MethodGet, "/api/quizzes/"+url.PathEscape(id), nil, &out)
	return out, err
}

func (c *Client) CreateQuiz(ctx context.Context, in domain.NewQuiz) (domain.QuizWithQuestions, error) {
	var out domain.QuizWithQuestions
	err := c.do(ctx, http.MethodPost, "/api/quizzes", in, &out)
	return out, err
}

func (c *Client) AddQuestion(ctx context.Context, quizID string, in domain.NewQuestion) (domain.Question, error) {
	var out domain.Question
	err := c.do(ctx, http.MethodPost, "/api/quizzes/"+url.PathEscape(quizID)+"/questions", in, &out)
	return out, err
}

func (c *Client) CreateSession(ctx context.Context, in domain.NewSession) (domain.QuizSession, error) {
	var out domain.QuizSession
	err := c.do(ctx, http.MethodPost, "/api/sessions", in, &out)
	return out, err
}

func (c *Client) GetSession(ctx context.Context, id string) (domain.QuizSession, error) {
	var out domain.QuizSession
	err := c.do(ctx, http.MethodGet, "/api/sessions/"+url.PathEscape(id), nil, &out)
	return out, err
}

func (c *Client) GetSessionByPin(ctx context.Context, pin string) (domain.QuizSession, error) {
	var out domain.QuizSession
	err := c.do(ctx, http.MethodGet, "/api/sessions/pin/"+url.PathEscape(pin), nil, &out)
	return out, err
}

func (c *Client) UpdateSession(ctx context.Context, id string, patch domain.SessionPatch) (domain.QuizSession, error) {
	var out domain.QuizSession
	err := c.do(ctx, http.MethodPatch, "/api/sessions/"+url.PathEscape(id), patch, &out)
	return out, err
}

func (c *Client) StartSession(ctx context.Context, id string) (domain.QuizSession, error) {
	var out domain.QuizSession
	err := c.do(ctx, http.MethodPost, "/api/sessions/"+url.PathEscape(id)+"/start", nil, &out)
	return out, err
}

// Advance moves the session on from fromIndex (the current question when nil).
func (c *Client) Advance(ctx context.Context, id string, fromIndex *int) (domain.QuizSession, error) {
	var out domain.QuizSession
	body := map[string]any{}
	if fromIndex != nil {
		body["fromIndex"] = *fromIndex
	}
	err := c.do(ctx, http.MethodPost, "/api/sessions/"+url.PathEscape(id)+"/advance", body, &out)
	return out, err
}

// ScheduleAdvance asks the server to advance after delay; zero uses the
// server's leaderboard delay.
func (c *Client) ScheduleAdvance(ctx context.Context, id string, fromIndex *int, delay time.Duration) (domain.QuizSession, error) {
	var out domain.QuizSession
	body := map[string]any{"delayMs": delay.Milliseconds()}
	if fromIndex != nil {
		body["fromIndex"] = *fromIndex
	}
	err := c.do(ctx, http.MethodPost, "/api/sessions/"+url.PathEscape(id)+"/advance", body, &out)
	return out, err
}

// Snapshot fetches the server-derived view state of a session.
func (c *Client) Snapshot(ctx context.Context, id string) (presenter.Snapshot, error) {
	var out presenter.Snapshot
	err := c.do(ctx, http.MethodGet, "/api/sessions/"+url.PathEscape(id)+"/snapshot", nil, &out)
	return out, err
}

// ComposeSnapshot derives the view state locally from the session, its quiz
// and its players.
func (c *Client) ComposeSnapshot(ctx context.Context, id string) (presenter.Snapshot, error) {
	session, err := c.GetSession(ctx, id)
	if err != nil {
		return presenter.Snapshot{}, err
	}
	quiz, err := c.GetQuiz(ctx, session.QuizID)
	if err != nil {
		return presenter.Snapshot{}, err
	}
	players, err := c.ListPlayers(ctx, id)
	if err != nil {
		return presenter.Snapshot{}, err
	}
	return presenter.Build(session, quiz, players), nil
}

func (c *Client) JoinSession(ctx context.Context, sessionID, name string) (domain.Player, error) {
	var out domain.Player
	err := c.do(ctx, http.MethodPost, "/api/sessions/"+url.PathEscape(sessionID)+"/players", domain.NewPlayer{Name: name}, &out)
	return out, err
}

func (c *Client) ListPlayers(ctx context.Context, sessionID string) ([]domain.Player, error) {
	var out []domain.Player
	err := c.do(ctx, http.MethodGet, "/api/sessions/"+url.PathEscape(sessionID)+"/players", nil, &out)
	return out, err
}

func (c *Client) GetPlayer(ctx context.Context, id string) (domain.Player, error) {
	var out domain.Player
	err := c.do(ctx, http.MethodGet, "/api/players/"+url.PathEscape(id), nil, &out)
	return out, err
}

func (c *Client) UpdatePlayerScore(ctx context.Context, id string, score int) (domain.Player, error) {
	var out domain.Player
	err := c.do(ctx, http.MethodPatch, "/api/players/"+url.PathEscape(id)+"/score", map[string]int{"score": score}, &out)
	return out, err
}

func (c *Client) SubmitAnswer(ctx context.Context, playerID string, in domain.AnswerSubmission) (domain.AnswerResult, error) {
	var out domain.AnswerResult
	err := c.do(ctx, http.MethodPost, "/api/players/"+url.PathEscape(playerID)+"/answers", in, &out)
	return out, err
}

func (c *Client) ListPlayerResponses(ctx context.Context, playerID string) ([]domain.PlayerResponse, error) {
	var out []domain.PlayerResponse
	err := c.do(ctx, http.MethodGet, "/api/players/"+url.PathEscape(playerID)+"/responses", nil, &out)
	return out, err
}

func (c *Client) RecordResponse(ctx context.Context, in domain.NewResponse) (domain.PlayerResponse, error) {
	var out domain.PlayerResponse
	err := c.do(ctx, http.MethodPost, "/api/responses", in, &out)
	return out, err
}

func (c *Client) ListQuestionResponses(ctx context.Context, questionID string) ([]domain.PlayerResponse, error) {
	var out []domain.PlayerResponse
	err := c.do(ctx, http.MethodGet, "/api/questions/"+url.PathEscape(questionID)+"/responses", nil, &out)
	return out, err
}

// Watch polls the session snapshot every interval and calls emit with each
// changed snapshot until the session completes or ctx is done.
func (c *Client) Watch(ctx context.Context, sessionID string, interval time.Duration, emit func(presenter.Snapshot) error) error {
	p := poller.New(func(ctx context.Context) (presenter.Snapshot, error) {
		return c.Snapshot(ctx, sessionID)
	}, interval)
	return p.Run(ctx, emit)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err := json.Unmarshal(data, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
