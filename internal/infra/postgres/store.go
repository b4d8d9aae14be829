// Package postgres implements app.Store on PostgreSQL via pgxpool.
// The schema is owned by the bun migrations in the migrations package.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"livequiz-service/internal/domain"
)

const uniqueViolation = "23505"

const (
	quizColumns     = `id, title, description, time_per_question, created_by, created_at`
	questionColumns = `id, quiz_id, question_text, option_a, option_b, option_c, option_d, correct_answer, "order"`
	sessionColumns  = `id, quiz_id, pin, host_id, status, current_question_index, started_at, ended_at`
	playerColumns   = `id, session_id, name, score, joined_at`
	responseColumns = `id, player_id, question_id, selected_answer, is_correct, response_time, submitted_at`
)

// Store persists quiz entities in Postgres. Every table carries a seq
// column that orders rows by insertion.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) CreateQuiz(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO quizzes (`+quizColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		quiz.ID, quiz.Title, quiz.Description, quiz.TimePerQuestion, quiz.CreatedBy, quiz.CreatedAt)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("insert quiz: %w", err)
	}
	return quiz, nil
}

func (s *Store) CreateQuizWithQuestions(ctx context.Context, quiz domain.Quiz, questions []domain.Question) (domain.QuizWithQuestions, error) {
	out := domain.QuizWithQuestions{Quiz: quiz, Questions: make([]domain.Question, 0, len(questions))}
	err := s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO quizzes (`+quizColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
			quiz.ID, quiz.Title, quiz.Description, quiz.TimePerQuestion, quiz.CreatedBy, quiz.CreatedAt); err != nil {
			return fmt.Errorf("insert quiz: %w", err)
		}
		for _, q := range questions {
			q.QuizID = quiz.ID
			if _, err := tx.Exec(ctx,
				`INSERT INTO questions (`+questionColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				q.ID, q.QuizID, q.QuestionText, q.OptionA, q.OptionB, q.OptionC, q.OptionD, q.CorrectAnswer, q.Order); err != nil {
				return fmt.Errorf("insert question %s: %w", q.ID, err)
			}
			out.Questions = append(out.Questions, q)
		}
		return nil
	})
	if err != nil {
		return domain.QuizWithQuestions{}, err
	}
	return out, nil
}

func (s *Store) GetQuiz(ctx context.Context, id string) (domain.Quiz, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+quizColumns+` FROM quizzes WHERE id = $1`, id)
	quiz, err := scanQuiz(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return quiz, err
}

func (s *Store) ListQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+quizColumns+` FROM quizzes ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	quizzes := []domain.Quiz{}
	for rows.Next() {
		quiz, err := scanQuiz(rows)
		if err != nil {
			return nil, err
		}
		quizzes = append(quizzes, quiz)
	}
	return quizzes, rows.Err()
}

func (s *Store) GetQuizWithQuestions(ctx context.Context, id string) (domain.QuizWithQuestions, error) {
	quiz, err := s.GetQuiz(ctx, id)
	if err != nil {
		return domain.QuizWithQuestions{}, err
	}
	questions, err := s.ListQuestions(ctx, id)
	if err != nil {
		return domain.QuizWithQuestions{}, err
	}
	return domain.QuizWithQuestions{Quiz: quiz, Questions: questions}, nil
}

func (s *Store) CreateQuestion(ctx context.Context, q domain.Question) (domain.Question, error) {
	if _, err := s.GetQuiz(ctx, q.QuizID); err != nil {
		return domain.Question{}, err
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO questions (`+questionColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		q.ID, q.QuizID, q.QuestionText, q.OptionA, q.OptionB, q.OptionC, q.OptionD, q.CorrectAnswer, q.Order)
	if err != nil {
		return domain.Question{}, fmt.Errorf("insert question: %w", err)
	}
	return q, nil
}

func (s *Store) GetQuestion(ctx context.Context, id string) (domain.Question, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+questionColumns+` FROM questions WHERE id = $1`, id)
	q, err := scanQuestion(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return q, err
}

func (s *Store) ListQuestions(ctx context.Context, quizID string) ([]domain.Question, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE quiz_id = $1 ORDER BY "order", seq`, quizID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	questions := []domain.Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func (s *Store) CreateSession(ctx context.Context, session domain.QuizSession) (domain.QuizSession, error) {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO quiz_sessions (`+sessionColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		session.ID, session.QuizID, session.Pin, session.HostID, string(session.Status),
		session.CurrentQuestionIndex, session.StartedAt, session.EndedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == "quiz_sessions_pin_key" {
			return domain.QuizSession{}, domain.ErrPinTaken
		}
		return domain.QuizSession{}, fmt.Errorf("insert session: %w", err)
	}
	return session, nil
}

func (s *Store) GetSession(ctx context.Context, id string) (domain.QuizSession, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM quiz_sessions WHERE id = $1`, id)
	return sessionOrNotFound(scanSession(row))
}

func (s *Store) GetSessionByPin(ctx context.Context, pin string) (domain.QuizSession, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM quiz_sessions WHERE pin = $1`, pin)
	return sessionOrNotFound(scanSession(row))
}

func (s *Store) UpdateSession(ctx context.Context, session domain.QuizSession) (domain.QuizSession, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE quiz_sessions
		    SET status = $2, current_question_index = $3, started_at = $4, ended_at = $5, host_id = $6
		  WHERE id = $1
		RETURNING `+sessionColumns,
		session.ID, string(session.Status), session.CurrentQuestionIndex, session.StartedAt, session.EndedAt, session.HostID)
	return sessionOrNotFound(scanSession(row))
}

func (s *Store) CreatePlayer(ctx context.Context, p domain.Player) (domain.Player, error) {
	if _, err := s.GetSession(ctx, p.SessionID); err != nil {
		return domain.Player{}, err
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO players (`+playerColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.SessionID, p.Name, p.Score, p.JoinedAt)
	if err != nil {
		return domain.Player{}, fmt.Errorf("insert player: %w", err)
	}
	return p, nil
}

func (s *Store) GetPlayer(ctx context.Context, id string) (domain.Player, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+playerColumns+` FROM players WHERE id = $1`, id)
	return playerOrNotFound(scanPlayer(row))
}

func (s *Store) ListSessionPlayers(ctx context.Context, sessionID string) ([]domain.Player, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+playerColumns+` FROM players WHERE session_id = $1 ORDER BY score DESC, seq`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	players := []domain.Player{}
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

func (s *Store) UpdatePlayerScore(ctx context.Context, id string, score int) (domain.Player, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE players SET score = $2 WHERE id = $1 RETURNING `+playerColumns, id, score)
	return playerOrNotFound(scanPlayer(row))
}

// AddPlayerScore increments in a single statement so concurrent awards
// never lose an update.
func (s *Store) AddPlayerScore(ctx context.Context, id string, delta int) (domain.Player, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE players SET score = score + $2 WHERE id = $1 RETURNING `+playerColumns, id, delta)
	return playerOrNotFound(scanPlayer(row))
}

func (s *Store) CreateResponse(ctx context.Context, r domain.PlayerResponse) (domain.PlayerResponse, error) {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO player_responses (`+responseColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.ID, r.PlayerID, r.QuestionID, r.SelectedAnswer, r.IsCorrect, r.ResponseTime, r.SubmittedAt)
	if err != nil {
		return domain.PlayerResponse{}, fmt.Errorf("insert response: %w", err)
	}
	return r, nil
}

func (s *Store) HasResponse(ctx context.Context, playerID, questionID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM player_responses WHERE player_id = $1 AND question_id = $2)`,
		playerID, questionID).Scan(&exists)
	return exists, err
}

func (s *Store) ListPlayerResponses(ctx context.Context, playerID string) ([]domain.PlayerResponse, error) {
	return s.listResponses(ctx, `player_id = $1`, playerID)
}

func (s *Store) ListQuestionResponses(ctx context.Context, questionID string) ([]domain.PlayerResponse, error) {
	return s.listResponses(ctx, `question_id = $1`, questionID)
}

func (s *Store) listResponses(ctx context.Context, where, arg string) ([]domain.PlayerResponse, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+responseColumns+` FROM player_responses WHERE `+where+` ORDER BY seq`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	responses := []domain.PlayerResponse{}
	for rows.Next() {
		var r domain.PlayerResponse
		if err := rows.Scan(&r.ID, &r.PlayerID, &r.QuestionID, &r.SelectedAnswer, &r.IsCorrect, &r.ResponseTime, &r.SubmittedAt); err != nil {
			return nil, err
		}
		responses = append(responses, r)
	}
	return responses, rows.Err()
}

func scanQuiz(row pgx.Row) (domain.Quiz, error) {
	var q domain.Quiz
	err := row.Scan(&q.ID, &q.Title, &q.Description, &q.TimePerQuestion, &q.CreatedBy, &q.CreatedAt)
	return q, err
}

func scanQuestion(row pgx.Row) (domain.Question, error) {
	var q domain.Question
	err := row.Scan(&q.ID, &q.QuizID, &q.QuestionText, &q.OptionA, &q.OptionB, &q.OptionC, &q.OptionD, &q.CorrectAnswer, &q.Order)
	return q, err
}

func scanSession(row pgx.Row) (domain.QuizSession, error) {
	var (
		s      domain.QuizSession
		status string
	)
	err := row.Scan(&s.ID, &s.QuizID, &s.Pin, &s.HostID, &status, &s.CurrentQuestionIndex, &s.StartedAt, &s.EndedAt)
	s.Status = domain.SessionStatus(status)
	return s, err
}

func scanPlayer(row pgx.Row) (domain.Player, error) {
	var p domain.Player
	err := row.Scan(&p.ID, &p.SessionID, &p.Name, &p.Score, &p.JoinedAt)
	return p, err
}

func sessionOrNotFound(s domain.QuizSession, err error) (domain.QuizSession, error) {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QuizSession{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.QuizSession{}, err
	}
	return s, nil
}

func playerOrNotFound(p domain.Player, err error) (domain.Player, error) {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Player{}, domain.ErrPlayerNotFound
	}
	if err != nil {
		return domain.Player{}, err
	}
	return p, nil
}
