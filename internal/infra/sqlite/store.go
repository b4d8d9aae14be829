// Package sqlite implements app.Store on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlitedriver "modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"

	"livequiz-service/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS quizzes (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    description TEXT,
    time_per_question INTEGER NOT NULL DEFAULT 30,
    created_by TEXT,
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS questions (
    id TEXT PRIMARY KEY,
    quiz_id TEXT NOT NULL,
    question_text TEXT NOT NULL,
    option_a TEXT NOT NULL,
    option_b TEXT NOT NULL,
    option_c TEXT,
    option_d TEXT,
    correct_answer TEXT NOT NULL,
    "order" INTEGER NOT NULL,
    FOREIGN KEY (quiz_id) REFERENCES quizzes(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS quiz_sessions (
    id TEXT PRIMARY KEY,
    quiz_id TEXT NOT NULL,
    pin TEXT NOT NULL UNIQUE,
    host_id TEXT,
    status TEXT NOT NULL DEFAULT 'waiting',
    current_question_index INTEGER NOT NULL DEFAULT 0,
    started_at TEXT,
    ended_at TEXT,
    FOREIGN KEY (quiz_id) REFERENCES quizzes(id)
);

CREATE TABLE IF NOT EXISTS players (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL,
    name TEXT NOT NULL,
    score INTEGER NOT NULL DEFAULT 0,
    joined_at TEXT NOT NULL,
    FOREIGN KEY (session_id) REFERENCES quiz_sessions(id)
);

CREATE TABLE IF NOT EXISTS player_responses (
    id TEXT PRIMARY KEY,
    player_id TEXT NOT NULL,
    question_id TEXT NOT NULL,
    selected_answer TEXT,
    is_correct INTEGER NOT NULL,
    response_time INTEGER,
    submitted_at TEXT NOT NULL,
    FOREIGN KEY (player_id) REFERENCES players(id)
);

CREATE INDEX IF NOT EXISTS idx_questions_quiz ON questions(quiz_id);
CREATE INDEX IF NOT EXISTS idx_players_session ON players(session_id);
CREATE INDEX IF NOT EXISTS idx_responses_question ON player_responses(question_id);
CREATE INDEX IF NOT EXISTS idx_responses_player ON player_responses(player_id, question_id);
`

const (
	quizColumns     = `id, title, description, time_per_question, created_by, created_at`
	questionColumns = `id, quiz_id, question_text, option_a, option_b, option_c, option_d, correct_answer, "order"`
	sessionColumns  = `id, quiz_id, pin, host_id, status, current_question_index, started_at, ended_at`
	playerColumns   = `id, session_id, name, score, joined_at`
	responseColumns = `id, player_id, question_id, selected_answer, is_correct, response_time, submitted_at`
)

// Store persists quiz entities in SQLite. Rows keep their rowid, which
// preserves insertion order for ties.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer at a time; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA foreign_keys = ON; PRAGMA busy_timeout = 5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite pragmas: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateQuiz(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO quizzes (`+quizColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		quiz.ID, quiz.Title, quiz.Description, quiz.TimePerQuestion, quiz.CreatedBy, formatTime(quiz.CreatedAt))
	if err != nil {
		return domain.Quiz{}, err
	}
	return quiz, nil
}

func (s *Store) CreateQuizWithQuestions(ctx context.Context, quiz domain.Quiz, questions []domain.Question) (domain.QuizWithQuestions, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.QuizWithQuestions{}, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO quizzes (`+quizColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		quiz.ID, quiz.Title, quiz.Description, quiz.TimePerQuestion, quiz.CreatedBy, formatTime(quiz.CreatedAt)); err != nil {
		return domain.QuizWithQuestions{}, err
	}
	out := domain.QuizWithQuestions{Quiz: quiz, Questions: make([]domain.Question, 0, len(questions))}
	for _, q := range questions {
		q.QuizID = quiz.ID
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO questions (`+questionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			q.ID, q.QuizID, q.QuestionText, q.OptionA, q.OptionB, q.OptionC, q.OptionD, q.CorrectAnswer, q.Order); err != nil {
			return domain.QuizWithQuestions{}, fmt.Errorf("insert question %s: %w", q.ID, err)
		}
		out.Questions = append(out.Questions, q)
	}
	if err := tx.Commit(); err != nil {
		return domain.QuizWithQuestions{}, err
	}
	return out, nil
}

func (s *Store) GetQuiz(ctx context.Context, id string) (domain.Quiz, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+quizColumns+` FROM quizzes WHERE id = ?`, id)
	quiz, err := scanQuiz(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return quiz, err
}

func (s *Store) ListQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+quizColumns+` FROM quizzes ORDER BY rowid`)
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
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO questions (`+questionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ID, q.QuizID, q.QuestionText, q.OptionA, q.OptionB, q.OptionC, q.OptionD, q.CorrectAnswer, q.Order)
	if err != nil {
		return domain.Question{}, err
	}
	return q, nil
}

func (s *Store) GetQuestion(ctx context.Context, id string) (domain.Question, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+questionColumns+` FROM questions WHERE id = ?`, id)
	q, err := scanQuestion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return q, err
}

func (s *Store) ListQuestions(ctx context.Context, quizID string) ([]domain.Question, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE quiz_id = ? ORDER BY "order", rowid`, quizID)
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
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO quiz_sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID, session.QuizID, session.Pin, session.HostID, string(session.Status),
		session.CurrentQuestionIndex, formatTimePtr(session.StartedAt), formatTimePtr(session.EndedAt))
	if err != nil {
		if isUniqueViolation(err, "quiz_sessions.pin") {
			return domain.QuizSession{}, domain.ErrPinTaken
		}
		return domain.QuizSession{}, err
	}
	return session, nil
}

func (s *Store) GetSession(ctx context.Context, id string) (domain.QuizSession, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM quiz_sessions WHERE id = ?`, id)
	return sessionOrNotFound(scanSession(row))
}

func (s *Store) GetSessionByPin(ctx context.Context, pin string) (domain.QuizSession, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM quiz_sessions WHERE pin = ? ORDER BY rowid LIMIT 1`, pin)
	return sessionOrNotFound(scanSession(row))
}

func (s *Store) UpdateSession(ctx context.Context, session domain.QuizSession) (domain.QuizSession, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE quiz_sessions SET status = ?, current_question_index = ?, started_at = ?, ended_at = ?, host_id = ? WHERE id = ?`,
		string(session.Status), session.CurrentQuestionIndex, formatTimePtr(session.StartedAt),
		formatTimePtr(session.EndedAt), session.HostID, session.ID)
	if err != nil {
		return domain.QuizSession{}, err
	}
	if n, err := result.RowsAffected(); err != nil {
		return domain.QuizSession{}, err
	} else if n == 0 {
		return domain.QuizSession{}, domain.ErrSessionNotFound
	}
	return s.GetSession(ctx, session.ID)
}

func (s *Store) CreatePlayer(ctx context.Context, p domain.Player) (domain.Player, error) {
	if _, err := s.GetSession(ctx, p.SessionID); err != nil {
		return domain.Player{}, err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO players (`+playerColumns+`) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.SessionID, p.Name, p.Score, formatTime(p.JoinedAt))
	if err != nil {
		return domain.Player{}, err
	}
	return p, nil
}

func (s *Store) GetPlayer(ctx context.Context, id string) (domain.Player, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+playerColumns+` FROM players WHERE id = ?`, id)
	p, err := scanPlayer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Player{}, domain.ErrPlayerNotFound
	}
	return p, err
}

func (s *Store) ListSessionPlayers(ctx context.Context, sessionID string) ([]domain.Player, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+playerColumns+` FROM players WHERE session_id = ? ORDER BY score DESC, rowid`, sessionID)
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
	return s.updateScore(ctx, `UPDATE players SET score = ? WHERE id = ?`, score, id)
}

func (s *Store) AddPlayerScore(ctx context.Context, id string, delta int) (domain.Player, error) {
	return s.updateScore(ctx, `UPDATE players SET score = score + ? WHERE id = ?`, delta, id)
}

func (s *Store) updateScore(ctx context.Context, query string, value int, id string) (domain.Player, error) {
	result, err := s.db.ExecContext(ctx, query, value, id)
	if err != nil {
		return domain.Player{}, err
	}
	if n, err := result.RowsAffected(); err != nil {
		return domain.Player{}, err
	} else if n == 0 {
		return domain.Player{}, domain.ErrPlayerNotFound
	}
	return s.GetPlayer(ctx, id)
}

func (s *Store) CreateResponse(ctx context.Context, r domain.PlayerResponse) (domain.PlayerResponse, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO player_responses (`+responseColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.PlayerID, r.QuestionID, r.SelectedAnswer, r.IsCorrect, r.ResponseTime, formatTime(r.SubmittedAt))
	if err != nil {
		return domain.PlayerResponse{}, err
	}
	return r, nil
}

func (s *Store) HasResponse(ctx context.Context, playerID, questionID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM player_responses WHERE player_id = ? AND question_id = ?)`,
		playerID, questionID).Scan(&exists)
	return exists, err
}

func (s *Store) ListPlayerResponses(ctx context.Context, playerID string) ([]domain.PlayerResponse, error) {
	return s.listResponses(ctx, `player_id = ?`, playerID)
}

func (s *Store) ListQuestionResponses(ctx context.Context, questionID string) ([]domain.PlayerResponse, error) {
	return s.listResponses(ctx, `question_id = ?`, questionID)
}

func (s *Store) listResponses(ctx context.Context, where string, arg string) ([]domain.PlayerResponse, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+responseColumns+` FROM player_responses WHERE `+where+` ORDER BY rowid`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	responses := []domain.PlayerResponse{}
	for rows.Next() {
		r, err := scanResponse(rows)
		if err != nil {
			return nil, err
		}
		responses = append(responses, r)
	}
	return responses, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanQuiz(row scanner) (domain.Quiz, error) {
	var (
		q         domain.Quiz
		desc, by  sql.NullString
		createdAt string
	)
	if err := row.Scan(&q.ID, &q.Title, &desc, &q.TimePerQuestion, &by, &createdAt); err != nil {
		return domain.Quiz{}, err
	}
	q.Description = nullString(desc)
	q.CreatedBy = nullString(by)
	t, err := parseTime(createdAt)
	if err != nil {
		return domain.Quiz{}, err
	}
	q.CreatedAt = t
	return q, nil
}

func scanQuestion(row scanner) (domain.Question, error) {
	var (
		q    domain.Question
		c, d sql.NullString
	)
	if err := row.Scan(&q.ID, &q.QuizID, &q.QuestionText, &q.OptionA, &q.OptionB, &c, &d, &q.CorrectAnswer, &q.Order); err != nil {
		return domain.Question{}, err
	}
	q.OptionC = nullString(c)
	q.OptionD = nullString(d)
	return q, nil
}

func scanSession(row scanner) (domain.QuizSession, error) {
	var (
		s              domain.QuizSession
		host           sql.NullString
		status         string
		started, ended sql.NullString
	)
	if err := row.Scan(&s.ID, &s.QuizID, &s.Pin, &host, &status, &s.CurrentQuestionIndex, &started, &ended); err != nil {
		return domain.QuizSession{}, err
	}
	s.HostID = nullString(host)
	s.Status = domain.SessionStatus(status)
	var err error
	if s.StartedAt, err = parseNullTime(started); err != nil {
		return domain.QuizSession{}, err
	}
	if s.EndedAt, err = parseNullTime(ended); err != nil {
		return domain.QuizSession{}, err
	}
	return s, nil
}

func scanPlayer(row scanner) (domain.Player, error) {
	var (
		p      domain.Player
		joined string
	)
	if err := row.Scan(&p.ID, &p.SessionID, &p.Name, &p.Score, &joined); err != nil {
		return domain.Player{}, err
	}
	t, err := parseTime(joined)
	if err != nil {
		return domain.Player{}, err
	}
	p.JoinedAt = t
	return p, nil
}

func scanResponse(row scanner) (domain.PlayerResponse, error) {
	var (
		r         domain.PlayerResponse
		selected  sql.NullString
		rt        sql.NullInt64
		submitted string
	)
	if err := row.Scan(&r.ID, &r.PlayerID, &r.QuestionID, &selected, &r.IsCorrect, &rt, &submitted); err != nil {
		return domain.PlayerResponse{}, err
	}
	r.SelectedAnswer = nullString(selected)
	if rt.Valid {
		v := int(rt.Int64)
		r.ResponseTime = &v
	}
	t, err := parseTime(submitted)
	if err != nil {
		return domain.PlayerResponse{}, err
	}
	r.SubmittedAt = t
	return r, nil
}

func sessionOrNotFound(s domain.QuizSession, err error) (domain.QuizSession, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.QuizSession{}, domain.ErrSessionNotFound
	}
	return s, err
}

// isUniqueViolation reports a UNIQUE failure on column; the constraint
// code does not name the column, the message does.
func isUniqueViolation(err error, column string) bool {
	var serr *sqlitedriver.Error
	if !errors.As(err, &serr) || serr.Code() != sqlitelib.SQLITE_CONSTRAINT_UNIQUE {
		return false
	}
	return strings.Contains(serr.Error(), column)
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

// Times are stored as RFC 3339 text in UTC.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := formatTime(*t)
	return &v
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
