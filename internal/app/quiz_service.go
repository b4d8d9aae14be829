package app

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"livequiz-service/internal/domain"
)

const (
	// DefaultPointsPerCorrect is the flat award for a correct answer.
	DefaultPointsPerCorrect = 100
	// DefaultAutoAdvanceDelay is how long the leaderboard shows before moving on.
	DefaultAutoAdvanceDelay = 5 * time.Second

	maxPinAttempts = 10
)

// QuizService contains the quiz, session lifecycle and scoring use cases.
type QuizService struct {
	store    Store
	quizzes  QuizRepository
	pins     PinIndex
	locks    *keyedMutex
	advances *advanceTimers

	now              func() time.Time
	newID            func() string
	newPin           func() string
	pointsPerCorrect int
	autoAdvanceDelay time.Duration
}

// Option customizes a QuizService.
type Option func(*QuizService)

// WithClock replaces time.Now, mainly for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(s *QuizService) { s.now = now }
}

// WithPinGenerator replaces the random 6 digit pin source.
func WithPinGenerator(gen func() string) Option {
	return func(s *QuizService) { s.newPin = gen }
}

// WithPointsPerCorrect sets the award for a correct answer.
func WithPointsPerCorrect(points int) Option {
	return func(s *QuizService) {
		if points > 0 {
			s.pointsPerCorrect = points
		}
	}
}

// WithAutoAdvanceDelay sets the default delay used by ScheduleAdvance.
func WithAutoAdvanceDelay(d time.Duration) Option {
	return func(s *QuizService) {
		if d > 0 {
			s.autoAdvanceDelay = d
		}
	}
}

// NewQuizService wires the use cases. A nil quizzes reads quiz content
// straight from the store.
func NewQuizService(store Store, quizzes QuizRepository, pins PinIndex, opts ...Option) *QuizService {
	if quizzes == nil {
		quizzes = storeQuizzes{store: store}
	}
	s := &QuizService{
		store:            store,
		quizzes:          quizzes,
		pins:             pins,
		locks:            newKeyedMutex(),
		advances:         newAdvanceTimers(),
		now:              time.Now,
		newID:            uuid.NewString,
		newPin:           RandomPins(),
		pointsPerCorrect: DefaultPointsPerCorrect,
		autoAdvanceDelay: DefaultAutoAdvanceDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close stops pending auto-advance timers.
func (s *QuizService) Close() {
	s.advances.stopAll()
}

// ListQuizzes returns every quiz in creation order.
func (s *QuizService) ListQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	return s.store.ListQuizzes(ctx)
}

// GetQuiz returns a quiz with its ordered questions.
func (s *QuizService) GetQuiz(ctx context.Context, quizID string) (domain.QuizWithQuestions, error) {
	return s.quizzes.GetQuizWithQuestions(ctx, quizID)
}

// CreateQuiz stores a quiz and, when given, its questions in input order.
// Questions without an explicit order get their 1-based position.
func (s *QuizService) CreateQuiz(ctx context.Context, in domain.NewQuiz) (domain.QuizWithQuestions, error) {
	in.Title = strings.TrimSpace(in.Title)
	for i := range in.Questions {
		normalizeQuestion(&in.Questions[i])
	}
	if err := domain.Validate(in); err != nil {
		return domain.QuizWithQuestions{}, err
	}
	for i := range in.Questions {
		if err := checkAnswerOffered(in.Questions[i], fmt.Sprintf("questions[%d].", i)); err != nil {
			return domain.QuizWithQuestions{}, err
		}
	}

	tpq := in.TimePerQuestion
	if tpq == 0 {
		tpq = domain.DefaultTimePerQuestion
	}
	quiz := domain.Quiz{
		ID:              s.newID(),
		Title:           in.Title,
		Description:     emptyToNil(in.Description),
		TimePerQuestion: tpq,
		CreatedBy:       emptyToNil(in.CreatedBy),
		CreatedAt:       s.now(),
	}
	questions := make([]domain.Question, 0, len(in.Questions))
	for i, nq := range in.Questions {
		if nq.Order == 0 {
			nq.Order = i + 1
		}
		questions = append(questions, s.buildQuestion(quiz.ID, nq))
	}

	out, err := s.store.CreateQuizWithQuestions(ctx, quiz, questions)
	if err != nil {
		return domain.QuizWithQuestions{}, fmt.Errorf("create quiz: %w", err)
	}
	sortQuestions(out.Questions)
	return out, nil
}

// AddQuestion appends a question to an existing quiz. A zero order places it last.
func (s *QuizService) AddQuestion(ctx context.Context, quizID string, in domain.NewQuestion) (domain.Question, error) {
	normalizeQuestion(&in)
	if err := domain.Validate(in); err != nil {
		return domain.Question{}, err
	}
	if err := checkAnswerOffered(in, ""); err != nil {
		return domain.Question{}, err
	}
	if _, err := s.store.GetQuiz(ctx, quizID); err != nil {
		return domain.Question{}, err
	}
	if in.Order == 0 {
		existing, err := s.store.ListQuestions(ctx, quizID)
		if err != nil {
			return domain.Question{}, err
		}
		in.Order = len(existing) + 1
	}

	q, err := s.store.CreateQuestion(ctx, s.buildQuestion(quizID, in))
	if err != nil {
		return domain.Question{}, fmt.Errorf("create question: %w", err)
	}
	s.quizzes.Invalidate(ctx, quizID)
	return q, nil
}

func (s *QuizService) buildQuestion(quizID string, in domain.NewQuestion) domain.Question {
	return domain.Question{
		ID:            s.newID(),
		QuizID:        quizID,
		QuestionText:  in.QuestionText,
		OptionA:       in.OptionA,
		OptionB:       in.OptionB,
		OptionC:       in.OptionC,
		OptionD:       in.OptionD,
		CorrectAnswer: in.CorrectAnswer,
		Order:         in.Order,
	}
}

func normalizeQuestion(q *domain.NewQuestion) {
	q.QuestionText = strings.TrimSpace(q.QuestionText)
	q.OptionA = strings.TrimSpace(q.OptionA)
	q.OptionB = strings.TrimSpace(q.OptionB)
	q.OptionC = emptyToNil(q.OptionC)
	q.OptionD = emptyToNil(q.OptionD)
	q.CorrectAnswer = strings.ToUpper(strings.TrimSpace(q.CorrectAnswer))
}

// checkAnswerOffered rejects a correct answer pointing at a missing option.
func checkAnswerOffered(q domain.NewQuestion, prefix string) error {
	offered := domain.Question{OptionA: q.OptionA, OptionB: q.OptionB, OptionC: q.OptionC, OptionD: q.OptionD}
	if !offered.Offers(q.CorrectAnswer) {
		return domain.NewValidationError(prefix+"correctAnswer", "must name an option the question offers")
	}
	return nil
}

func emptyToNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// RandomPins returns the default pin source, drawing pins in [100000, 999999].
func RandomPins() func() string {
	var mu sync.Mutex
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		return fmt.Sprintf("%06d", 100000+rnd.Intn(900000))
	}
}
