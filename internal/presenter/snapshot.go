// Package presenter derives everything the quiz views show from one
// snapshot of a session, its quiz and its players.
package presenter

import (
	"fmt"
	"math"
	"strings"

	"livequiz-service/internal/domain"
)

const podiumSize = 3

// Option is one answer choice as shown to players.
type Option struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

// QuestionView is a question without its answer key.
type QuestionView struct {
	ID           string   `json:"id"`
	QuestionText string   `json:"questionText"`
	Options      []Option `json:"options"`
}

// PodiumEntry is one of the top ranked players.
type PodiumEntry struct {
	Rank   int           `json:"rank"`
	Player domain.Player `json:"player"`
}

// Snapshot is the presentation state of a session at one point in time.
type Snapshot struct {
	Session         domain.QuizSession `json:"session"`
	QuizTitle       string             `json:"quizTitle"`
	TimePerQuestion int                `json:"timePerQuestion"`
	TotalQuestions  int                `json:"totalQuestions"`
	QuestionNumber  int                `json:"questionNumber"`
	IsLastQuestion  bool               `json:"isLastQuestion"`
	Progress        float64            `json:"progress"`
	CurrentQuestion *QuestionView      `json:"currentQuestion"`
	Players         []domain.Player    `json:"players"`
	Podium          []PodiumEntry      `json:"podium"`
	Winner          *domain.Player     `json:"winner"`
	AverageScore    int                `json:"averageScore"`
}

// Build derives a Snapshot. players must already be in leaderboard order.
func Build(session domain.QuizSession, quiz domain.QuizWithQuestions, players []domain.Player) Snapshot {
	if players == nil {
		players = []domain.Player{}
	}
	total := len(quiz.Questions)
	snap := Snapshot{
		Session:         session,
		QuizTitle:       quiz.Title,
		TimePerQuestion: quiz.TimePerQuestion,
		TotalQuestions:  total,
		QuestionNumber:  session.CurrentQuestionIndex + 1,
		IsLastQuestion:  session.CurrentQuestionIndex+1 >= total,
		Progress:        Progress(session.CurrentQuestionIndex, total),
		Players:         players,
		Podium:          Podium(players),
		AverageScore:    AverageScore(players),
	}
	if session.Status == domain.StatusActive {
		snap.CurrentQuestion = CurrentQuestion(quiz, session.CurrentQuestionIndex)
	}
	if len(players) > 0 {
		winner := players[0]
		snap.Winner = &winner
	}
	return snap
}

// Progress is the share of questions reached, in percent.
func Progress(index, total int) float64 {
	if total <= 0 {
		return 0
	}
	p := float64(index+1) / float64(total) * 100
	return math.Min(p, 100)
}

// Podium returns up to the top three players with their ranks.
func Podium(players []domain.Player) []PodiumEntry {
	n := min(len(players), podiumSize)
	out := make([]PodiumEntry, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, PodiumEntry{Rank: i + 1, Player: players[i]})
	}
	return out
}

// AverageScore is the rounded mean score, 0 without players.
func AverageScore(players []domain.Player) int {
	if len(players) == 0 {
		return 0
	}
	sum := 0
	for _, p := range players {
		sum += p.Score
	}
	return int(math.Floor(float64(sum)/float64(len(players)) + 0.5))
}

// CurrentQuestion returns the question at index, or nil past the end.
func CurrentQuestion(quiz domain.QuizWithQuestions, index int) *QuestionView {
	if index < 0 || index >= len(quiz.Questions) {
		return nil
	}
	q := quiz.Questions[index]
	view := &QuestionView{
		ID:           q.ID,
		QuestionText: q.QuestionText,
		Options: []Option{
			{Key: domain.AnswerA, Text: q.OptionA},
			{Key: domain.AnswerB, Text: q.OptionB},
		},
	}
	if q.OptionC != nil {
		view.Options = append(view.Options, Option{Key: domain.AnswerC, Text: *q.OptionC})
	}
	if q.OptionD != nil {
		view.Options = append(view.Options, Option{Key: domain.AnswerD, Text: *q.OptionD})
	}
	return view
}

// Signature identifies the observable state of a snapshot; two snapshots
// with equal signatures render the same.
func (s Snapshot) Signature() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%d|%v|%d", s.Session.Status, s.Session.CurrentQuestionIndex, s.Session.EndedAt != nil, s.TotalQuestions)
	for _, p := range s.Players {
		fmt.Fprintf(&b, "|%s:%s:%d", p.ID, p.Name, p.Score)
	}
	return b.String()
}
