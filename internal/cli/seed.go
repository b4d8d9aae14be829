package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"livequiz-service/internal/client"
	"livequiz-service/internal/domain"
)

// quizFile is the YAML layout accepted by the seed command.
type quizFile struct {
	Title           string             `yaml:"title"`
	Description     string             `yaml:"description"`
	TimePerQuestion int                `yaml:"timePerQuestion"`
	CreatedBy       string             `yaml:"createdBy"`
	Questions       []quizFileQuestion `yaml:"questions"`
}

type quizFileQuestion struct {
	Text    string   `yaml:"text"`
	Options []string `yaml:"options"`
	Answer  string   `yaml:"answer"`
}

func (f quizFile) toNewQuiz() (domain.NewQuiz, error) {
	in := domain.NewQuiz{
		Title:           f.Title,
		Description:     &f.Description,
		TimePerQuestion: f.TimePerQuestion,
		CreatedBy:       &f.CreatedBy,
	}
	for i, q := range f.Questions {
		if len(q.Options) < 2 || len(q.Options) > 4 {
			return domain.NewQuiz{}, fmt.Errorf("question %d: need 2 to 4 options, got %d", i+1, len(q.Options))
		}
		nq := domain.NewQuestion{
			QuestionText:  q.Text,
			OptionA:       q.Options[0],
			OptionB:       q.Options[1],
			CorrectAnswer: q.Answer,
		}
		if len(q.Options) > 2 {
			nq.OptionC = &q.Options[2]
		}
		if len(q.Options) > 3 {
			nq.OptionD = &q.Options[3]
		}
		in.Questions = append(in.Questions, nq)
	}
	return in, nil
}

func loadQuizFile(path string) (domain.NewQuiz, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.NewQuiz{}, err
	}
	var f quizFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return domain.NewQuiz{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return f.toNewQuiz()
}

// NewSeedCmd creates a quiz from a YAML file on a running server and opens a session for it.
func NewSeedCmd(port *string) *cobra.Command {
	var (
		serverURL string
		noSession bool
	)
	cmd := &cobra.Command{
		Use:   "seed <quiz.yaml>",
		Short: "Create a quiz from a YAML file and open a session for it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := loadQuizFile(args[0])
			if err != nil {
				return err
			}
			c := client.New(resolveServer(serverURL, *port), nil)
			quiz, err := c.CreateQuiz(cmd.Context(), in)
			if err != nil {
				return fmt.Errorf("create quiz: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "quiz %s created with %d questions\n", quiz.ID, len(quiz.Questions))
			if noSession {
				return nil
			}

			session, err := c.CreateSession(cmd.Context(), domain.NewSession{QuizID: quiz.ID})
			if err != nil {
				return fmt.Errorf("create session: %w", err)
			}
			fmt.Fprintf(out, "session %s waiting for players, PIN %s\n", session.ID, session.Pin)
			return nil
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "", "base URL of the quiz server (default http://localhost:<port>)")
	cmd.Flags().BoolVar(&noSession, "no-session", false, "only create the quiz")
	return cmd
}

func resolveServer(serverURL, port string) string {
	if serverURL != "" {
		return serverURL
	}
	return "http://localhost:" + port
}
