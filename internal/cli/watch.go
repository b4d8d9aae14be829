package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"livequiz-service/internal/client"
	"livequiz-service/internal/config"
	"livequiz-service/internal/domain"
	"livequiz-service/internal/poller"
	"livequiz-service/internal/presenter"
)

// NewWatchCmd follows a session from the terminal, printing the leaderboard
// whenever it changes.
func NewWatchCmd(configPath, port *string) *cobra.Command {
	var (
		serverURL string
		interval  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch <pin|session-id>",
		Short: "Poll a session and print its leaderboard as it changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if interval <= 0 {
				cfg, err := config.Load(*configPath)
				if err != nil {
					return err
				}
				interval = config.TTLDuration(cfg.Game.PollInterval, poller.DefaultInterval)
			}

			c := client.New(resolveServer(serverURL, *port), nil)
			sessionID := args[0]
			if domain.ValidatePin(sessionID) == nil {
				session, err := c.GetSessionByPin(cmd.Context(), sessionID)
				if err != nil {
					return err
				}
				sessionID = session.ID
			}

			out := cmd.OutOrStdout()
			return c.Watch(cmd.Context(), sessionID, interval, func(s presenter.Snapshot) error {
				printSnapshot(out, s)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "", "base URL of the quiz server (default http://localhost:<port>)")
	cmd.Flags().DurationVar(&interval, "interval", 0, "poll interval (default game.pollInterval)")
	return cmd
}

func printSnapshot(w io.Writer, s presenter.Snapshot) {
	switch s.Session.Status {
	case domain.StatusWaiting:
		fmt.Fprintf(w, "[%s] PIN %s: waiting, %d players joined\n", s.QuizTitle, s.Session.Pin, len(s.Players))
	case domain.StatusActive:
		fmt.Fprintf(w, "[%s] question %d of %d (%.0f%%)\n", s.QuizTitle, s.QuestionNumber, s.TotalQuestions, s.Progress)
	case domain.StatusCompleted:
		fmt.Fprintf(w, "[%s] finished, average score %d\n", s.QuizTitle, s.AverageScore)
		for _, e := range s.Podium {
			fmt.Fprintf(w, "  #%d %s %d\n", e.Rank, e.Player.Name, e.Player.Score)
		}
		return
	}
	for i, p := range s.Players {
		fmt.Fprintf(w, "  %2d. %-20s %5d\n", i+1, p.Name, p.Score)
	}
}
