package cli

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"livequiz-service/internal/app"
	"livequiz-service/internal/config"
	"livequiz-service/internal/infra/memory"
	"livequiz-service/internal/infra/postgres"
	infraredis "livequiz-service/internal/infra/redis"
	"livequiz-service/internal/infra/sqlite"
	"livequiz-service/internal/poller"
	transport "livequiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			portFlag := ""
			if cmd.Flags().Changed("port") || os.Getenv("PORT") != "" {
				portFlag = *port
			}
			return runServer(cmd.Context(), *configPath, portFlag)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	pinTTL := config.TTLDuration(cfg.Redis.TTL, 24*time.Hour)

	var (
		quizRepo app.QuizRepository
		pins     app.PinIndex
	)
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		quizRepo = infraredis.NewQuizRepository(redisClient, store, quizTTL)
		pins = infraredis.NewPinIndex(redisClient, pinTTL)
	} else {
		quizRepo = memory.NewQuizRepository(store, quizTTL)
		pins = memory.NewPinIndex()
	}

	service := app.NewQuizService(store, quizRepo, pins,
		app.WithPointsPerCorrect(cfg.Game.PointsPerCorrect),
		app.WithAutoAdvanceDelay(config.TTLDuration(cfg.Game.AutoAdvanceDelay, app.DefaultAutoAdvanceDelay)),
	)
	defer service.Close()

	streamInterval := config.TTLDuration(cfg.Server.StreamInterval, poller.DefaultInterval)
	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     transport.NewRouter(service, streamInterval),
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: snapshot streams stay open for a whole game.
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("starting quiz service on :%s (store=%s, redis=%t)", finalPort, cfg.Store.Driver, cfg.Redis.Addr != "")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// openStore connects the configured store driver. Postgres is migrated first.
func openStore(ctx context.Context, cfg config.Config) (app.Store, func(), error) {
	switch cfg.Store.Driver {
	case config.DriverSQLite:
		store, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	case config.DriverPostgres:
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return nil, nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewStore(pool), pool.Close, nil
	default:
		return memory.NewStore(), func() {}, nil
	}
}
