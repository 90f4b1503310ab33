package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"studyhub-contest-service/internal/app"
	"studyhub-contest-service/internal/config"
	"studyhub-contest-service/internal/domain"
	"studyhub-contest-service/internal/infra/memory"
	infrapg "studyhub-contest-service/internal/infra/postgres"
	infraredis "studyhub-contest-service/internal/infra/redis"
	transport "studyhub-contest-service/internal/transport/http"
)

// NewServeCmd builds the CLI subcommand to start the server.
func NewServeCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the contest server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	service, cleanup, err := buildService(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	sweeper := app.NewSweeper(service, config.Duration(cfg.Sweep.Interval, time.Minute))
	sweeper.Start(sweepCtx)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      transport.NewServer(service).Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		slog.Info("starting contest service", "port", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start server", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		slog.Info("shutting down server")
	case <-ctx.Done():
		slog.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildService wires repositories from config: postgres-backed when a URL is
// configured, in-memory otherwise; redis decorates the bank and carries
// notifications when an address is configured.
func buildService(ctx context.Context, cfg config.Config) (*app.ContestService, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		cleanups = append(cleanups, func() { _ = redisClient.Close() })
	}
	bankTTL := config.Duration(cfg.Bank.TTL, 10*time.Minute)

	var (
		contests      app.ContestRepository
		registrations app.RegistrationRepository
		attempts      app.AttemptRepository
		bank          app.QuestionBank
		users         app.UserDirectory
	)

	if cfg.Postgres.URL != "" {
		db := openBunDB(cfg.Postgres.URL)
		cleanups = append(cleanups, func() { _ = db.Close() })

		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		cleanups = append(cleanups, pool.Close)

		contests = infrapg.NewContestRepository(db)
		registrations = infrapg.NewRegistrationRepository(db)
		attempts = infrapg.NewAttemptRepository(db)
		bank = infrapg.NewQuestionBank(pool)
		users = infrapg.NewUserDirectory(db)
	} else {
		slog.Warn("no postgres url configured, using in-memory stores with sample bank")
		memContests := memory.NewContestRepository()
		contests = memContests
		registrations = memory.NewRegistrationRepository()
		attempts = memory.NewAttemptRepository(memContests)
		bank = memory.NewStaticQuestionBank(sampleBank())
		users = memory.NewStaticUserDirectory(nil)
	}

	if redisClient != nil {
		bank = infraredis.NewQuestionBank(redisClient, bank, bankTTL)
	} else {
		bank = memory.NewCachedBank(bank, bankTTL)
	}

	var notifier app.Notifier
	if redisClient != nil {
		notifier = infraredis.NewNotifier(redisClient)
	} else {
		notifier = memory.NewNotifier()
	}

	return app.NewContestService(contests, registrations, attempts, bank, users, notifier), cleanup, nil
}

// sampleBank provides a tiny catalog so the service runs without a database.
func sampleBank() []domain.Question {
	base := time.Now()
	tiers := []domain.Difficulty{domain.DifficultyEasy, domain.DifficultyMedium, domain.DifficultyHard}
	var questions []domain.Question
	for i, tier := range tiers {
		for j := 0; j < 10; j++ {
			questions = append(questions, domain.Question{
				ID:            string(tier) + "-q" + string(rune('0'+j)),
				Text:          "Sample " + string(tier) + " question",
				Options:       []string{"A", "B", "C", "D"},
				CorrectOption: j % 4,
				Explanation:   "Sample explanation",
				Subject:       "general",
				Topic:         "sample",
				Difficulty:    tier,
				CreatedAt:     base.Add(-time.Duration(i*10+j) * time.Minute),
			})
		}
	}
	return questions
}
