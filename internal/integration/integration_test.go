package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"studyhub-contest-service/internal/app"
	"studyhub-contest-service/internal/domain"
	pgstore "studyhub-contest-service/internal/infra/postgres"
	pgmigrations "studyhub-contest-service/internal/infra/postgres/migrations"
	infraredis "studyhub-contest-service/internal/infra/redis"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestContestLifecycleEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedDatabase(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(pgURL)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	events := redisClient.Subscribe(ctx, infraredis.EventsChannel)
	defer events.Close()
	if _, err := events.Receive(ctx); err != nil {
		t.Fatalf("subscribe events: %v", err)
	}

	clock := &testClock{now: time.Now().UTC().Truncate(time.Second)}
	bank := infraredis.NewQuestionBank(redisClient, pgstore.NewQuestionBank(pool), 5*time.Minute)
	service := app.NewContestServiceWithClock(
		pgstore.NewContestRepository(db),
		pgstore.NewRegistrationRepository(db),
		pgstore.NewAttemptRepository(db),
		bank,
		pgstore.NewUserDirectory(db),
		infraredis.NewNotifier(redisClient),
		clock.Now,
	)

	generated, err := service.CreateContest(ctx, app.GenerateSpec{
		Title:         "Integration Mock",
		Difficulty:    domain.DifficultyMedium,
		StartTime:     clock.Now().Add(time.Hour),
		EndTime:       clock.Now().Add(2 * time.Hour),
		QuestionCount: 10,
		CreatedBy:     "organizer",
	})
	if err != nil {
		t.Fatalf("create contest: %v", err)
	}
	contestID := generated.Contest.ID
	if len(generated.Questions) != 10 || generated.TotalPoints != 50 {
		t.Fatalf("unexpected generation: %d questions, %d points", len(generated.Questions), generated.TotalPoints)
	}
	waitForEvent(t, events, "contest.created")

	for _, user := range []string{"alice", "bob"} {
		if err := service.Register(ctx, contestID, user, false); err != nil {
			t.Fatalf("register %s: %v", user, err)
		}
	}
	clock.Advance(time.Hour + time.Minute)

	started, err := service.StartAttempt(ctx, contestID, "alice")
	if err != nil {
		t.Fatalf("start alice: %v", err)
	}
	for _, question := range started.Questions {
		if err := saveCorrect(ctx, service, started.AttemptID, question.ID); err != nil {
			t.Fatalf("answer %s: %v", question.ID, err)
		}
	}
	timeSpent := 600
	submitted, err := service.Submit(ctx, started.AttemptID, "alice", &timeSpent, false)
	if err != nil {
		t.Fatalf("submit alice: %v", err)
	}
	if submitted.Score != 50 || submitted.CorrectAnswers != 10 {
		t.Fatalf("unexpected score: %+v", submitted)
	}
	waitForEvent(t, events, "attempt.completed")

	// Bob starts but never submits; the sweep force-completes him after the
	// window closes.
	bobStart, err := service.StartAttempt(ctx, contestID, "bob")
	if err != nil {
		t.Fatalf("start bob: %v", err)
	}
	clock.Advance(2 * time.Hour)

	swept, err := service.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if swept != 1 {
		t.Fatalf("expected 1 swept attempt, got %d", swept)
	}
	bobResults, err := service.Results(ctx, bobStart.AttemptID, "bob")
	if err != nil {
		t.Fatalf("bob results: %v", err)
	}
	if bobResults.Score != 0 {
		t.Fatalf("expected zero score for unanswered attempt, got %d", bobResults.Score)
	}

	board, err := service.Rankings(ctx, contestID)
	if err != nil {
		t.Fatalf("rankings: %v", err)
	}
	if len(board.Entries) != 2 {
		t.Fatalf("expected 2 leaderboard entries, got %d", len(board.Entries))
	}
	top := board.Entries[0]
	if top.UserID != "alice" || top.Rank != 1 || top.Score != 50 || top.Name != "Alice" {
		t.Fatalf("unexpected leader: %+v", top)
	}
	if board.Entries[1].UserID != "bob" || board.Entries[1].Rank != 2 {
		t.Fatalf("unexpected runner-up: %+v", board.Entries[1])
	}
}

func saveCorrect(ctx context.Context, service *app.ContestService, attemptID, questionID string) error {
	// Seeded bank rows all use option index 1 as the answer key.
	_, err := service.SaveAnswer(ctx, attemptID, "alice", questionID, 1)
	return err
}

func waitForEvent(t *testing.T, sub *goredis.PubSub, eventType string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case msg := <-sub.Channel():
			var event app.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				t.Fatalf("decode event: %v", err)
			}
			if event.Type == eventType {
				return
			}
		case <-deadline:
			t.Fatalf("no %s event within deadline", eventType)
		}
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "contest", "POSTGRES_PASSWORD": "contestpass", "POSTGRES_DB": "contestdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://contest:contestpass@%s:%s/contestdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

// seedDatabase runs the contest migrations, then provisions the external
// collaborators this subsystem reads from: the question bank and the user
// directory.
func seedDatabase(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	const externalTables = `
CREATE TABLE IF NOT EXISTS bank_questions (
	id TEXT PRIMARY KEY,
	text TEXT NOT NULL,
	options JSONB NOT NULL,
	correct_option INT NOT NULL,
	explanation TEXT NOT NULL DEFAULT '',
	subject TEXT NOT NULL DEFAULT '',
	topic TEXT NOT NULL DEFAULT '',
	difficulty TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	institution TEXT NOT NULL DEFAULT ''
);`
	if _, err := db.ExecContext(ctx, externalTables); err != nil {
		t.Fatalf("create external tables: %v", err)
	}

	options, err := json.Marshal([]string{"a", "b", "c", "d"})
	if err != nil {
		t.Fatalf("marshal options: %v", err)
	}
	base := time.Now().UTC().Add(-24 * time.Hour)
	for _, tier := range []domain.Difficulty{domain.DifficultyEasy, domain.DifficultyMedium, domain.DifficultyHard} {
		for i := 0; i < 12; i++ {
			id := fmt.Sprintf("%s-%d", tier, i)
			_, err := db.ExecContext(ctx,
				`INSERT INTO bank_questions (id, text, options, correct_option, explanation, subject, topic, difficulty, created_at)
				 VALUES (?, ?, ?::jsonb, ?, ?, ?, ?, ?, ?)`,
				id, "pick the second option", string(options), 1, "option b is right", "math", "algebra", string(tier), base.Add(time.Duration(i)*time.Minute))
			if err != nil {
				t.Fatalf("insert question %s: %v", id, err)
			}
		}
	}

	seedUsers := map[string]string{"alice": "Alice", "bob": "Bob"}
	for id, name := range seedUsers {
		if _, err := db.ExecContext(ctx,
			`INSERT INTO users (id, name, institution) VALUES (?, ?, ?)`, id, name, "MIT"); err != nil {
			t.Fatalf("insert user %s: %v", id, err)
		}
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
