package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"studyhub-contest-service/internal/app"
	"studyhub-contest-service/internal/domain"
	"studyhub-contest-service/internal/infra/memory"
)

// countingLoader counts GetByIDs round trips to the backing bank.
type countingLoader struct {
	app.QuestionBank

	mu    sync.Mutex
	calls int
}

func (l *countingLoader) GetByIDs(ctx context.Context, ids []string) (map[string]domain.Question, error) {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
	return l.QuestionBank.GetByIDs(ctx, ids)
}

func (l *countingLoader) callCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func sampleQuestion(id string) domain.Question {
	return domain.Question{
		ID:            id,
		Text:          "2 + 2 = ?",
		Options:       []string{"3", "4", "5", "6"},
		CorrectOption: 1,
		Explanation:   "basic addition",
		Subject:       "math",
		Topic:         "arithmetic",
		Difficulty:    domain.DifficultyEasy,
		CreatedAt:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestQuestionBankCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)
	loader := &countingLoader{
		QuestionBank: memory.NewStaticQuestionBank([]domain.Question{
			sampleQuestion("q1"),
			sampleQuestion("q2"),
		}),
	}
	bank := NewQuestionBank(client, loader, time.Minute)

	first, err := bank.GetByIDs(context.Background(), []string{"q1", "q2"})
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if len(first) != 2 || loader.callCount() != 1 {
		t.Fatalf("expected one loader hit, got %d (result %d)", loader.callCount(), len(first))
	}
	if !mr.Exists("bank:question:q1") {
		t.Fatalf("expected question cached in redis")
	}

	second, err := bank.GetByIDs(context.Background(), []string{"q1", "q2"})
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if loader.callCount() != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.callCount())
	}
	got := second["q1"]
	if got.CorrectOption != 1 || got.Explanation != "basic addition" || len(got.Options) != 4 {
		t.Fatalf("cached question lost fields: %+v", got)
	}
}

func TestQuestionBankRefillsAfterExpiry(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)
	loader := &countingLoader{
		QuestionBank: memory.NewStaticQuestionBank([]domain.Question{sampleQuestion("q1")}),
	}
	bank := NewQuestionBank(client, loader, time.Minute)

	if _, err := bank.GetByIDs(context.Background(), []string{"q1"}); err != nil {
		t.Fatalf("fill: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	if _, err := bank.GetByIDs(context.Background(), []string{"q1"}); err != nil {
		t.Fatalf("refill: %v", err)
	}
	if loader.callCount() != 2 {
		t.Fatalf("expected reload after expiry, loader calls %d", loader.callCount())
	}
}

func TestQuestionBankSurvivesRedisOutage(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}

	client := newClient(mr)
	loader := &countingLoader{
		QuestionBank: memory.NewStaticQuestionBank([]domain.Question{sampleQuestion("q1")}),
	}
	bank := NewQuestionBank(client, loader, time.Minute)

	mr.Close()

	got, err := bank.GetByIDs(context.Background(), []string{"q1"})
	if err != nil {
		t.Fatalf("fetch with redis down: %v", err)
	}
	if len(got) != 1 || loader.callCount() != 1 {
		t.Fatalf("expected loader fallback, got %d results, %d calls", len(got), loader.callCount())
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
