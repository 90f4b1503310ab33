package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"studyhub-contest-service/internal/app"
	"studyhub-contest-service/internal/domain"
)

// QuestionBank caches bank questions in Redis as JSON values and falls back
// to a loader on cache miss. Scoring and the expiry sweep hit GetByIDs for
// every completion, so the answer key is served from cache after the first
// fill.
type QuestionBank struct {
	client *redis.Client
	loader app.QuestionBank
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuestionBank(client *redis.Client, loader app.QuestionBank, ttl time.Duration) *QuestionBank {
	return &QuestionBank{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// ListByTier is order-sensitive and always delegates to the loader.
func (b *QuestionBank) ListByTier(ctx context.Context, tier domain.Difficulty, filter domain.BankFilter, limit int) ([]domain.Question, error) {
	return b.loader.ListByTier(ctx, tier, filter, limit)
}

func (b *QuestionBank) GetByIDs(ctx context.Context, ids []string) (map[string]domain.Question, error) {
	result := make(map[string]domain.Question, len(ids))
	missing := ids

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = b.key(id)
	}
	if len(keys) > 0 {
		if values, err := b.client.MGet(ctx, keys...).Result(); err == nil {
			missing = missing[:0:0]
			for i, value := range values {
				raw, ok := value.(string)
				if !ok || raw == "" {
					missing = append(missing, ids[i])
					continue
				}
				var question cachedQuestion
				if err := json.Unmarshal([]byte(raw), &question); err != nil {
					missing = append(missing, ids[i])
					continue
				}
				result[ids[i]] = question.toDomain()
			}
		}
	}
	if len(missing) == 0 {
		return result, nil
	}

	loaded, err, _ := b.sf.Do(strings.Join(missing, ","), func() (interface{}, error) {
		fetched, err := b.loader.GetByIDs(ctx, missing)
		if err != nil {
			return nil, err
		}
		ttl := b.ttlWithJitter()
		pipe := b.client.Pipeline()
		for id, question := range fetched {
			raw, err := json.Marshal(fromDomain(question))
			if err != nil {
				continue
			}
			pipe.Set(ctx, b.key(id), raw, ttl)
		}
		_, _ = pipe.Exec(ctx)
		return fetched, nil
	})
	if err != nil {
		return nil, err
	}
	for id, question := range loaded.(map[string]domain.Question) {
		result[id] = question
	}
	return result, nil
}

func (b *QuestionBank) key(id string) string {
	return "bank:question:" + id
}

func (b *QuestionBank) ttlWithJitter() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	jitterMax := int64(b.ttl) / 10
	return b.ttl + time.Duration(b.rnd.Int63n(jitterMax+1))
}

// cachedQuestion is the wire form: unlike the API serialization, the cache
// must retain the correct option and explanation.
type cachedQuestion struct {
	ID            string            `json:"id"`
	Text          string            `json:"text"`
	Options       []string          `json:"options"`
	CorrectOption int               `json:"correctOption"`
	Explanation   string            `json:"explanation"`
	Subject       string            `json:"subject"`
	Topic         string            `json:"topic"`
	Difficulty    domain.Difficulty `json:"difficulty"`
	CreatedAt     time.Time         `json:"createdAt"`
}

func fromDomain(question domain.Question) cachedQuestion {
	return cachedQuestion(question)
}

func (q cachedQuestion) toDomain() domain.Question {
	return domain.Question(q)
}
