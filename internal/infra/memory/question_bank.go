package memory

import (
	"context"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"studyhub-contest-service/internal/app"
	"studyhub-contest-service/internal/domain"
)

// StaticQuestionBank serves bank questions from an in-memory slice (tests
// and demos).
type StaticQuestionBank struct {
	questions []domain.Question
}

func NewStaticQuestionBank(questions []domain.Question) *StaticQuestionBank {
	return &StaticQuestionBank{questions: questions}
}

func (b *StaticQuestionBank) ListByTier(_ context.Context, tier domain.Difficulty, filter domain.BankFilter, limit int) ([]domain.Question, error) {
	matched := make([]domain.Question, 0, limit)
	for _, question := range b.questions {
		if question.Difficulty != tier {
			continue
		}
		if !matchesFilter(question, filter) {
			continue
		}
		matched = append(matched, question)
	}
	// Most recently created first, like the SQL loader.
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (b *StaticQuestionBank) GetByIDs(_ context.Context, ids []string) (map[string]domain.Question, error) {
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	result := make(map[string]domain.Question, len(ids))
	for _, question := range b.questions {
		if _, ok := wanted[question.ID]; ok {
			result[question.ID] = question
		}
	}
	return result, nil
}

func matchesFilter(question domain.Question, filter domain.BankFilter) bool {
	if len(filter.Subjects) > 0 && !containsString(filter.Subjects, question.Subject) {
		return false
	}
	if len(filter.Topics) > 0 && !containsString(filter.Topics, question.Topic) {
		return false
	}
	return true
}

func containsString(haystack []string, needle string) bool {
	for _, candidate := range haystack {
		if candidate == needle {
			return true
		}
	}
	return false
}

// CachedBank caches bank lookups with TTL to avoid repeated loader hits
// during scoring. Cache fills are deduplicated with singleflight.
type CachedBank struct {
	loader app.QuestionBank
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedQuestion
}

type cachedQuestion struct {
	question  domain.Question
	expiresAt time.Time
}

func NewCachedBank(loader app.QuestionBank, ttl time.Duration) *CachedBank {
	return &CachedBank{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedQuestion),
	}
}

// ListByTier is order-sensitive and uncached; it goes straight to the
// loader.
func (b *CachedBank) ListByTier(ctx context.Context, tier domain.Difficulty, filter domain.BankFilter, limit int) ([]domain.Question, error) {
	return b.loader.ListByTier(ctx, tier, filter, limit)
}

func (b *CachedBank) GetByIDs(ctx context.Context, ids []string) (map[string]domain.Question, error) {
	now := b.clock()
	result := make(map[string]domain.Question, len(ids))
	var missing []string

	b.mu.RLock()
	for _, id := range ids {
		if entry, ok := b.cache[id]; ok && entry.expiresAt.After(now) {
			result[id] = entry.question
		} else {
			missing = append(missing, id)
		}
	}
	b.mu.RUnlock()

	if len(missing) == 0 {
		return result, nil
	}

	loaded, err, _ := b.sf.Do(strings.Join(missing, ","), func() (interface{}, error) {
		return b.loader.GetByIDs(ctx, missing)
	})
	if err != nil {
		return nil, err
	}

	fetched := loaded.(map[string]domain.Question)
	b.mu.Lock()
	expiresAt := now.Add(b.ttlWithJitter())
	for id, question := range fetched {
		b.cache[id] = cachedQuestion{question: question, expiresAt: expiresAt}
		result[id] = question
	}
	b.mu.Unlock()
	return result, nil
}

func (b *CachedBank) ttlWithJitter() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(b.ttl) / 10
	return b.ttl + time.Duration(b.rnd.Int63n(jitterMax+1))
}
