package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/leegarner/quizzer/internal/domain"
	"golang.org/x/sync/singleflight"
)

// DefinitionLoader fetches a quiz definition and its questions from the
// backing store.
type DefinitionLoader interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	QuestionsByQuiz(ctx context.Context, quizID string) ([]domain.Question, error)
}

// QuizCache caches quiz definitions with a TTL to avoid repeated store
// hits on every question render. Writes to a definition go through
// Invalidate.
type QuizCache struct {
	loader DefinitionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedDefinition
}

type cachedDefinition struct {
	quiz      domain.Quiz
	questions []domain.Question
	expiresAt time.Time
}

func NewQuizCache(loader DefinitionLoader, ttl time.Duration) *QuizCache {
	return &QuizCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedDefinition),
	}
}

func (c *QuizCache) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	entry, err := c.get(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	return entry.quiz, nil
}

func (c *QuizCache) QuestionsByQuiz(ctx context.Context, quizID string) ([]domain.Question, error) {
	entry, err := c.get(ctx, quizID)
	if err != nil {
		return nil, err
	}
	return entry.questions, nil
}

// Invalidate drops the cached entry so the next read hits the store.
func (c *QuizCache) Invalidate(_ context.Context, quizID string) error {
	c.mu.Lock()
	delete(c.cache, quizID)
	c.mu.Unlock()
	return nil
}

func (c *QuizCache) get(ctx context.Context, quizID string) (cachedDefinition, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[quizID]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(quizID, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[quizID]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry, nil
		}
		c.mu.RUnlock()

		quiz, err := c.loader.GetQuiz(ctx, quizID)
		if err != nil {
			return cachedDefinition{}, err
		}
		questions, err := c.loader.QuestionsByQuiz(ctx, quizID)
		if err != nil {
			return cachedDefinition{}, err
		}

		entry := cachedDefinition{
			quiz:      quiz,
			questions: questions,
			expiresAt: now.Add(c.ttlWithJitter()),
		}
		c.mu.Lock()
		c.cache[quizID] = entry
		c.mu.Unlock()
		return entry, nil
	})
	if err != nil {
		return cachedDefinition{}, err
	}
	return result.(cachedDefinition), nil
}

func (c *QuizCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
