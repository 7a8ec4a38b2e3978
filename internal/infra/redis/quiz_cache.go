package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/leegarner/quizzer/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// DefinitionLoader fetches a quiz definition and its questions from the
// backing store.
type DefinitionLoader interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	QuestionsByQuiz(ctx context.Context, quizID string) ([]domain.Question, error)
}

// QuizCache caches quiz definitions in Redis and falls back to a loader on
// cache miss. Entries are stored as:
//
//	SET quiz:{quizID}:def       {quiz JSON}
//	SET quiz:{quizID}:questions {questions JSON}
//
// Definition writes call Invalidate, which deletes both keys.
type QuizCache struct {
	client *redis.Client
	loader DefinitionLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuizCache(client *redis.Client, loader DefinitionLoader, ttl time.Duration) *QuizCache {
	return &QuizCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuizCache) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	raw, err := c.client.Get(ctx, c.defKey(quizID)).Result()
	if err == nil {
		var quiz domain.Quiz
		if jsonErr := json.Unmarshal([]byte(raw), &quiz); jsonErr == nil {
			return quiz, nil
		}
	}
	quiz, _, err := c.fill(ctx, quizID)
	return quiz, err
}

func (c *QuizCache) QuestionsByQuiz(ctx context.Context, quizID string) ([]domain.Question, error) {
	raw, err := c.client.Get(ctx, c.questionsKey(quizID)).Result()
	if err == nil {
		var questions []domain.Question
		if jsonErr := json.Unmarshal([]byte(raw), &questions); jsonErr == nil {
			return questions, nil
		}
	}
	_, questions, err := c.fill(ctx, quizID)
	return questions, err
}

// Invalidate removes the cached entry so the next read reloads from the
// store.
func (c *QuizCache) Invalidate(ctx context.Context, quizID string) error {
	return c.client.Del(ctx, c.defKey(quizID), c.questionsKey(quizID)).Err()
}

type cachedDefinition struct {
	quiz      domain.Quiz
	questions []domain.Question
}

func (c *QuizCache) fill(ctx context.Context, quizID string) (domain.Quiz, []domain.Question, error) {
	result, err, _ := c.sf.Do(quizID, func() (interface{}, error) {
		quiz, err := c.loader.GetQuiz(ctx, quizID)
		if err != nil {
			return cachedDefinition{}, err
		}
		questions, err := c.loader.QuestionsByQuiz(ctx, quizID)
		if err != nil {
			return cachedDefinition{}, err
		}

		quizJSON, err := json.Marshal(quiz)
		if err != nil {
			return cachedDefinition{}, err
		}
		questionsJSON, err := json.Marshal(questions)
		if err != nil {
			return cachedDefinition{}, err
		}

		ttl := c.ttlWithJitter()
		pipe := c.client.Pipeline()
		pipe.Set(ctx, c.defKey(quizID), quizJSON, ttl)
		pipe.Set(ctx, c.questionsKey(quizID), questionsJSON, ttl)
		// cache write is best-effort; the loaded data is still returned
		_, _ = pipe.Exec(ctx)

		return cachedDefinition{quiz: quiz, questions: questions}, nil
	})
	if err != nil {
		return domain.Quiz{}, nil, err
	}
	entry := result.(cachedDefinition)
	return entry.quiz, entry.questions, nil
}

func (c *QuizCache) defKey(quizID string) string {
	return "quiz:" + quizID + ":def"
}

func (c *QuizCache) questionsKey(quizID string) string {
	return "quiz:" + quizID + ":questions"
}

func (c *QuizCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
