package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"kvizmajstor/internal/app"
	"kvizmajstor/internal/domain"
)

// QuizCache wraps a quiz repository with a Redis document cache so every
// instance of the service shares one warm copy of each quiz. Documents are
// stored as: SET quiz:{quizID}:doc {json} with a jittered TTL. Writes pass
// through to the backing repository and drop the cached document.
type QuizCache struct {
	app.QuizRepository

	client *redis.Client
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuizCache(client *redis.Client, backing app.QuizRepository, ttl time.Duration) *QuizCache {
	return &QuizCache{
		QuizRepository: backing,
		client:         client,
		ttl:            ttl,
		rnd:            rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuizCache) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	key := c.docKey(quizID)

	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var quiz domain.Quiz
		if err := json.Unmarshal(raw, &quiz); err == nil {
			return quiz, nil
		}
		// Unreadable cache entry; drop it and fall through to the loader.
		_ = c.client.Del(ctx, key).Err()
	}

	result, err, _ := c.sf.Do(quizID, func() (interface{}, error) {
		// Re-check in case another goroutine filled the cache.
		if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
			var quiz domain.Quiz
			if err := json.Unmarshal(raw, &quiz); err == nil {
				return quiz, nil
			}
		}

		quiz, err := c.QuizRepository.GetQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}

		if raw, err := json.Marshal(quiz); err == nil {
			_ = c.client.Set(ctx, key, raw, c.ttlWithJitter()).Err()
		}
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

func (c *QuizCache) SaveQuiz(ctx context.Context, quiz domain.Quiz) error {
	if err := c.QuizRepository.SaveQuiz(ctx, quiz); err != nil {
		return err
	}
	return c.invalidate(ctx, quiz.ID)
}

func (c *QuizCache) DeleteQuiz(ctx context.Context, quizID string) error {
	if err := c.QuizRepository.DeleteQuiz(ctx, quizID); err != nil {
		return err
	}
	return c.invalidate(ctx, quizID)
}

func (c *QuizCache) IncrementPlays(ctx context.Context, quizID string) error {
	if err := c.QuizRepository.IncrementPlays(ctx, quizID); err != nil {
		return err
	}
	return c.invalidate(ctx, quizID)
}

func (c *QuizCache) invalidate(ctx context.Context, quizID string) error {
	if err := c.client.Del(ctx, c.docKey(quizID)).Err(); err != nil {
		return fmt.Errorf("invalidate quiz cache: %w", err)
	}
	return nil
}

func (c *QuizCache) docKey(quizID string) string {
	return "quiz:" + quizID + ":doc"
}

func (c *QuizCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
