package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"livequiz-service/internal/domain"
)

// QuizLoader fetches quiz content from the backing store.
type QuizLoader interface {
	GetQuizWithQuestions(ctx context.Context, quizID string) (domain.QuizWithQuestions, error)
}

// storeIfCurrentScript writes the cached quiz only while the version key
// still holds the value read before loading.
var storeIfCurrentScript = redis.NewScript(`
local version = redis.call("GET", KEYS[2]) or "0"
if version ~= ARGV[1] then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
else
	redis.call("SET", KEYS[1], ARGV[2])
end
return 1
`)

// QuizRepository caches each quiz with its questions as one JSON value in
// Redis and falls back to the loader on a miss:
//
//	SET quiz:{quizID}:full <json> EX ttl
//	INCR quiz:{quizID}:version   (on invalidate)
//
// A load stores its result only if the version did not move while it ran.
// Redis errors degrade to a loader read rather than failing the request.
type QuizRepository struct {
	client *redis.Client
	loader QuizLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex
}

func NewQuizRepository(client *redis.Client, loader QuizLoader, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuizRepository) GetQuizWithQuestions(ctx context.Context, quizID string) (domain.QuizWithQuestions, error) {
	if quiz, ok := r.cached(ctx, quizID); ok {
		return quiz, nil
	}

	result, err, _ := r.sf.Do(quizID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if quiz, ok := r.cached(ctx, quizID); ok {
			return quiz, nil
		}

		version, versionErr := r.version(ctx, quizID)

		quiz, err := r.loader.GetQuizWithQuestions(ctx, quizID)
		if err != nil {
			return domain.QuizWithQuestions{}, err
		}
		if versionErr != nil {
			log.Printf("quiz cache version %s: %v", quizID, versionErr)
			return quiz, nil
		}

		data, err := json.Marshal(quiz)
		if err != nil {
			return domain.QuizWithQuestions{}, err
		}
		keys := []string{r.key(quizID), r.versionKey(quizID)}
		ttl := r.ttlWithJitter().Milliseconds()
		if err := storeIfCurrentScript.Run(ctx, r.client, keys, version, data, ttl).Err(); err != nil {
			log.Printf("quiz cache write %s: %v", quizID, err)
		}
		return quiz, nil
	})
	if err != nil {
		return domain.QuizWithQuestions{}, err
	}
	return result.(domain.QuizWithQuestions), nil
}

// Invalidate drops the cached quiz after its questions changed.
func (r *QuizRepository) Invalidate(ctx context.Context, quizID string) {
	pipe := r.client.TxPipeline()
	pipe.Incr(ctx, r.versionKey(quizID))
	pipe.Del(ctx, r.key(quizID))
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("quiz cache invalidate %s: %v", quizID, err)
	}
	r.sf.Forget(quizID)
}

func (r *QuizRepository) version(ctx context.Context, quizID string) (string, error) {
	v, err := r.client.Get(ctx, r.versionKey(quizID)).Result()
	if errors.Is(err, redis.Nil) {
		return "0", nil
	}
	return v, err
}

func (r *QuizRepository) cached(ctx context.Context, quizID string) (domain.QuizWithQuestions, bool) {
	data, err := r.client.Get(ctx, r.key(quizID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("quiz cache read %s: %v", quizID, err)
		}
		return domain.QuizWithQuestions{}, false
	}
	var quiz domain.QuizWithQuestions
	if err := json.Unmarshal(data, &quiz); err != nil {
		log.Printf("quiz cache decode %s: %v", quizID, err)
		return domain.QuizWithQuestions{}, false
	}
	return quiz, true
}

func (r *QuizRepository) key(quizID string) string {
	return "quiz:" + quizID + ":full"
}

func (r *QuizRepository) versionKey(quizID string) string {
	return "quiz:" + quizID + ":version"
}

func (r *QuizRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
