package redisq

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"ticket_waitroom/internal/waitroom"

	"github.com/go-redis/redis/v8"
)

// Store реализует waitroom.FastOrderedStore поверх Redis.
//
// Раскладка ключей для очереди N:
//
//	waitq:{N}:waiting        ZSET ожидающих, score — время вступления (наносекунды)
//	waitq:{N}:admitted       ZSET допущенных, score — unix-время истечения допуска
//	waitq:{N}:joinscore      HASH userID → score вступления (для отката)
//	waitq:{N}:tokens         HASH userID → токен допуска
//	waitq:{N}:admitted_total накопительный счётчик допусков
//
// Переходы между ожиданием и допуском выполняются Lua-скриптами, чтобы
// каждый переход был одним атомарным обращением к Redis.
type Store struct {
	rdb *redis.Client
}

func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func waitingKey(queueID uint) string { return fmt.Sprintf("waitq:%d:waiting", queueID) }
func admittedKey(queueID uint) string { return fmt.Sprintf("waitq:%d:admitted", queueID) }
func joinScoreKey(queueID uint) string { return fmt.Sprintf("waitq:%d:joinscore", queueID) }
func tokensKey(queueID uint) string { return fmt.Sprintf("waitq:%d:tokens", queueID) }
func counterKey(queueID uint) string { return fmt.Sprintf("waitq:%d:admitted_total", queueID) }
func lockKey(queueID uint) string { return fmt.Sprintf("waitq:%d:promote_lock", queueID) }

func member(userID uint) string { return strconv.FormatUint(uint64(userID), 10) }

// Перевод из ожидания в допуск. Возвращает 1, только если пользователь стоял
// в ожидании и переведён именно этим вызовом.
var moveToAdmittedScript = redis.NewScript(`
local score = redis.call('ZSCORE', KEYS[1], ARGV[1])
if not score then
	return 0
end
redis.call('ZREM', KEYS[1], ARGV[1])
redis.call('ZADD', KEYS[2], ARGV[2], ARGV[1])
redis.call('HSET', KEYS[3], ARGV[1], score)
redis.call('HSET', KEYS[4], ARGV[1], ARGV[3])
return 1
`)

// Компенсация: убрать допуск и вернуть пользователя в ожидание на прежний
// score. Если score вступления потерян, берём запасной из аргументов.
var rollbackScript = redis.NewScript(`
local removed = redis.call('ZREM', KEYS[2], ARGV[1])
if removed == 0 then
	return 0
end
local score = redis.call('HGET', KEYS[3], ARGV[1])
if not score then
	score = ARGV[2]
end
redis.call('ZADD', KEYS[1], score, ARGV[1])
redis.call('HDEL', KEYS[3], ARGV[1])
redis.call('HDEL', KEYS[4], ARGV[1])
return 1
`)

// Подсчёт действующих допусков с попутной чисткой истёкших по score.
var totalAdmittedScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
return redis.call('ZCARD', KEYS[1])
`)

func (s *Store) AddWaiting(ctx context.Context, queueID, userID uint, score float64) error {
	return s.rdb.ZAddNX(ctx, waitingKey(queueID), &redis.Z{Score: score, Member: member(userID)}).Err()
}

func (s *Store) RemoveWaiting(ctx context.Context, queueID, userID uint) error {
	return s.rdb.ZRem(ctx, waitingKey(queueID), member(userID)).Err()
}

func (s *Store) RankInWaiting(ctx context.Context, queueID, userID uint) (int64, error) {
	rank, err := s.rdb.ZRank(ctx, waitingKey(queueID), member(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, waitroom.ErrNotInQueue
	}
	if err != nil {
		return 0, err
	}
	return rank + 1, nil
}

func (s *Store) CountAheadInWaiting(ctx context.Context, queueID, userID uint) (int64, error) {
	// ZRANK считает с нуля, это ровно число строго впереди стоящих.
	ahead, err := s.rdb.ZRank(ctx, waitingKey(queueID), member(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, waitroom.ErrNotInQueue
	}
	if err != nil {
		return 0, err
	}
	return ahead, nil
}

func (s *Store) TotalWaiting(ctx context.Context, queueID uint) (int64, error) {
	return s.rdb.ZCard(ctx, waitingKey(queueID)).Result()
}

func (s *Store) TopWaiting(ctx context.Context, queueID uint, n int64) ([]uint, error) {
	raw, err := s.rdb.ZRange(ctx, waitingKey(queueID), 0, n-1).Result()
	if err != nil {
		return nil, err
	}
	users := make([]uint, 0, len(raw))
	for _, m := range raw {
		id, err := strconv.ParseUint(m, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("повреждённый элемент %q в очереди %d: %w", m, queueID, err)
		}
		users = append(users, uint(id))
	}
	return users, nil
}

func (s *Store) IsWaiting(ctx context.Context, queueID, userID uint) (bool, error) {
	_, err := s.rdb.ZScore(ctx, waitingKey(queueID), member(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) JoinScore(ctx context.Context, queueID, userID uint) (float64, bool, error) {
	score, err := s.rdb.ZScore(ctx, waitingKey(queueID), member(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return score, true, nil
}

func (s *Store) MoveToAdmitted(ctx context.Context, queueID, userID uint, ttl time.Duration, token string) (bool, error) {
	expiresAt := time.Now().Add(ttl).Unix()
	res, err := moveToAdmittedScript.Run(ctx, s.rdb,
		[]string{waitingKey(queueID), admittedKey(queueID), joinScoreKey(queueID), tokensKey(queueID)},
		member(userID), expiresAt, token,
	).Int64()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

func (s *Store) IsAdmitted(ctx context.Context, queueID, userID uint) (bool, error) {
	expiresAt, err := s.rdb.ZScore(ctx, admittedKey(queueID), member(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	// Истёкший по score допуск недействителен, даже если чистка до него
	// ещё не дошла.
	return int64(expiresAt) > time.Now().Unix(), nil
}

func (s *Store) RemoveAdmitted(ctx context.Context, queueID, userID uint) error {
	pipe := s.rdb.TxPipeline()
	pipe.ZRem(ctx, admittedKey(queueID), member(userID))
	pipe.HDel(ctx, tokensKey(queueID), member(userID))
	pipe.HDel(ctx, joinScoreKey(queueID), member(userID))
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Store) TotalAdmitted(ctx context.Context, queueID uint) (int64, error) {
	return totalAdmittedScript.Run(ctx, s.rdb,
		[]string{admittedKey(queueID)},
		time.Now().Unix(),
	).Int64()
}

func (s *Store) IncrementAdmittedCounter(ctx context.Context, queueID uint) error {
	return s.rdb.Incr(ctx, counterKey(queueID)).Err()
}

func (s *Store) RollbackToWaiting(ctx context.Context, queueID, userID uint) error {
	fallbackScore := float64(time.Now().UnixNano())
	return rollbackScript.Run(ctx, s.rdb,
		[]string{waitingKey(queueID), admittedKey(queueID), joinScoreKey(queueID), tokensKey(queueID)},
		member(userID), fallbackScore,
	).Err()
}

func (s *Store) ClearAll(ctx context.Context, queueID uint) error {
	return s.rdb.Del(ctx,
		waitingKey(queueID),
		admittedKey(queueID),
		joinScoreKey(queueID),
		tokensKey(queueID),
		counterKey(queueID),
	).Err()
}
