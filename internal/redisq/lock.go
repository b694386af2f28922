package redisq

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// Locker реализует waitroom.QueueLocker через ключ с арендой: SET NX с TTL
// и освобождение только своим значением. Аренда нужна, чтобы упавший
// держатель не заклинил продвижение очереди навсегда.
type Locker struct {
	rdb        *redis.Client
	lease      time.Duration // срок аренды блокировки
	maxWait    time.Duration // сколько всего ждать захвата
	retryEvery time.Duration
}

func NewLocker(rdb *redis.Client) *Locker {
	return &Locker{
		rdb:        rdb,
		lease:      5 * time.Second,
		maxWait:    2 * time.Second,
		retryEvery: 50 * time.Millisecond,
	}
}

var ErrLockNotAcquired = errors.New("блокировка продвижения занята")

// Освобождение сравнением значения: чужую блокировку снять нельзя.
var unlockScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// AcquirePromoteLock захватывает блокировку продвижения очереди. Ожидание
// ограничено: если за maxWait захватить не удалось, возвращается ошибка —
// такт просто пропускается, следующий запустится по расписанию.
func (l *Locker) AcquirePromoteLock(ctx context.Context, queueID uint) (func(), error) {
	key := lockKey(queueID)
	value := uuid.NewString()
	deadline := time.Now().Add(l.maxWait)

	for {
		ok, err := l.rdb.SetNX(ctx, key, value, l.lease).Result()
		if err != nil {
			return nil, fmt.Errorf("захват блокировки %s: %w", key, err)
		}
		if ok {
			release := func() {
				if err := unlockScript.Run(context.Background(), l.rdb, []string{key}, value).Err(); err != nil {
					log.Printf("Не удалось освободить блокировку %s: %v", key, err)
				}
			}
			return release, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrLockNotAcquired
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retryEvery):
		}
	}
}
