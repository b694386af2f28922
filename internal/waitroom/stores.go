package waitroom

import (
	"context"
	"time"

	"ticket_waitroom/internal/models"
)

// FastOrderedStore — быстрое хранилище, источник истины для вопроса
// «может ли пользователь действовать прямо сейчас». Все операции должны быть
// атомарными на стороне хранилища: ядро никогда не делает read-then-write
// против него.
type FastOrderedStore interface {
	// Операции над множеством ожидающих (упорядочено по score вступления).
	AddWaiting(ctx context.Context, queueID, userID uint, score float64) error
	RemoveWaiting(ctx context.Context, queueID, userID uint) error
	// RankInWaiting возвращает позицию с единицы. Если пользователя нет в
	// множестве ожидающих — ErrNotInQueue.
	RankInWaiting(ctx context.Context, queueID, userID uint) (int64, error)
	CountAheadInWaiting(ctx context.Context, queueID, userID uint) (int64, error)
	TotalWaiting(ctx context.Context, queueID uint) (int64, error)
	TopWaiting(ctx context.Context, queueID uint, n int64) ([]uint, error)
	IsWaiting(ctx context.Context, queueID, userID uint) (bool, error)
	JoinScore(ctx context.Context, queueID, userID uint) (float64, bool, error)

	// Операции над множеством допущенных.
	// MoveToAdmitted атомарно переводит пользователя из ожидания в допуск
	// с заданным сроком действия и токеном. Возвращает true, только если
	// перевод выполнил именно этот вызов; false — пользователь уже переведён
	// или его нет в ожидании (не ошибка).
	MoveToAdmitted(ctx context.Context, queueID, userID uint, ttl time.Duration, token string) (bool, error)
	IsAdmitted(ctx context.Context, queueID, userID uint) (bool, error)
	RemoveAdmitted(ctx context.Context, queueID, userID uint) error
	TotalAdmitted(ctx context.Context, queueID uint) (int64, error)
	// IncrementAdmittedCounter увеличивает накопительный счётчик допусков.
	// Сбой здесь не фатален: счётчик выправляется при следующем пересчёте.
	IncrementAdmittedCounter(ctx context.Context, queueID uint) error
	// RollbackToWaiting — компенсация: возвращает пользователя в ожидание
	// с исходным score вступления, если база не смогла записать допуск.
	RollbackToWaiting(ctx context.Context, queueID, userID uint) error

	ClearAll(ctx context.Context, queueID uint) error
}

// AuditStore — долговременное хранилище конфигураций очередей и записей о
// допусках. Используется для истории и восстановления; решения о доступе
// по нему не принимаются.
type AuditStore interface {
	FindQueueConfig(ctx context.Context, queueID uint) (*models.QueueConfig, error)
	// FindAdmission возвращает (nil, nil), если записи нет.
	FindAdmission(ctx context.Context, queueID, userID uint) (*models.AdmissionRecord, error)
	UpsertAdmission(ctx context.Context, rec *models.AdmissionRecord) error
	MarkCompleted(ctx context.Context, queueID, userID uint) error
	MarkExpired(ctx context.Context, queueID, userID uint) error
}

// QueueKeyResolver переводит идентификатор мероприятия в идентификатор
// очереди. Вынесен во внешнего участника: при проверке допуска очередь ищут
// по мероприятию, а администрируют по собственному идентификатору.
type QueueKeyResolver interface {
	ResolveQueueKey(ctx context.Context, performanceID uint, kind string) (uint, error)
}

// QueueLocker — межэкземплярная взаимная блокировка продвижения очереди.
// Захват ограничен по времени ожидания; у самой блокировки есть срок аренды,
// чтобы упавший держатель не заклинил очередь навсегда.
type QueueLocker interface {
	// AcquirePromoteLock возвращает функцию освобождения либо ошибку,
	// если блокировку не удалось получить за отведённое время.
	AcquirePromoteLock(ctx context.Context, queueID uint) (release func(), err error)
}
