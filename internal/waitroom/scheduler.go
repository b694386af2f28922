package waitroom

import (
	"context"
	"fmt"
	"log"
)

// Scheduler продвигает очередь: по свободной вместимости допускает очередную
// пачку ожидающих строго в порядке вступления. Такты по одной очереди
// выполняются по одному: два параллельных такта посчитали бы свободные места
// по одному и тому же снимку и вдвоём перебрали бы вместимость.
type Scheduler struct {
	coord  *Coordinator
	fast   FastOrderedStore
	locker QueueLocker

	// OnPromoted вызывается после каждого успешного допуска; используется
	// для push-уведомлений. Необязателен.
	OnPromoted func(queueID, userID uint)
}

func NewScheduler(coord *Coordinator, fast FastOrderedStore, locker QueueLocker) *Scheduler {
	return &Scheduler{coord: coord, fast: fast, locker: locker}
}

// Tick — один цикл продвижения очереди. Последовательность
// «прочитать свободные места → выбрать первых N → допустить» выполняется под
// арендной блокировкой очереди.
func (s *Scheduler) Tick(ctx context.Context, queueID uint, batchSize int) error {
	if batchSize <= 0 {
		return nil
	}

	release, err := s.locker.AcquirePromoteLock(ctx, queueID)
	if err != nil {
		return fmt.Errorf("блокировка продвижения очереди %d: %w", queueID, err)
	}
	defer release()

	cfg, err := s.coord.queueConfig(ctx, queueID)
	if err != nil {
		return err
	}

	totalWaiting, err := s.fast.TotalWaiting(ctx, queueID)
	if err != nil {
		// Не знаем, сколько ждёт — безопаснее ничего не делать.
		return storeErr("подсчёт ожидающих", err)
	}
	if totalWaiting == 0 {
		return nil
	}

	admitted, err := s.fast.TotalAdmitted(ctx, queueID)
	if err != nil {
		// Число допущенных неизвестно: лучше пропустить такт, чем перебрать
		// вместимость.
		return storeErr("подсчёт допущенных", err)
	}

	available := int64(cfg.Capacity) - admitted
	if available <= 0 {
		return nil
	}

	n := int64(batchSize)
	if available < n {
		n = available
	}
	if totalWaiting < n {
		n = totalWaiting
	}
	if n <= 0 {
		return nil
	}

	users, err := s.fast.TopWaiting(ctx, queueID, n)
	if err != nil {
		return storeErr("выбор первых ожидающих", err)
	}

	for _, userID := range users {
		// Сбой одного пользователя не останавливает пачку: иначе одна
		// битая запись заклинила бы всех, кто стоит за ней.
		if err := s.coord.Promote(ctx, queueID, userID); err != nil {
			log.Printf("Не удалось допустить пользователя %d в очереди %d: %v", userID, queueID, err)
			continue
		}
		if s.OnPromoted != nil {
			s.OnPromoted(queueID, userID)
		}
	}
	return nil
}
