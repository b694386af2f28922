package tasks

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"ticket_waitroom/internal/auditdb"
	"ticket_waitroom/internal/waitroom"

	"github.com/robfig/cron/v3"
)

var (
	scheduler *waitroom.Scheduler
	audit     *auditdb.Store
	fast      waitroom.FastOrderedStore
	batchSize = 100
)

// PromoteWaitingUsers выполняет такт продвижения для каждой настроенной
// очереди. Очереди независимы: сбой такта одной не мешает остальным.
func PromoteWaitingUsers() {
	ctx := context.Background()
	configs, err := audit.ListQueueConfigs(ctx)
	if err != nil {
		log.Println("Ошибка при чтении списка очередей:", err)
		return
	}

	for _, cfg := range configs {
		if err := scheduler.Tick(ctx, cfg.ID, batchSize); err != nil {
			log.Printf("Ошибка такта продвижения очереди %d: %v", cfg.ID, err)
		}
	}
}

// SweepStaleAdmissions переводит просроченные записи ADMITTED в EXPIRED и
// убирает их токены из Redis. Горячий путь на эту чистку не опирается:
// истечение и так проверяется при Complete.
func SweepStaleAdmissions() {
	ctx := context.Background()
	records, err := audit.ListStaleAdmitted(ctx, time.Now())
	if err != nil {
		log.Println("Ошибка при поиске просроченных допусков:", err)
		return
	}

	for _, rec := range records {
		if err := audit.MarkExpired(ctx, rec.QueueID, rec.UserID); err != nil {
			log.Printf("Ошибка перевода допуска в EXPIRED, очередь %d, пользователь %d: %v", rec.QueueID, rec.UserID, err)
			continue
		}
		if err := fast.RemoveAdmitted(ctx, rec.QueueID, rec.UserID); err != nil {
			log.Printf("Ошибка удаления токена из Redis, очередь %d, пользователь %d: %v", rec.QueueID, rec.UserID, err)
		}
	}
	if len(records) > 0 {
		log.Printf("Чистка допусков: обработано %d просроченных записей", len(records))
	}
}

// InitScheduler инициализирует планировщик cron-задач продвижения и чистки.
func InitScheduler(sched *waitroom.Scheduler, auditStore *auditdb.Store, fastStore waitroom.FastOrderedStore) *cron.Cron {
	scheduler = sched
	audit = auditStore
	fast = fastStore

	if v := os.Getenv("PROMOTE_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			batchSize = n
		}
	}

	c := cron.New(cron.WithSeconds())

	// Такт продвижения каждые 5 секунд.
	_, err := c.AddFunc("*/5 * * * * *", PromoteWaitingUsers)
	if err != nil {
		log.Println("Ошибка запуска cron-задачи PromoteWaitingUsers:", err)
	}

	// Чистка просроченных допусков каждую минуту.
	_, err = c.AddFunc("0 * * * * *", SweepStaleAdmissions)
	if err != nil {
		log.Println("Ошибка запуска cron-задачи SweepStaleAdmissions:", err)
	}

	c.Start()
	log.Println("Cron-планировщик запущен.")
	return c
}
