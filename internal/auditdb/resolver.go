package auditdb

import (
	"context"
	"errors"

	"ticket_waitroom/internal/models"
	"ticket_waitroom/internal/waitroom"

	"gorm.io/gorm"
)

// Resolver переводит идентификатор мероприятия в идентификатор очереди.
// Проверка допуска ищет очередь по мероприятию, администрирование — по
// собственному идентификатору очереди; этот мост держим отдельно от ядра.
type Resolver struct {
	db *gorm.DB
}

func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{db: db}
}

func (r *Resolver) ResolveQueueKey(ctx context.Context, performanceID uint, kind string) (uint, error) {
	var cfg models.QueueConfig
	err := r.db.WithContext(ctx).
		Where("performance_id = ? AND kind = ?", performanceID, kind).
		First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, waitroom.ErrQueueNotFound
	}
	if err != nil {
		return 0, err
	}
	return cfg.ID, nil
}
