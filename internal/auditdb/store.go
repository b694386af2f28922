package auditdb

import (
	"context"
	"errors"
	"time"

	"ticket_waitroom/internal/models"
	"ticket_waitroom/internal/waitroom"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store реализует waitroom.AuditStore поверх Postgres через gorm.
// Здесь живёт история допусков и конфигурация очередей; решения о доступе
// по этим данным не принимаются.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) FindQueueConfig(ctx context.Context, queueID uint) (*models.QueueConfig, error) {
	var cfg models.QueueConfig
	if err := s.db.WithContext(ctx).First(&cfg, queueID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, waitroom.ErrQueueNotFound
		}
		return nil, err
	}
	return &cfg, nil
}

func (s *Store) FindAdmission(ctx context.Context, queueID, userID uint) (*models.AdmissionRecord, error) {
	var rec models.AdmissionRecord
	err := s.db.WithContext(ctx).
		Where("queue_id = ? AND user_id = ?", queueID, userID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// UpsertAdmission создаёт запись о допуске или переписывает существующую
// (повторный допуск после EXPIRED перевыпускает токен и сроки).
func (s *Store) UpsertAdmission(ctx context.Context, rec *models.AdmissionRecord) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "queue_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"status", "joined_at", "admitted_at", "expires_at", "token", "updated_at",
			}),
		}).
		Create(rec).Error
}

func (s *Store) MarkCompleted(ctx context.Context, queueID, userID uint) error {
	return s.setStatus(ctx, queueID, userID, models.AdmissionStatusCompleted)
}

func (s *Store) MarkExpired(ctx context.Context, queueID, userID uint) error {
	return s.setStatus(ctx, queueID, userID, models.AdmissionStatusExpired)
}

func (s *Store) setStatus(ctx context.Context, queueID, userID uint, status string) error {
	res := s.db.WithContext(ctx).
		Model(&models.AdmissionRecord{}).
		Where("queue_id = ? AND user_id = ?", queueID, userID).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return waitroom.ErrNotInQueue
	}
	return nil
}

// ListQueueConfigs возвращает все настроенные очереди; используется
// планировщиком для периодических тактов.
func (s *Store) ListQueueConfigs(ctx context.Context) ([]models.QueueConfig, error) {
	var configs []models.QueueConfig
	if err := s.db.WithContext(ctx).Find(&configs).Error; err != nil {
		return nil, err
	}
	return configs, nil
}

// ListStaleAdmitted возвращает записи ADMITTED с истёкшим сроком — добычу
// фоновой чистки.
func (s *Store) ListStaleAdmitted(ctx context.Context, now time.Time) ([]models.AdmissionRecord, error) {
	var records []models.AdmissionRecord
	err := s.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", models.AdmissionStatusAdmitted, now).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
