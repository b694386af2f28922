package models

import (
	"time"

	"gorm.io/gorm"
)

// Статусы записи о допуске.
const (
	AdmissionStatusAdmitted  = "ADMITTED"
	AdmissionStatusCompleted = "COMPLETED"
	AdmissionStatusExpired   = "EXPIRED"
)

// Виды очередей для одного мероприятия.
const (
	QueueKindBooking = "BOOKING" // очередь на бронирование билетов
)

type QueueConfig struct {
	gorm.Model
	PerformanceID       uint   `gorm:"uniqueIndex:idx_performance_kind;not null"` // Мероприятие, которое защищает очередь
	Kind                string `gorm:"uniqueIndex:idx_performance_kind;not null"` // Вид очереди (BOOKING и т.п.)
	Capacity            int    `gorm:"not null"`                                  // Максимум одновременно допущенных пользователей
	AdmissionTTLMinutes int    `gorm:"not null"`                                  // Срок действия токена допуска в минутах
}

// AdmissionRecord — долговременная проекция факта допуска.
// Создаётся только после подтверждения перевода в Redis; для пользователей,
// которые не вышли из состояния ожидания, запись не создаётся.
type AdmissionRecord struct {
	gorm.Model
	QueueID    uint      `gorm:"uniqueIndex:idx_queue_user;not null"`
	UserID     uint      `gorm:"uniqueIndex:idx_queue_user;not null"`
	Status     string    `gorm:"index;not null"` // ADMITTED / COMPLETED / EXPIRED
	JoinedAt   time.Time `gorm:"not null"`       // Время вступления в очередь
	AdmittedAt time.Time `gorm:"not null"`       // Время допуска
	ExpiresAt  time.Time `gorm:"index;not null"` // Время истечения токена допуска
	Token      string    `gorm:"not null"`       // Токен допуска, перевыпускается при каждом допуске
}
