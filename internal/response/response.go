package response

// SuccessResponse представляет успешный ответ API
type SuccessResponse struct {
	Message string `json:"message" example:"Операция успешно выполнена"`
}

// ErrorResponse представляет ответ с ошибкой API
type ErrorResponse struct {
	// Код ошибки для программной обработки
	// example: QUEUE_NOT_FOUND
	Code string `json:"code"`

	// Человекочитаемое сообщение об ошибке
	// example: Очередь не найдена
	Message string `json:"message"`

	// Дополнительные детали об ошибке (опционально)
	// example: очередь 42 не настроена
	Details string `json:"details,omitempty"`
}

// JoinResponse — ответ на вступление в очередь
type JoinResponse struct {
	Message string `json:"message"`
	// Позиция в очереди, с единицы
	Rank int64 `json:"rank"`
	// Сколько человек строго впереди
	Ahead int64 `json:"ahead"`
}

// StatusResponse — текущее состояние пользователя в очереди
type StatusResponse struct {
	State        string `json:"state"` // WAITING / ADMITTED / COMPLETED / EXPIRED
	Rank         int64  `json:"rank,omitempty"`
	Ahead        int64  `json:"ahead,omitempty"`
	TotalWaiting int64  `json:"total_waiting,omitempty"`
	Token        string `json:"token,omitempty"`
	ExpiresAt    string `json:"expires_at,omitempty"`
}

// StatisticsResponse — сводные показатели очереди
type StatisticsResponse struct {
	QueueID        uint  `json:"queue_id"`
	Capacity       int   `json:"capacity"`
	TotalWaiting   int64 `json:"total_waiting"`
	TotalAdmitted  int64 `json:"total_admitted"`
	AvailableSlots int64 `json:"available_slots"`
}
