package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"ticket_waitroom/internal/response"
	"ticket_waitroom/internal/waitroom"
	"ticket_waitroom/internal/ws"

	"github.com/gin-gonic/gin"
)

// Ядро очереди, подключается в main при старте сервиса.
var (
	Coordinator *waitroom.Coordinator
	Gate        *waitroom.Gate
)

// Setup подключает ядро очереди к HTTP-обработчикам.
func Setup(coord *waitroom.Coordinator, gate *waitroom.Gate) {
	Coordinator = coord
	Gate = gate
}

func queueIDFromPath(c *gin.Context) (uint, bool) {
	queueID, err := strconv.Atoi(c.Param("id"))
	if err != nil || queueID <= 0 {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "INVALID_QUEUE_ID",
			Message: "Неверный идентификатор очереди",
		})
		return 0, false
	}
	return uint(queueID), true
}

// writeCoreError переводит ошибки ядра в коды ответов API.
func writeCoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, waitroom.ErrQueueNotFound):
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "QUEUE_NOT_FOUND",
			Message: "Очередь не найдена",
		})
	case errors.Is(err, waitroom.ErrAlreadyInQueue):
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "ALREADY_IN_QUEUE",
			Message: "Пользователь уже состоит в этой очереди",
		})
	case errors.Is(err, waitroom.ErrNotInQueue):
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "NOT_IN_QUEUE",
			Message: "Пользователь не состоит в очереди",
		})
	case errors.Is(err, waitroom.ErrInvalidAdmissionState):
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "INVALID_ADMISSION_STATE",
			Message: "Нет действующего допуска",
		})
	case errors.Is(err, waitroom.ErrStoreUnavailable):
		c.JSON(http.StatusServiceUnavailable, response.ErrorResponse{
			Code:    "STORE_UNAVAILABLE",
			Message: "Хранилище временно недоступно",
			Details: err.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "INTERNAL_ERROR",
			Message: "Внутренняя ошибка сервера",
			Details: err.Error(),
		})
	}
}

// JoinQueueHandler обрабатывает запрос на вступление в очередь
// @Summary		Вступление в очередь ожидания
// @Description	Ставит пользователя в очередь и возвращает его позицию
// @Tags			queue
// @Accept			json
// @Produce		json
// @Param			id	path		string	true	"ID очереди"
// @Success		200	{object}	response.JoinResponse	"Успешное вступление с указанием позиции"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (INVALID_QUEUE_ID, ALREADY_IN_QUEUE)"
// @Failure		404	{object}	response.ErrorResponse	"Очередь не найдена (QUEUE_NOT_FOUND)"
// @Failure		503	{object}	response.ErrorResponse	"Хранилище недоступно (STORE_UNAVAILABLE)"
// @Router			/api/queues/{id}/join [post]
func JoinQueueHandler(c *gin.Context) {
	queueID, ok := queueIDFromPath(c)
	if !ok {
		return
	}
	userID := c.GetUint("userID")

	result, err := Coordinator.Join(c.Request.Context(), queueID, userID)
	if err != nil {
		writeCoreError(c, err)
		return
	}

	ws.HubInstance.BroadcastWSMessage(ws.WSMessage{
		EventType: "user_joined",
		QueueID:   c.Param("id"),
		Data: map[string]interface{}{
			"user_id": userID,
			"rank":    result.Rank,
		},
	})

	c.JSON(http.StatusOK, response.JoinResponse{
		Message: "Вступление в очередь прошло успешно",
		Rank:    result.Rank,
		Ahead:   result.Ahead,
	})
}

// GetQueueStatusHandler обрабатывает запрос на получение статуса пользователя в очереди
// @Summary		Статус пользователя в очереди
// @Description	Возвращает состояние пользователя: ожидание, допуск или терминальный статус
// @Tags			queue
// @Accept			json
// @Produce		json
// @Param			id	path		string	true	"ID очереди"
// @Success		200	{object}	response.StatusResponse	"Текущее состояние"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (INVALID_QUEUE_ID, NOT_IN_QUEUE)"
// @Failure		503	{object}	response.ErrorResponse	"Хранилище недоступно (STORE_UNAVAILABLE)"
// @Router			/api/queues/{id}/status [get]
func GetQueueStatusHandler(c *gin.Context) {
	queueID, ok := queueIDFromPath(c)
	if !ok {
		return
	}
	userID := c.GetUint("userID")

	status, err := Coordinator.Status(c.Request.Context(), queueID, userID)
	if err != nil {
		writeCoreError(c, err)
		return
	}

	resp := response.StatusResponse{
		State:        status.State,
		Rank:         status.Rank,
		Ahead:        status.Ahead,
		TotalWaiting: status.TotalWaiting,
		Token:        status.Token,
	}
	if !status.ExpiresAt.IsZero() {
		resp.ExpiresAt = status.ExpiresAt.Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, resp)
}

// CompleteQueueHandler обрабатывает завершение допуска
// @Summary		Завершение допуска
// @Description	Потребляет действующий допуск после успешного бронирования
// @Tags			queue
// @Accept			json
// @Produce		json
// @Param			id	path		string	true	"ID очереди"
// @Success		200	{object}	response.SuccessResponse	"Допуск завершён"
// @Failure		400	{object}	response.ErrorResponse	"Нет действующего допуска (INVALID_ADMISSION_STATE)"
// @Failure		503	{object}	response.ErrorResponse	"Хранилище недоступно (STORE_UNAVAILABLE)"
// @Router			/api/queues/{id}/complete [post]
func CompleteQueueHandler(c *gin.Context) {
	queueID, ok := queueIDFromPath(c)
	if !ok {
		return
	}
	userID := c.GetUint("userID")

	if err := Coordinator.Complete(c.Request.Context(), queueID, userID); err != nil {
		writeCoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessResponse{Message: "Допуск успешно завершён"})
}

// LeaveQueueHandler обрабатывает выход из очереди
// @Summary		Выход из очереди
// @Description	Убирает пользователя из ожидания или отзывает его допуск
// @Tags			queue
// @Accept			json
// @Produce		json
// @Param			id	path		string	true	"ID очереди"
// @Success		200	{object}	response.SuccessResponse	"Успешный выход из очереди"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (INVALID_QUEUE_ID, NOT_IN_QUEUE)"
// @Failure		503	{object}	response.ErrorResponse	"Хранилище недоступно (STORE_UNAVAILABLE)"
// @Router			/api/queues/{id}/leave [post]
func LeaveQueueHandler(c *gin.Context) {
	queueID, ok := queueIDFromPath(c)
	if !ok {
		return
	}
	userID := c.GetUint("userID")

	if err := Coordinator.Exit(c.Request.Context(), queueID, userID); err != nil {
		writeCoreError(c, err)
		return
	}

	ws.HubInstance.BroadcastWSMessage(ws.WSMessage{
		EventType: "user_left",
		QueueID:   c.Param("id"),
		Data: map[string]interface{}{
			"user_id": userID,
		},
	})

	c.JSON(http.StatusOK, response.SuccessResponse{Message: "Вы успешно вышли из очереди"})
}

// GetQueueStatisticsHandler возвращает сводные показатели очереди
// @Summary		Статистика очереди
// @Description	Число ожидающих, допущенных и свободных мест
// @Tags			queue
// @Accept			json
// @Produce		json
// @Param			id	path		string	true	"ID очереди"
// @Success		200	{object}	response.StatisticsResponse	"Показатели очереди"
// @Failure		404	{object}	response.ErrorResponse	"Очередь не найдена (QUEUE_NOT_FOUND)"
// @Failure		503	{object}	response.ErrorResponse	"Хранилище недоступно (STORE_UNAVAILABLE)"
// @Router			/api/queues/{id}/statistics [get]
func GetQueueStatisticsHandler(c *gin.Context) {
	queueID, ok := queueIDFromPath(c)
	if !ok {
		return
	}

	stats, err := Coordinator.Statistics(c.Request.Context(), queueID)
	if err != nil {
		writeCoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.StatisticsResponse{
		QueueID:        stats.QueueID,
		Capacity:       stats.Capacity,
		TotalWaiting:   stats.TotalWaiting,
		TotalAdmitted:  stats.TotalAdmitted,
		AvailableSlots: stats.AvailableSlots,
	})
}

// CheckEnterableHandler — проверка допуска для потока бронирования
// @Summary		Проверка допуска к мероприятию
// @Description	Единственная проверка, от которой зависит поток бронирования. Причина отказа наружу не раскрывается.
// @Tags			gate
// @Accept			json
// @Produce		json
// @Param			id	path		string	true	"ID мероприятия"
// @Success		200	{object}	response.SuccessResponse	"Вход разрешён"
// @Failure		403	{object}	response.ErrorResponse	"Вход не разрешён (NOT_ENTERABLE)"
// @Router			/api/performances/{id}/enterable [get]
func CheckEnterableHandler(c *gin.Context) {
	performanceID, err := strconv.Atoi(c.Param("id"))
	if err != nil || performanceID <= 0 {
		c.JSON(http.StatusForbidden, response.ErrorResponse{
			Code:    "NOT_ENTERABLE",
			Message: "Вход не разрешён",
		})
		return
	}
	userID := c.GetUint("userID")

	if err := Gate.AssertEnterable(c.Request.Context(), uint(performanceID), userID); err != nil {
		c.JSON(http.StatusForbidden, response.ErrorResponse{
			Code:    "NOT_ENTERABLE",
			Message: "Вход не разрешён",
		})
		return
	}
	c.JSON(http.StatusOK, response.SuccessResponse{Message: "Вход разрешён"})
}
