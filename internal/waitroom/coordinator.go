package waitroom

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"ticket_waitroom/internal/models"
)

// Состояния пользователя относительно очереди.
const (
	StateWaiting   = "WAITING"
	StateAdmitted  = "ADMITTED"
	StateCompleted = "COMPLETED"
	StateExpired   = "EXPIRED"
)

// Coordinator ведёт полный жизненный цикл пользователя в очереди:
// вступление, статус, допуск, завершение и выход. Правила согласованности
// двух хранилищ сосредоточены здесь: сначала пишем в Redis (дёшево откатить),
// потом в базу, и компенсируем Redis при сбое записи в базу.
type Coordinator struct {
	fast  FastOrderedStore
	audit AuditStore
	now   func() time.Time
}

func NewCoordinator(fast FastOrderedStore, audit AuditStore) *Coordinator {
	return &Coordinator{
		fast:  fast,
		audit: audit,
		now:   time.Now,
	}
}

// JoinResult — позиция пользователя сразу после вступления.
type JoinResult struct {
	Rank  int64 // позиция с единицы
	Ahead int64 // сколько человек строго впереди
}

// Join ставит пользователя в очередь ожидания.
// Состояние ожидания живёт только в Redis: оно короткое и высокочастотное,
// писать его в базу — лишняя нагрузка без пользы для истории.
func (c *Coordinator) Join(ctx context.Context, queueID, userID uint) (*JoinResult, error) {
	if _, err := c.queueConfig(ctx, queueID); err != nil {
		return nil, err
	}

	// Сначала проверяем быстрое хранилище: оно решает «прямо сейчас».
	waiting, err := c.fast.IsWaiting(ctx, queueID, userID)
	if err != nil {
		return nil, storeErr("проверка ожидания", err)
	}
	if waiting {
		return nil, ErrAlreadyInQueue
	}
	admitted, err := c.fast.IsAdmitted(ctx, queueID, userID)
	if err != nil {
		return nil, storeErr("проверка допуска", err)
	}
	if admitted {
		return nil, ErrAlreadyInQueue
	}

	// Запасная проверка по базе: запись ADMITTED или COMPLETED блокирует
	// повторное вступление, EXPIRED — нет, чтобы бросивший очередь
	// пользователь мог войти заново.
	rec, err := c.audit.FindAdmission(ctx, queueID, userID)
	if err != nil {
		return nil, storeErr("поиск записи о допуске", err)
	}
	if rec != nil && rec.Status != models.AdmissionStatusExpired {
		return nil, ErrAlreadyInQueue
	}

	score := float64(c.now().UnixNano())
	if err := c.fast.AddWaiting(ctx, queueID, userID, score); err != nil {
		return nil, storeErr("добавление в ожидание", err)
	}

	rank, err := c.fast.RankInWaiting(ctx, queueID, userID)
	if err != nil {
		return nil, storeErr("определение позиции", err)
	}
	ahead, err := c.fast.CountAheadInWaiting(ctx, queueID, userID)
	if err != nil {
		return nil, storeErr("подсчёт впереди стоящих", err)
	}
	return &JoinResult{Rank: rank, Ahead: ahead}, nil
}

// UserStatus — текущее состояние пользователя в очереди.
type UserStatus struct {
	State        string
	Rank         int64 // только для WAITING
	Ahead        int64 // только для WAITING
	TotalWaiting int64 // только для WAITING
	Token        string
	ExpiresAt    time.Time
}

// Status определяет состояние пользователя. Порядок проверок: ожидание в
// Redis, допуск в Redis, затем терминальные записи в базе. При недоступном
// Redis операция завершается ошибкой: подменять вердикт базой нельзя, она
// не выдаёт доступ.
func (c *Coordinator) Status(ctx context.Context, queueID, userID uint) (*UserStatus, error) {
	waiting, err := c.fast.IsWaiting(ctx, queueID, userID)
	if err != nil {
		return nil, storeErr("проверка ожидания", err)
	}
	if waiting {
		rank, err := c.fast.RankInWaiting(ctx, queueID, userID)
		if err != nil {
			return nil, storeErr("определение позиции", err)
		}
		ahead, err := c.fast.CountAheadInWaiting(ctx, queueID, userID)
		if err != nil {
			return nil, storeErr("подсчёт впереди стоящих", err)
		}
		total, err := c.fast.TotalWaiting(ctx, queueID)
		if err != nil {
			return nil, storeErr("подсчёт ожидающих", err)
		}
		return &UserStatus{State: StateWaiting, Rank: rank, Ahead: ahead, TotalWaiting: total}, nil
	}

	admitted, err := c.fast.IsAdmitted(ctx, queueID, userID)
	if err != nil {
		return nil, storeErr("проверка допуска", err)
	}
	if admitted {
		st := &UserStatus{State: StateAdmitted}
		// Токен и срок — только для отображения, ошибки базы здесь не фатальны.
		if rec, err := c.audit.FindAdmission(ctx, queueID, userID); err == nil && rec != nil {
			st.Token = rec.Token
			st.ExpiresAt = rec.ExpiresAt
		}
		return st, nil
	}

	// В Redis пользователя нет — остаются только терминальные состояния.
	rec, err := c.audit.FindAdmission(ctx, queueID, userID)
	if err != nil {
		return nil, storeErr("поиск записи о допуске", err)
	}
	if rec == nil {
		return nil, ErrNotInQueue
	}
	switch rec.Status {
	case models.AdmissionStatusCompleted:
		return &UserStatus{State: StateCompleted}, nil
	case models.AdmissionStatusExpired:
		return &UserStatus{State: StateExpired}, nil
	default:
		// Запись ADMITTED без токена в Redis означает истёкший по TTL допуск,
		// который ещё не подобрала фоновая чистка.
		return &UserStatus{State: StateExpired}, nil
	}
}

// Promote переводит пользователя из ожидания в допуск. Идемпотентна:
// повторный вызов для уже переведённого пользователя — не ошибка, а no-op.
func (c *Coordinator) Promote(ctx context.Context, queueID, userID uint) error {
	cfg, err := c.queueConfig(ctx, queueID)
	if err != nil {
		return err
	}
	ttl := time.Duration(cfg.AdmissionTTLMinutes) * time.Minute
	admittedAt := c.now()

	token, err := IssueAdmissionToken(queueID, userID, admittedAt, ttl)
	if err != nil {
		return fmt.Errorf("выпуск токена допуска: %w", err)
	}

	// Время вступления читаем до перевода: после удаления из ожидания
	// score уже не достать. Если его нет — пользователя либо нет, либо его
	// уже перевели, и MoveToAdmitted это подтвердит.
	joinScore, hasScore, err := c.fast.JoinScore(ctx, queueID, userID)
	if err != nil {
		return storeErr("чтение времени вступления", err)
	}

	moved, err := c.fast.MoveToAdmitted(ctx, queueID, userID, ttl, token)
	if err != nil {
		return storeErr("перевод в допуск", err)
	}
	if !moved {
		// Уже переведён или не стоит в ожидании — гонка двух Promote
		// разрешается атомарностью перевода на стороне Redis.
		return nil
	}

	joinedAt := admittedAt
	if hasScore {
		joinedAt = time.Unix(0, int64(joinScore))
	}
	rec := &models.AdmissionRecord{
		QueueID:    queueID,
		UserID:     userID,
		Status:     models.AdmissionStatusAdmitted,
		JoinedAt:   joinedAt,
		AdmittedAt: admittedAt,
		ExpiresAt:  admittedAt.Add(ttl),
		Token:      token,
	}
	if err := c.audit.UpsertAdmission(ctx, rec); err != nil {
		// База не записала допуск — компенсируем Redis, возвращая
		// пользователя в ожидание на прежнее место.
		if rbErr := c.fast.RollbackToWaiting(ctx, queueID, userID); rbErr != nil {
			// Откат тоже не прошёл: хранилища разошлись, чинить вручную.
			log.Printf("ФАТАЛЬНО: рассинхронизация хранилищ, очередь %d, пользователь %d: запись допуска: %v; откат: %v",
				queueID, userID, err, rbErr)
			return fmt.Errorf("%w: запись допуска и откат не удались", ErrStoreUnavailable)
		}
		return storeErr("запись допуска", err)
	}

	if err := c.fast.IncrementAdmittedCounter(ctx, queueID); err != nil {
		// Счётчик накопительный и выправится при пересчёте, допуск уже состоялся.
		log.Printf("Не удалось увеличить счётчик допусков очереди %d: %v", queueID, err)
	}
	return nil
}

// Complete потребляет допуск: именно на этой проверке держится авторизация
// защищённого действия. Требуется действующий токен в Redis и непросроченная
// запись ADMITTED в базе.
func (c *Coordinator) Complete(ctx context.Context, queueID, userID uint) error {
	admitted, err := c.fast.IsAdmitted(ctx, queueID, userID)
	if err != nil {
		return storeErr("проверка допуска", err)
	}
	if !admitted {
		return ErrInvalidAdmissionState
	}

	rec, err := c.audit.FindAdmission(ctx, queueID, userID)
	if err != nil {
		return storeErr("поиск записи о допуске", err)
	}
	if rec == nil || rec.Status != models.AdmissionStatusAdmitted || c.now().After(rec.ExpiresAt) {
		return ErrInvalidAdmissionState
	}
	if err := ValidateAdmissionToken(rec.Token, queueID, userID); err != nil {
		return ErrInvalidAdmissionState
	}

	// Сначала фиксируем завершение в базе, потом убираем токен: если удаление
	// из Redis не пройдёт, токен доживёт до TTL, но повторный Complete
	// остановит уже статус COMPLETED.
	if err := c.audit.MarkCompleted(ctx, queueID, userID); err != nil {
		return storeErr("фиксация завершения", err)
	}
	if err := c.fast.RemoveAdmitted(ctx, queueID, userID); err != nil {
		log.Printf("Не удалось удалить токен допуска из Redis, очередь %d, пользователь %d: %v", queueID, userID, err)
	}
	return nil
}

// Exit — добровольный выход. Ожидающий уходит без следа: в базе его и не
// было. Допущенный теряет токен, его запись переводится в EXPIRED.
func (c *Coordinator) Exit(ctx context.Context, queueID, userID uint) error {
	waiting, err := c.fast.IsWaiting(ctx, queueID, userID)
	if err != nil {
		return storeErr("проверка ожидания", err)
	}
	if waiting {
		if err := c.fast.RemoveWaiting(ctx, queueID, userID); err != nil {
			return storeErr("удаление из ожидания", err)
		}
		return nil
	}

	admitted, err := c.fast.IsAdmitted(ctx, queueID, userID)
	if err != nil {
		return storeErr("проверка допуска", err)
	}
	if admitted {
		if err := c.fast.RemoveAdmitted(ctx, queueID, userID); err != nil {
			return storeErr("удаление допуска", err)
		}
		rec, err := c.audit.FindAdmission(ctx, queueID, userID)
		if err != nil {
			return storeErr("поиск записи о допуске", err)
		}
		if rec != nil && rec.Status == models.AdmissionStatusAdmitted {
			if err := c.audit.MarkExpired(ctx, queueID, userID); err != nil {
				return storeErr("перевод записи в EXPIRED", err)
			}
		}
		return nil
	}

	return ErrNotInQueue
}

// QueueStatistics — сводные показатели очереди из быстрого хранилища.
type QueueStatistics struct {
	QueueID        uint
	Capacity       int
	TotalWaiting   int64
	TotalAdmitted  int64
	AvailableSlots int64
}

// Statistics считает агрегаты по очереди. Доступные места не уходят в минус;
// превышение вместимости — признак дрейфа счётчика или гонки в Promote,
// о нём пишем в журнал.
func (c *Coordinator) Statistics(ctx context.Context, queueID uint) (*QueueStatistics, error) {
	cfg, err := c.queueConfig(ctx, queueID)
	if err != nil {
		return nil, err
	}
	waiting, err := c.fast.TotalWaiting(ctx, queueID)
	if err != nil {
		return nil, storeErr("подсчёт ожидающих", err)
	}
	admitted, err := c.fast.TotalAdmitted(ctx, queueID)
	if err != nil {
		return nil, storeErr("подсчёт допущенных", err)
	}

	available := int64(cfg.Capacity) - admitted
	if available < 0 {
		log.Printf("Внимание: в очереди %d допущено %d при вместимости %d", queueID, admitted, cfg.Capacity)
		available = 0
	}
	return &QueueStatistics{
		QueueID:        queueID,
		Capacity:       cfg.Capacity,
		TotalWaiting:   waiting,
		TotalAdmitted:  admitted,
		AvailableSlots: available,
	}, nil
}

// AvailableSlots возвращает число свободных мест допуска (не меньше нуля).
func (c *Coordinator) AvailableSlots(ctx context.Context, queueID uint) (int64, error) {
	stats, err := c.Statistics(ctx, queueID)
	if err != nil {
		return 0, err
	}
	return stats.AvailableSlots, nil
}

// CanAdmitMore сообщает, есть ли свободные места под допуск.
func (c *Coordinator) CanAdmitMore(ctx context.Context, queueID uint) (bool, error) {
	available, err := c.AvailableSlots(ctx, queueID)
	if err != nil {
		return false, err
	}
	return available > 0, nil
}

func (c *Coordinator) queueConfig(ctx context.Context, queueID uint) (*models.QueueConfig, error) {
	cfg, err := c.audit.FindQueueConfig(ctx, queueID)
	if err != nil {
		if errors.Is(err, ErrQueueNotFound) {
			return nil, ErrQueueNotFound
		}
		return nil, storeErr("чтение конфигурации очереди", err)
	}
	return cfg, nil
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
}
