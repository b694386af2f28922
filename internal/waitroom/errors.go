package waitroom

import "errors"

// Ошибки ядра очереди. Транспортный слой переводит их в коды ответов,
// само ядро про HTTP ничего не знает.
var (
	// ErrQueueNotFound — очередь с таким идентификатором не настроена.
	ErrQueueNotFound = errors.New("очередь не найдена")

	// ErrAlreadyInQueue — пользователь уже ожидает, допущен или уже
	// завершил проход по этой очереди.
	ErrAlreadyInQueue = errors.New("пользователь уже состоит в очереди")

	// ErrNotInQueue — по пользователю нет ни ожидания, ни допуска, ни записи.
	ErrNotInQueue = errors.New("пользователь не состоит в очереди")

	// ErrNotEnterable — единый отказ проверки допуска. Наружу не
	// раскрывается, какая именно проверка не прошла.
	ErrNotEnterable = errors.New("вход не разрешён")

	// ErrInvalidAdmissionState — попытка завершить допуск без действующего
	// токена (не допущен, уже завершил или токен истёк).
	ErrInvalidAdmissionState = errors.New("недопустимое состояние допуска")

	// ErrStoreUnavailable — отказ Redis или базы данных; ответ «не в очереди»
	// в этом случае не подменяется.
	ErrStoreUnavailable = errors.New("хранилище недоступно")
)
