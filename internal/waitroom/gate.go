package waitroom

import (
	"context"

	"ticket_waitroom/internal/models"
)

// Gate — единственная проверка, от которой разрешено зависеть потоку
// бронирования: допущен ли пользователь прямо сейчас.
type Gate struct {
	resolver QueueKeyResolver
	fast     FastOrderedStore
}

func NewGate(resolver QueueKeyResolver, fast FastOrderedStore) *Gate {
	return &Gate{resolver: resolver, fast: fast}
}

// AssertEnterable разрешает или запрещает вход к защищённому ресурсу.
// Любой отрицательный или неопределённый исход (очередь не настроена, Redis
// недоступен, пользователь не допущен) сворачивается в один ответ
// ErrNotEnterable: внутренности очереди наружу не утекают, и ветвиться по
// под-причинам вызывающий не может.
func (g *Gate) AssertEnterable(ctx context.Context, performanceID, userID uint) error {
	queueID, err := g.resolver.ResolveQueueKey(ctx, performanceID, models.QueueKindBooking)
	if err != nil {
		return ErrNotEnterable
	}
	admitted, err := g.fast.IsAdmitted(ctx, queueID, userID)
	if err != nil || !admitted {
		return ErrNotEnterable
	}
	return nil
}
