package waitroom

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPerformanceID = uint(100)

func newTestGate(capacity int) (*Gate, *Coordinator, *fakeFastStore) {
	fast := newFakeFastStore()
	audit := newFakeAuditStore()
	audit.addConfig(testQueueID, testPerformanceID, capacity, testTTL)
	coord := NewCoordinator(fast, audit)
	resolver := &fakeResolver{keys: map[uint]uint{testPerformanceID: testQueueID}}
	return NewGate(resolver, fast), coord, fast
}

func TestAssertEnterableAdmittedUser(t *testing.T) {
	gate, coord, _ := newTestGate(2)
	ctx := context.Background()

	_, err := coord.Join(ctx, testQueueID, 11)
	require.NoError(t, err)
	require.NoError(t, coord.Promote(ctx, testQueueID, 11))

	assert.NoError(t, gate.AssertEnterable(ctx, testPerformanceID, 11))
}

func TestAssertEnterableWaitingUser(t *testing.T) {
	gate, coord, _ := newTestGate(2)
	ctx := context.Background()

	_, err := coord.Join(ctx, testQueueID, 11)
	require.NoError(t, err)

	err = gate.AssertEnterable(ctx, testPerformanceID, 11)
	assert.ErrorIs(t, err, ErrNotEnterable, "Ожидающий ещё не допущен")
}

func TestAssertEnterableUnknownUser(t *testing.T) {
	gate, _, _ := newTestGate(2)

	err := gate.AssertEnterable(context.Background(), testPerformanceID, 11)
	assert.ErrorIs(t, err, ErrNotEnterable)
}

func TestAssertEnterableUnknownPerformance(t *testing.T) {
	gate, _, _ := newTestGate(2)

	err := gate.AssertEnterable(context.Background(), 999, 11)
	assert.ErrorIs(t, err, ErrNotEnterable, "Ненастроенная очередь не раскрывается отдельной ошибкой")
}

func TestAssertEnterableStoreDown(t *testing.T) {
	gate, coord, fast := newTestGate(2)
	ctx := context.Background()

	_, err := coord.Join(ctx, testQueueID, 11)
	require.NoError(t, err)
	require.NoError(t, coord.Promote(ctx, testQueueID, 11))

	// Неопределённость тоже сворачивается в общий отказ: при недоступном
	// Redis вход закрыт.
	fast.failOn["IsAdmitted"] = errors.New("connection refused")
	err = gate.AssertEnterable(ctx, testPerformanceID, 11)
	assert.ErrorIs(t, err, ErrNotEnterable)
}

func TestAssertEnterableAfterComplete(t *testing.T) {
	gate, coord, _ := newTestGate(2)
	ctx := context.Background()

	_, err := coord.Join(ctx, testQueueID, 11)
	require.NoError(t, err)
	require.NoError(t, coord.Promote(ctx, testQueueID, 11))
	require.NoError(t, coord.Complete(ctx, testQueueID, 11))

	err = gate.AssertEnterable(ctx, testPerformanceID, 11)
	assert.ErrorIs(t, err, ErrNotEnterable, "Потреблённый допуск больше не открывает вход")
}
