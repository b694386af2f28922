package waitroom

import (
	"context"
	"sort"
	"sync"
	"time"

	"ticket_waitroom/internal/models"
)

// fakeFastStore — потокобезопасная модель Redis в памяти для тестов ядра.
// Переходы ожидание→допуск атомарны под mutex, как Lua-скрипты в redisq.
// Через failOn можно подложить отказ под конкретную операцию.
type fakeFastStore struct {
	mu        sync.Mutex
	waiting   map[uint]map[uint]float64
	admitted  map[uint]map[uint]fakeAdmission
	joinScore map[uint]map[uint]float64
	counter   map[uint]int64
	failOn    map[string]error
}

type fakeAdmission struct {
	expiresAt time.Time
	token     string
}

func newFakeFastStore() *fakeFastStore {
	return &fakeFastStore{
		waiting:   make(map[uint]map[uint]float64),
		admitted:  make(map[uint]map[uint]fakeAdmission),
		joinScore: make(map[uint]map[uint]float64),
		counter:   make(map[uint]int64),
		failOn:    make(map[string]error),
	}
}

func (f *fakeFastStore) fail(op string) error {
	return f.failOn[op]
}

func (f *fakeFastStore) AddWaiting(ctx context.Context, queueID, userID uint, score float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("AddWaiting"); err != nil {
		return err
	}
	if f.waiting[queueID] == nil {
		f.waiting[queueID] = make(map[uint]float64)
	}
	if _, ok := f.waiting[queueID][userID]; !ok {
		f.waiting[queueID][userID] = score
	}
	return nil
}

func (f *fakeFastStore) RemoveWaiting(ctx context.Context, queueID, userID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("RemoveWaiting"); err != nil {
		return err
	}
	delete(f.waiting[queueID], userID)
	return nil
}

// sortedWaiting возвращает ожидающих по возрастанию score. Вызывать под mutex.
func (f *fakeFastStore) sortedWaiting(queueID uint) []uint {
	users := make([]uint, 0, len(f.waiting[queueID]))
	for u := range f.waiting[queueID] {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		si, sj := f.waiting[queueID][users[i]], f.waiting[queueID][users[j]]
		if si == sj {
			return users[i] < users[j]
		}
		return si < sj
	})
	return users
}

func (f *fakeFastStore) RankInWaiting(ctx context.Context, queueID, userID uint) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("RankInWaiting"); err != nil {
		return 0, err
	}
	for i, u := range f.sortedWaiting(queueID) {
		if u == userID {
			return int64(i) + 1, nil
		}
	}
	return 0, ErrNotInQueue
}

func (f *fakeFastStore) CountAheadInWaiting(ctx context.Context, queueID, userID uint) (int64, error) {
	rank, err := f.RankInWaiting(ctx, queueID, userID)
	if err != nil {
		return 0, err
	}
	return rank - 1, nil
}

func (f *fakeFastStore) TotalWaiting(ctx context.Context, queueID uint) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("TotalWaiting"); err != nil {
		return 0, err
	}
	return int64(len(f.waiting[queueID])), nil
}

func (f *fakeFastStore) TopWaiting(ctx context.Context, queueID uint, n int64) ([]uint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("TopWaiting"); err != nil {
		return nil, err
	}
	users := f.sortedWaiting(queueID)
	if int64(len(users)) > n {
		users = users[:n]
	}
	return users, nil
}

func (f *fakeFastStore) IsWaiting(ctx context.Context, queueID, userID uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("IsWaiting"); err != nil {
		return false, err
	}
	_, ok := f.waiting[queueID][userID]
	return ok, nil
}

func (f *fakeFastStore) JoinScore(ctx context.Context, queueID, userID uint) (float64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("JoinScore"); err != nil {
		return 0, false, err
	}
	score, ok := f.waiting[queueID][userID]
	return score, ok, nil
}

func (f *fakeFastStore) MoveToAdmitted(ctx context.Context, queueID, userID uint, ttl time.Duration, token string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("MoveToAdmitted"); err != nil {
		return false, err
	}
	score, ok := f.waiting[queueID][userID]
	if !ok {
		return false, nil
	}
	delete(f.waiting[queueID], userID)
	if f.admitted[queueID] == nil {
		f.admitted[queueID] = make(map[uint]fakeAdmission)
	}
	f.admitted[queueID][userID] = fakeAdmission{
		expiresAt: time.Now().Add(ttl),
		token:     token,
	}
	if f.joinScore[queueID] == nil {
		f.joinScore[queueID] = make(map[uint]float64)
	}
	f.joinScore[queueID][userID] = score
	return true, nil
}

func (f *fakeFastStore) IsAdmitted(ctx context.Context, queueID, userID uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("IsAdmitted"); err != nil {
		return false, err
	}
	adm, ok := f.admitted[queueID][userID]
	if !ok {
		return false, nil
	}
	return adm.expiresAt.After(time.Now()), nil
}

func (f *fakeFastStore) RemoveAdmitted(ctx context.Context, queueID, userID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("RemoveAdmitted"); err != nil {
		return err
	}
	delete(f.admitted[queueID], userID)
	delete(f.joinScore[queueID], userID)
	return nil
}

func (f *fakeFastStore) TotalAdmitted(ctx context.Context, queueID uint) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("TotalAdmitted"); err != nil {
		return 0, err
	}
	now := time.Now()
	var total int64
	for _, adm := range f.admitted[queueID] {
		if adm.expiresAt.After(now) {
			total++
		}
	}
	return total, nil
}

func (f *fakeFastStore) IncrementAdmittedCounter(ctx context.Context, queueID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("IncrementAdmittedCounter"); err != nil {
		return err
	}
	f.counter[queueID]++
	return nil
}

func (f *fakeFastStore) RollbackToWaiting(ctx context.Context, queueID, userID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("RollbackToWaiting"); err != nil {
		return err
	}
	if _, ok := f.admitted[queueID][userID]; !ok {
		return nil
	}
	delete(f.admitted[queueID], userID)
	score, ok := f.joinScore[queueID][userID]
	if !ok {
		score = float64(time.Now().UnixNano())
	}
	delete(f.joinScore[queueID], userID)
	if f.waiting[queueID] == nil {
		f.waiting[queueID] = make(map[uint]float64)
	}
	f.waiting[queueID][userID] = score
	return nil
}

func (f *fakeFastStore) ClearAll(ctx context.Context, queueID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.waiting, queueID)
	delete(f.admitted, queueID)
	delete(f.joinScore, queueID)
	delete(f.counter, queueID)
	return nil
}

// fakeAuditStore — модель базы допусков в памяти.
type fakeAuditStore struct {
	mu         sync.Mutex
	configs    map[uint]*models.QueueConfig
	admissions map[[2]uint]*models.AdmissionRecord
	// failUpsert подкладывает отказ записи допуска: глобально или по пользователю.
	failUpsert    error
	failUpsertFor map[uint]error
	failFind      error
}

func newFakeAuditStore() *fakeAuditStore {
	return &fakeAuditStore{
		configs:       make(map[uint]*models.QueueConfig),
		admissions:    make(map[[2]uint]*models.AdmissionRecord),
		failUpsertFor: make(map[uint]error),
	}
}

func (f *fakeAuditStore) addConfig(queueID, performanceID uint, capacity, ttlMinutes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cfg := &models.QueueConfig{
		PerformanceID:       performanceID,
		Kind:                models.QueueKindBooking,
		Capacity:            capacity,
		AdmissionTTLMinutes: ttlMinutes,
	}
	cfg.ID = queueID
	f.configs[queueID] = cfg
}

func (f *fakeAuditStore) FindQueueConfig(ctx context.Context, queueID uint) (*models.QueueConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cfg, ok := f.configs[queueID]
	if !ok {
		return nil, ErrQueueNotFound
	}
	return cfg, nil
}

func (f *fakeAuditStore) FindAdmission(ctx context.Context, queueID, userID uint) (*models.AdmissionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFind != nil {
		return nil, f.failFind
	}
	rec, ok := f.admissions[[2]uint{queueID, userID}]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeAuditStore) UpsertAdmission(ctx context.Context, rec *models.AdmissionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpsert != nil {
		return f.failUpsert
	}
	if err := f.failUpsertFor[rec.UserID]; err != nil {
		return err
	}
	cp := *rec
	f.admissions[[2]uint{rec.QueueID, rec.UserID}] = &cp
	return nil
}

func (f *fakeAuditStore) MarkCompleted(ctx context.Context, queueID, userID uint) error {
	return f.setStatus(queueID, userID, models.AdmissionStatusCompleted)
}

func (f *fakeAuditStore) MarkExpired(ctx context.Context, queueID, userID uint) error {
	return f.setStatus(queueID, userID, models.AdmissionStatusExpired)
}

func (f *fakeAuditStore) setStatus(queueID, userID uint, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.admissions[[2]uint{queueID, userID}]
	if !ok {
		return ErrNotInQueue
	}
	rec.Status = status
	return nil
}

func (f *fakeAuditStore) admissionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.admissions)
}

func (f *fakeAuditStore) setExpiresAt(queueID, userID uint, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.admissions[[2]uint{queueID, userID}]; ok {
		rec.ExpiresAt = at
	}
}

// fakeLocker — межтактовая блокировка на обычном mutex.
type fakeLocker struct {
	mu       sync.Mutex
	acquires int
	failWith error
}

func (l *fakeLocker) AcquirePromoteLock(ctx context.Context, queueID uint) (func(), error) {
	if l.failWith != nil {
		return nil, l.failWith
	}
	l.mu.Lock()
	l.acquires++
	return l.mu.Unlock, nil
}

// fakeResolver переводит мероприятие в очередь по подготовленной карте.
type fakeResolver struct {
	keys map[uint]uint
}

func (r *fakeResolver) ResolveQueueKey(ctx context.Context, performanceID uint, kind string) (uint, error) {
	queueID, ok := r.keys[performanceID]
	if !ok {
		return 0, ErrQueueNotFound
	}
	return queueID, nil
}
