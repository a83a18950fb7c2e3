package service

import (
	"context"
	"sync"
	"time"

	"deposit-backend/internal/domain"
	"deposit-backend/internal/repository"
)

// fakeStore is an in-memory repository implementation whose UpdateIfStatus
// honors the same compare-and-set guard as the SQL one, so concurrency
// tests exercise the real write protocol.
type fakeStore struct {
	mu           sync.Mutex
	reservations map[int64]*domain.Reservation
	deposits     map[int64]*domain.Deposit
	events       map[int64]*domain.WebhookEvent
	nextID       int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		reservations: make(map[int64]*domain.Reservation),
		deposits:     make(map[int64]*domain.Deposit),
		events:       make(map[int64]*domain.WebhookEvent),
		nextID:       1,
	}
}

func (f *fakeStore) addReservation(res *domain.Reservation) *domain.Reservation {
	f.mu.Lock()
	defer f.mu.Unlock()
	if res.ID == 0 {
		res.ID = f.nextID
		f.nextID++
	}
	f.reservations[res.ID] = res
	return res
}

// ReservationRepository

func (f *fakeStore) Create(ctx context.Context, res *domain.Reservation) error {
	f.addReservation(res)
	return nil
}

func (f *fakeStore) GetByID(ctx context.Context, id int64) (*domain.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res, ok := f.reservations[id]
	if !ok {
		return nil, domain.ErrReservationNotFound
	}
	cp := *res
	return &cp, nil
}

func (f *fakeStore) List(ctx context.Context) ([]domain.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Reservation, 0, len(f.reservations))
	for _, res := range f.reservations {
		out = append(out, *res)
	}
	return out, nil
}

// DepositRepository

type fakeDepositRepo struct {
	store *fakeStore

	mu             sync.Mutex
	updateAttempts int
}

func (f *fakeDepositRepo) countUpdate() {
	f.mu.Lock()
	f.updateAttempts++
	f.mu.Unlock()
}

func (f *fakeDepositRepo) Create(ctx context.Context, dep *domain.Deposit) error {
	s := f.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.deposits {
		if existing.ReservationID == dep.ReservationID {
			return domain.ErrDepositExists
		}
	}
	dep.ID = s.nextID
	s.nextID++
	dep.CreatedOn = time.Now().UTC()
	dep.UpdatedOn = dep.CreatedOn
	cp := *dep
	s.deposits[dep.ID] = &cp
	return nil
}

func (f *fakeDepositRepo) GetByID(ctx context.Context, id int64) (*domain.Deposit, error) {
	s := f.store
	s.mu.Lock()
	defer s.mu.Unlock()
	dep, ok := s.deposits[id]
	if !ok {
		return nil, domain.ErrDepositNotFound
	}
	cp := *dep
	return &cp, nil
}

func (f *fakeDepositRepo) GetByReservation(ctx context.Context, reservationID int64) (*domain.Deposit, error) {
	s := f.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, dep := range s.deposits {
		if dep.ReservationID == reservationID {
			cp := *dep
			return &cp, nil
		}
	}
	return nil, domain.ErrDepositNotFound
}

func (f *fakeDepositRepo) GetByProcessorReference(ctx context.Context, reference string) (*domain.Deposit, error) {
	s := f.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, dep := range s.deposits {
		if dep.ProcessorReference == reference {
			cp := *dep
			return &cp, nil
		}
	}
	return nil, domain.ErrDepositNotFound
}

func (f *fakeDepositRepo) UpdateIfStatus(ctx context.Context, id int64, expectedStatus domain.DepositStatus, expectedCapturedCents int64, mut repository.DepositMutation) (bool, error) {
	f.countUpdate()
	s := f.store
	s.mu.Lock()
	defer s.mu.Unlock()
	dep, ok := s.deposits[id]
	if !ok {
		return false, nil
	}
	if dep.Status != expectedStatus || dep.CapturedAmountCents != expectedCapturedCents {
		return false, nil
	}

	dep.Status = mut.Status
	dep.AuthorizedAmountCents = mut.AuthorizedAmountCents
	dep.CapturedAmountCents = mut.CapturedAmountCents
	if mut.ReplaceProcessorReference {
		dep.ProcessorReference = mut.ProcessorReference
	} else if dep.ProcessorReference == "" && mut.ProcessorReference != "" {
		dep.ProcessorReference = mut.ProcessorReference
	}
	if mut.LastError != "" {
		dep.LastError = mut.LastError
	}
	if mut.ReleaseReason != "" {
		dep.ReleaseReason = mut.ReleaseReason
	}
	if mut.CaptureReason != "" {
		dep.CaptureReason = mut.CaptureReason
	}
	if dep.AuthorizedAt == nil && mut.AuthorizedAt != nil {
		t := *mut.AuthorizedAt
		dep.AuthorizedAt = &t
	}
	if dep.CapturedAt == nil && mut.CapturedAt != nil {
		t := *mut.CapturedAt
		dep.CapturedAt = &t
	}
	if dep.ReleasedAt == nil && mut.ReleasedAt != nil {
		t := *mut.ReleasedAt
		dep.ReleasedAt = &t
	}
	dep.UpdatedOn = time.Now().UTC()
	return true, nil
}

func (f *fakeDepositRepo) ListAuthorizedWithCheckoutBefore(ctx context.Context, cutoff time.Time) ([]domain.Deposit, error) {
	s := f.store
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Deposit
	for _, dep := range s.deposits {
		if dep.Status != domain.DepositStatusAuthorized || dep.CapturedAmountCents > 0 {
			continue
		}
		res, ok := s.reservations[dep.ReservationID]
		if !ok || !res.CheckOutAt.Before(cutoff) {
			continue
		}
		out = append(out, *dep)
	}
	return out, nil
}

// WebhookEventRepository

type fakeEventRepo struct {
	store *fakeStore
}

func (f *fakeEventRepo) InsertIfAbsent(ctx context.Context, ev *domain.WebhookEvent) (bool, error) {
	s := f.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.events {
		if existing.ExternalEventID == ev.ExternalEventID {
			return false, nil
		}
	}
	ev.ID = s.nextID
	s.nextID++
	ev.Status = domain.WebhookEventStatusReceived
	ev.ReceivedAt = time.Now().UTC()
	cp := *ev
	s.events[ev.ID] = &cp
	return true, nil
}

func (f *fakeEventRepo) GetByID(ctx context.Context, id int64) (*domain.WebhookEvent, error) {
	s := f.store
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[id]
	if !ok {
		return nil, domain.ErrDepositNotFound
	}
	cp := *ev
	return &cp, nil
}

func (f *fakeEventRepo) GetByExternalID(ctx context.Context, externalEventID string) (*domain.WebhookEvent, error) {
	s := f.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range s.events {
		if ev.ExternalEventID == externalEventID {
			cp := *ev
			return &cp, nil
		}
	}
	return nil, domain.ErrDepositNotFound
}

func (f *fakeEventRepo) MarkProcessing(ctx context.Context, id int64) error {
	return f.setStatus(id, domain.WebhookEventStatusProcessing)
}

func (f *fakeEventRepo) MarkProcessed(ctx context.Context, id int64) error {
	s := f.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev, ok := s.events[id]; ok {
		ev.Status = domain.WebhookEventStatusProcessed
		now := time.Now().UTC()
		ev.ProcessedAt = &now
	}
	return nil
}

func (f *fakeEventRepo) MarkRetrying(ctx context.Context, id int64, attempts int32, lastError string, nextAttemptAt time.Time) error {
	s := f.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev, ok := s.events[id]; ok {
		ev.Status = domain.WebhookEventStatusRetrying
		ev.Attempts = attempts
		ev.LastError = lastError
		t := nextAttemptAt
		ev.NextAttemptAt = &t
	}
	return nil
}

func (f *fakeEventRepo) MarkFailed(ctx context.Context, id int64, attempts int32, lastError string) error {
	s := f.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev, ok := s.events[id]; ok {
		ev.Status = domain.WebhookEventStatusFailed
		ev.Attempts = attempts
		ev.LastError = lastError
	}
	return nil
}

func (f *fakeEventRepo) setStatus(id int64, status domain.WebhookEventStatus) error {
	s := f.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev, ok := s.events[id]; ok {
		ev.Status = status
	}
	return nil
}

func (f *fakeEventRepo) ListDueForRetry(ctx context.Context, now time.Time, limit int32) ([]domain.WebhookEvent, error) {
	s := f.store
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.WebhookEvent
	for _, ev := range s.events {
		switch ev.Status {
		case domain.WebhookEventStatusReceived, domain.WebhookEventStatusRetrying:
		default:
			continue
		}
		if ev.NextAttemptAt != nil && ev.NextAttemptAt.After(now) {
			continue
		}
		out = append(out, *ev)
		if int32(len(out)) >= limit {
			break
		}
	}
	return out, nil
}
