package services

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/voyago/booking-backend/internal/database"
	"github.com/voyago/booking-backend/internal/models"
	"github.com/voyago/booking-backend/pkg/provider"
)

// memoryStore is an in-memory BookingStore, StatusLogStore, OutboxStore and MismatchFinder
// with the same guarded-write semantics as the SQL repository.
type memoryStore struct {
	mu       sync.Mutex
	bookings map[models.BookingKind]map[uuid.UUID]*models.Booking
	logs     map[uuid.UUID][]models.StatusLog
	outbox   []models.OutboxEvent
	nextLog  int64

	getCalls   int
	applyCalls int
	// applyErr is returned by ApplyStatusChange before anything is written
	applyErr error
	// beforeApply runs with the lock released, before the guarded write
	beforeApply func()
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		bookings: map[models.BookingKind]map[uuid.UUID]*models.Booking{
			models.BookingKindHotel:    {},
			models.BookingKindTour:     {},
			models.BookingKindTransfer: {},
		},
		logs: map[uuid.UUID][]models.StatusLog{},
	}
}

// seed inserts a booking with an initial status log entry, as the booking flow does upstream
func (m *memoryStore) seed(kind models.BookingKind, status models.BookingStatus) *models.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	b := &models.Booking{
		ID:               uuid.New(),
		Kind:             kind,
		BookingReference: "REF-" + uuid.NewString()[:8],
		Status:           status,
		Currency:         "USD",
		NetPrice:         200,
		Markup:           40,
		SellingPrice:     240,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if kind == models.BookingKindHotel {
		pid := "PRV-" + uuid.NewString()[:6]
		b.ProviderBookingID = &pid
	}
	m.bookings[kind][b.ID] = b

	m.nextLog++
	m.logs[b.ID] = append(m.logs[b.ID], models.StatusLog{
		ID:            m.nextLog,
		BookingID:     b.ID,
		ToStatus:      status,
		ChangedByName: "booking-flow",
		CreatedAt:     now,
	})
	return b.Clone()
}

func (m *memoryStore) booking(kind models.BookingKind, id uuid.UUID) *models.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bookings[kind][id].Clone()
}

func (m *memoryStore) statusLogs(id uuid.UUID) []models.StatusLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.StatusLog, len(m.logs[id]))
	copy(out, m.logs[id])
	return out
}

func (m *memoryStore) outboxEvents() []models.OutboxEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.OutboxEvent, len(m.outbox))
	copy(out, m.outbox)
	return out
}

func (m *memoryStore) GetByID(ctx context.Context, kind models.BookingKind, id uuid.UUID) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++

	b, ok := m.bookings[kind][id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return b.Clone(), nil
}

func (m *memoryStore) ApplyStatusChange(ctx context.Context, kind models.BookingKind, change *models.StatusChange) (*models.Booking, error) {
	if m.beforeApply != nil {
		m.beforeApply()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyCalls++

	if m.applyErr != nil {
		return nil, m.applyErr
	}

	b, ok := m.bookings[kind][change.BookingID]
	if !ok {
		return nil, database.ErrNotFound
	}
	if b.Status != change.From {
		return nil, database.ErrStaleStatus
	}

	updated := b.Clone()
	updated.Status = change.To
	updated.UpdatedAt = change.At
	if change.Cancels() {
		at := change.At
		updated.CancelledAt = &at
		updated.CancellationReason = change.Reason
	}
	if change.RefundAmount != nil {
		amount := *change.RefundAmount
		updated.RefundAmount = &amount
	}

	from := change.From
	m.nextLog++
	m.logs[b.ID] = append(m.logs[b.ID], models.StatusLog{
		ID:            m.nextLog,
		BookingID:     b.ID,
		FromStatus:    &from,
		ToStatus:      change.To,
		Reason:        change.Reason,
		ChangedByID:   change.Actor.ID,
		ChangedByName: change.Actor.Name,
		Metadata:      change.Metadata,
		CreatedAt:     change.At,
	})
	m.outbox = append(m.outbox, change.Outbox...)
	m.bookings[kind][b.ID] = updated

	return updated.Clone(), nil
}

func (m *memoryStore) ListByBooking(ctx context.Context, kind models.BookingKind, bookingID uuid.UUID) ([]models.StatusLog, error) {
	logs := m.statusLogs(bookingID)
	sort.SliceStable(logs, func(i, j int) bool {
		if logs[i].CreatedAt.Equal(logs[j].CreatedAt) {
			return logs[i].ID < logs[j].ID
		}
		return logs[i].CreatedAt.Before(logs[j].CreatedAt)
	})
	return logs, nil
}

func (m *memoryStore) FetchPending(ctx context.Context, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.OutboxEvent
	for _, e := range m.outbox {
		if e.DispatchedAt == nil && e.Attempts < maxAttempts {
			out = append(out, e)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memoryStore) MarkDispatched(ctx context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.outbox {
		if m.outbox[i].ID == id && m.outbox[i].DispatchedAt == nil {
			m.outbox[i].DispatchedAt = &at
			m.outbox[i].Attempts++
		}
	}
	return nil
}

func (m *memoryStore) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.outbox {
		if m.outbox[i].ID == id && m.outbox[i].DispatchedAt == nil {
			m.outbox[i].Attempts++
			r := reason
			m.outbox[i].LastError = &r
		}
	}
	return nil
}

func (m *memoryStore) FindStatusMismatches(ctx context.Context, kind models.BookingKind) ([]models.StatusMismatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.StatusMismatch
	for id, b := range m.bookings[kind] {
		logs := m.logs[id]
		if len(logs) == 0 {
			continue
		}
		latest := logs[len(logs)-1]
		if latest.ToStatus != b.Status {
			out = append(out, models.StatusMismatch{
				Kind:             kind,
				BookingID:        id,
				BookingReference: b.BookingReference,
				Status:           b.Status,
				LatestToStatus:   latest.ToStatus,
			})
		}
	}
	return out, nil
}

type memoryAuditStore struct {
	mu        sync.Mutex
	entries   []models.AuditLog
	insertErr error
}

func (s *memoryAuditStore) Insert(ctx context.Context, entry *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *memoryAuditStore) List(ctx context.Context, filter models.AuditLogFilter) ([]models.AuditLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.AuditLog
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if filter.EntityID != nil && (e.EntityID == nil || *e.EntityID != *filter.EntityID) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *memoryAuditStore) forEntity(id uuid.UUID) []models.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.AuditLog
	for _, e := range s.entries {
		if e.EntityID != nil && *e.EntityID == id {
			out = append(out, e)
		}
	}
	return out
}

type recordingTrigger struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (r *recordingTrigger) Notify(ctx context.Context, eventType, kind string, bookingID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, eventType)
	return nil
}

func (r *recordingTrigger) sent() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	copy(out, r.events)
	return out
}

type fakeProvider struct {
	mu     sync.Mutex
	calls  int
	result *provider.ConfirmResult
	err    error
	// block makes ConfirmBooking wait for the context to expire
	block bool
}

func (p *fakeProvider) ConfirmBooking(ctx context.Context, providerBookingID string) (*provider.ConfirmResult, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()

	if p.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return p.result, p.err
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

var errInjected = errors.New("injected failure")

type fixture struct {
	store      *memoryStore
	audit      *memoryAuditStore
	trigger    *recordingTrigger
	provider   *fakeProvider
	dispatcher *OutboxDispatcher
	auditSvc   *AuditService
	service    *TransitionService
	reconciler *ReconciliationService
	logs       *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})

	f := &fixture{
		store:    newMemoryStore(),
		audit:    &memoryAuditStore{},
		trigger:  &recordingTrigger{},
		provider: &fakeProvider{result: &provider.ConfirmResult{Confirmed: true, ProviderStatus: "CONFIRMED"}},
		logs:     &buf,
	}
	f.dispatcher = NewOutboxDispatcher(f.store, f.trigger, logger, 50, 5)
	f.auditSvc = NewAuditService(f.audit, logger)
	f.service = NewTransitionService(f.store, f.store, NewClaimsPermissionChecker(), f.auditSvc, f.dispatcher, logger)
	f.reconciler = NewReconciliationService(f.service, f.provider, f.auditSvc, logger, 200*time.Millisecond, nil)

	t.Cleanup(f.dispatcher.Wait)
	return f
}

func operator(kinds ...models.BookingKind) models.Actor {
	actor := models.Actor{
		ID:        uuid.New(),
		Name:      "Ops Agent",
		IPAddress: "203.0.113.5",
		UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15",
	}
	for _, k := range kinds {
		actor.Permissions = append(actor.Permissions, k.ManagePermission())
	}
	return actor
}
