package services

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voyago/booking-backend/internal/models"
)

func newTestAuditService(store *memoryAuditStore) (*AuditService, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	return NewAuditService(store, logger), &buf
}

func TestAudited_RecordsOnceOnSuccess(t *testing.T) {
	store := &memoryAuditStore{}
	svc, _ := newTestAuditService(store)
	id := uuid.New()

	template := models.NewAuditLog(models.AuditActionMarkupChanged, "tour_booking", operator())
	err := svc.Audited(context.Background(), template, func(ctx context.Context, entry *models.AuditLog) error {
		entry.SetEntity(id)
		entry.Description = "markup changed"
		return nil
	})

	require.NoError(t, err)
	entries := store.forEntity(id)
	require.Len(t, entries, 1)
	assert.Equal(t, "markup changed", entries[0].Description)
	assert.Equal(t, "Ops Agent", entries[0].UserName)
	assert.Equal(t, "203.0.113.5", *entries[0].IPAddress)
}

func TestAudited_NothingRecordedOnFailure(t *testing.T) {
	store := &memoryAuditStore{}
	svc, _ := newTestAuditService(store)
	opErr := errors.New("operation failed")

	err := svc.Audited(context.Background(), models.NewAuditLog(models.AuditActionUpdated, "tour_booking", operator()),
		func(ctx context.Context, entry *models.AuditLog) error { return opErr })

	assert.ErrorIs(t, err, opErr)
	assert.Empty(t, store.entries)
}

func TestRecord_StoreErrorIsLoggedNotReturned(t *testing.T) {
	store := &memoryAuditStore{insertErr: errors.New("disk full")}
	svc, logs := newTestAuditService(store)

	svc.Record(context.Background(), models.NewAuditLog(models.AuditActionExported, "audit_log", models.Actor{Name: "exporter"}))

	assert.Contains(t, logs.String(), "AUDIT ERROR")
	assert.Contains(t, logs.String(), "disk full")
}

func TestRecord_SurvivesCancelledContext(t *testing.T) {
	store := &memoryAuditStore{}
	svc, _ := newTestAuditService(store)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc.Record(ctx, models.NewAuditLog(models.AuditActionStatusChanged, "hotel_booking", operator()).SetEntity(uuid.New()))
	assert.Len(t, store.entries, 1)
}

func TestRecord_NilEntryIsIgnored(t *testing.T) {
	store := &memoryAuditStore{}
	svc, _ := newTestAuditService(store)

	svc.Record(context.Background(), nil)
	assert.Empty(t, store.entries)

	svc.Record(context.Background(), models.NewAuditLog(models.AuditActionLogin, "user", operator()))
	assert.Len(t, store.entries, 1)
}

func TestRecord_AddsDeviceInfo(t *testing.T) {
	store := &memoryAuditStore{}
	svc, _ := newTestAuditService(store)

	svc.Record(context.Background(), models.NewAuditLog(models.AuditActionLogin, "user", operator()))
	require.Len(t, store.entries, 1)
	assert.NotNil(t, store.entries[0].Metadata["device_info"])

	svc.Record(context.Background(), models.NewAuditLog(models.AuditActionLogin, "user", models.Actor{Name: "cron"}))
	require.Len(t, store.entries, 2)
	assert.Nil(t, store.entries[1].Metadata["device_info"])
}

func TestList_RejectsInvertedRange(t *testing.T) {
	svc, _ := newTestAuditService(&memoryAuditStore{})
	from := time.Now()
	to := from.Add(-time.Hour)

	_, err := svc.List(context.Background(), models.AuditLogFilter{From: &from, To: &to})

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "to", ve.Field)
}

func TestList_FiltersByEntity(t *testing.T) {
	f := newFixture(t)
	actor := operator(models.BookingKindTour)
	a := f.store.seed(models.BookingKindTour, models.BookingStatusPending)
	b := f.store.seed(models.BookingKindTour, models.BookingStatusPending)

	_, err := f.service.ChangeTourBookingStatus(context.Background(), a.ID, models.BookingStatusConfirmed, "", actor)
	require.NoError(t, err)
	_, err = f.service.ChangeTourBookingStatus(context.Background(), b.ID, models.BookingStatusCancelled, "duplicate", actor)
	require.NoError(t, err)

	entries, err := f.auditSvc.List(context.Background(), models.AuditLogFilter{EntityID: &b.ID})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, b.ID, *entries[0].EntityID)
}
