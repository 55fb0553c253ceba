package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/smallbiznis/rentpay/internal/clock"
	"github.com/smallbiznis/rentpay/internal/payment/classifier"
	paymentdomain "github.com/smallbiznis/rentpay/internal/payment/domain"
	"github.com/smallbiznis/rentpay/internal/payment/repository"
	paymentservice "github.com/smallbiznis/rentpay/internal/payment/service"
	"github.com/smallbiznis/rentpay/pkg/db"
	"github.com/smallbiznis/rentpay/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) MaybeNotify(ctx context.Context, record paymentdomain.Record) bool {
	return m.Called(ctx, record).Bool(0)
}

type failingStore struct {
	paymentdomain.DocumentStore
}

func (failingStore) Merge(context.Context, string, string, map[string]any, time.Time) (bool, error) {
	return false, errors.New("store down")
}

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) FetchPaymentIntent(ctx context.Context, id string) (paymentdomain.Classification, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(paymentdomain.Classification), args.Error(1)
}

type fixture struct {
	svc      *paymentservice.Service
	store    paymentdomain.DocumentStore
	notifier *mockNotifier
	fetcher  *mockFetcher
	clock    *clock.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t, &paymentdomain.DocumentRecord{})
	store := repository.NewSQLStore(db.NewHandleFromDB(conn), zap.NewNop())
	f := &fixture{
		store:    store,
		notifier: &mockNotifier{},
		fetcher:  &mockFetcher{},
		clock:    clock.NewFakeClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)),
	}
	f.svc = paymentservice.NewService(paymentservice.Params{
		Log:      zap.NewNop(),
		Store:    store,
		Clock:    f.clock,
		Notifier: f.notifier,
		Fetcher:  f.fetcher,
	})
	return f
}

func classify(t *testing.T, eventType string, object any) paymentdomain.Classification {
	t.Helper()
	raw, err := json.Marshal(object)
	require.NoError(t, err)
	c, err := classifier.New().Classify(eventType, raw)
	require.NoError(t, err)
	return c
}

func (f *fixture) record(t *testing.T, eventType string, object any) paymentdomain.RecordResult {
	t.Helper()
	c := classify(t, eventType, object)
	return f.svc.Record(context.Background(), c.EventType, c.Payload)
}

func checkoutSession() map[string]any {
	return map[string]any{
		"id":             "cs_test_1",
		"payment_intent": "pi_789",
		"amount_total":   152500,
		"status":         "complete",
		"payment_status": "paid",
		"metadata": map[string]any{
			"tenantId":          "tenant_1",
			"customer_email":    "a@b.com",
			"propertyId":        "prop_1",
			"propertyOwnerId":   "owner_1",
			"rentMonth":         "2024-05",
			"rentAmount":        150000,
			"additionalCharges": "2500",
			"initialLateFee":    "0",
			"dailyLateFee":      "500",
		},
		"payment_method_options": map[string]any{
			"us_bank_account": map[string]any{},
			"card":            map[string]any{},
		},
	}
}

func TestRecordIsIdempotent(t *testing.T) {
	f := newFixture(t)
	object := map[string]any{"id": "pi_1", "amount": 2000, "status": "succeeded"}

	first := f.record(t, "payment_intent.succeeded", object)
	require.NoError(t, first.Err)
	assert.True(t, first.Created)

	f.clock.Advance(time.Minute)
	second := f.record(t, "payment_intent.succeeded", object)
	require.NoError(t, second.Err)
	assert.False(t, second.Created)

	doc, err := f.store.Get(context.Background(), paymentdomain.CollectionRentalPayments, "pi_1")
	require.NoError(t, err)
	assert.Equal(t, "pi_1", doc["paymentIntentId"])
	assert.EqualValues(t, 2000, doc["amount"])
	assert.Equal(t, "succeeded", doc["status"])
	assert.Equal(t, "stripe", doc["method"])
	assert.WithinDuration(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), doc["createdOn"].(time.Time), time.Millisecond)
	assert.WithinDuration(t, time.Date(2024, 5, 1, 12, 1, 0, 0, time.UTC), doc["updatedOn"].(time.Time), time.Millisecond)
	f.notifier.AssertNotCalled(t, "MaybeNotify", mock.Anything, mock.Anything)
}

func TestRecordRoutesByMetadata(t *testing.T) {
	f := newFixture(t)
	f.notifier.On("MaybeNotify", mock.Anything, mock.Anything).Return(true).Once()

	rent := f.record(t, "checkout.session.completed", checkoutSession())
	require.NoError(t, rent.Err)
	assert.Equal(t, paymentdomain.CollectionRents, rent.Collection)
	assert.Equal(t, "pi_789", rent.DocumentID, "metadata records are keyed by payment_intent, not session id")
	assert.True(t, rent.Notified)

	bare := f.record(t, "payment_intent.created", map[string]any{"id": "pi_2", "amount": 100, "status": "requires_payment_method"})
	require.NoError(t, bare.Err)
	assert.Equal(t, paymentdomain.CollectionRentalPayments, bare.Collection)
	assert.Equal(t, "pi_2", bare.DocumentID)

	_, err := f.store.Get(context.Background(), paymentdomain.CollectionRentalPayments, "pi_789")
	assert.ErrorIs(t, err, paymentdomain.ErrNotFound)
	f.notifier.AssertExpectations(t)
}

func TestRecordExtractsMetadataFields(t *testing.T) {
	f := newFixture(t)
	var notified paymentdomain.Record
	f.notifier.On("MaybeNotify", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { notified = args.Get(1).(paymentdomain.Record) }).
		Return(true)

	result := f.record(t, "checkout.session.completed", checkoutSession())
	require.NoError(t, result.Err)

	doc, err := f.store.Get(context.Background(), paymentdomain.CollectionRents, "pi_789")
	require.NoError(t, err)
	assert.Equal(t, "tenant_1", doc["tenantId"])
	assert.Equal(t, "a@b.com", doc["tenantEmail"])
	assert.Equal(t, "prop_1", doc["propertyId"])
	assert.Equal(t, "owner_1", doc["propertyOwnerId"])
	assert.Equal(t, "2024-05", doc["rentMonth"])
	assert.EqualValues(t, 150000, doc["rentAmount"])
	assert.EqualValues(t, 2500, doc["additionalCharges"])
	assert.EqualValues(t, 500, doc["dailyLateFee"])
	assert.NotContains(t, doc, "initialLateFee")
	assert.Equal(t, "card", doc["paymentMethodType"])
	assert.Equal(t, "tenant_1", doc["createdBy"])
	assert.Equal(t, "tenant_1", doc["updatedBy"])
	assert.Equal(t, "checkout.session.completed", doc["stripeEventType"])
	assert.EqualValues(t, 152500, doc["amount"])

	assert.Equal(t, "a@b.com", notified.TenantEmail)
}

func TestChargeKeyedByPaymentIntentMergesWithIntent(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.record(t, "payment_intent.succeeded", map[string]any{"id": "pi_456", "amount": 2000, "status": "succeeded"}).Err)
	charge := f.record(t, "charge.succeeded", map[string]any{
		"id":             "ch_999",
		"payment_intent": "pi_456",
		"amount":         2000,
		"status":         "succeeded",
		"receipt_url":    "https://pay.stripe.com/receipts/abc",
	})
	require.NoError(t, charge.Err)
	assert.Equal(t, "pi_456", charge.DocumentID)

	_, err := f.store.Get(context.Background(), paymentdomain.CollectionRentalPayments, "ch_999")
	assert.ErrorIs(t, err, paymentdomain.ErrNotFound)

	doc, err := f.store.Get(context.Background(), paymentdomain.CollectionRentalPayments, "pi_456")
	require.NoError(t, err)
	assert.Equal(t, "https://pay.stripe.com/receipts/abc", doc["receiptUrl"])
	assert.Equal(t, "charge.succeeded", doc["stripeEventType"])
}

func TestPoorerEventDoesNotEraseRicherFields(t *testing.T) {
	f := newFixture(t)
	f.notifier.On("MaybeNotify", mock.Anything, mock.Anything).Return(true)

	require.NoError(t, f.record(t, "checkout.session.completed", checkoutSession()).Err)

	// A metadata-only save without amounts lands on the same key.
	result := f.svc.Save(context.Background(), paymentdomain.Record{
		PaymentIntentID: "pi_789",
		TenantID:        "tenant_1",
		Status:          "paid",
	})
	require.NoError(t, result.Err)
	assert.Equal(t, paymentdomain.CollectionRents, result.Collection)

	doc, err := f.store.Get(context.Background(), paymentdomain.CollectionRents, "pi_789")
	require.NoError(t, err)
	assert.Equal(t, "paid", doc["status"])
	assert.EqualValues(t, 150000, doc["rentAmount"])
	assert.Equal(t, "a@b.com", doc["tenantEmail"])
}

func TestSaveRequiresPaymentIntent(t *testing.T) {
	f := newFixture(t)
	result := f.svc.Save(context.Background(), paymentdomain.Record{Status: "paid"})
	assert.ErrorIs(t, result.Err, paymentdomain.ErrInvalidEvent)
}

func TestWriteFailureIsReportedNotRaised(t *testing.T) {
	notifier := &mockNotifier{}
	svc := paymentservice.NewService(paymentservice.Params{
		Log:      zap.NewNop(),
		Store:    failingStore{},
		Clock:    clock.NewFakeClock(time.Now()),
		Notifier: notifier,
	})

	c := classify(t, "checkout.session.completed", checkoutSession())
	result := svc.Record(context.Background(), c.EventType, c.Payload)

	require.Error(t, result.Err)
	assert.False(t, result.OK())
	notifier.AssertNotCalled(t, "MaybeNotify", mock.Anything, mock.Anything)
}

func TestResyncRecordsFetchedIntent(t *testing.T) {
	f := newFixture(t)
	f.fetcher.On("FetchPaymentIntent", mock.Anything, "pi_sync").Return(paymentdomain.Classification{
		EventType: paymentdomain.EventPaymentIntentSucceeded,
		Payload:   paymentdomain.Payload{ID: "pi_sync", Amount: 4200, Status: "succeeded"},
	}, nil)

	result := f.svc.Resync(context.Background(), "pi_sync")
	require.NoError(t, result.Err)
	assert.Equal(t, paymentdomain.CollectionRentalPayments, result.Collection)

	doc, err := f.svc.Find(context.Background(), paymentdomain.CollectionRentalPayments, "pi_sync")
	require.NoError(t, err)
	assert.EqualValues(t, 4200, doc["amount"])
}

func TestResyncPropagatesFetchError(t *testing.T) {
	f := newFixture(t)
	f.fetcher.On("FetchPaymentIntent", mock.Anything, "pi_missing").Return(paymentdomain.Classification{}, paymentdomain.ErrNotFound)

	result := f.svc.Resync(context.Background(), "pi_missing")
	assert.ErrorIs(t, result.Err, paymentdomain.ErrNotFound)
}

func TestFindRejectsUnknownCollection(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Find(context.Background(), "users", "x")
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidCollection)
}
