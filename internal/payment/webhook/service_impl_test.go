package webhook_test

import (
	"context"
	"sync"
	"testing"

	"github.com/smallbiznis/rentpay/internal/config"
	"github.com/smallbiznis/rentpay/internal/payment/adapters/stripe"
	"github.com/smallbiznis/rentpay/internal/payment/adapters/stripe/stripetest"
	"github.com/smallbiznis/rentpay/internal/payment/classifier"
	paymentdomain "github.com/smallbiznis/rentpay/internal/payment/domain"
	"github.com/smallbiznis/rentpay/internal/payment/webhook"
	"github.com/smallbiznis/rentpay/pkg/log/ctxlogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const testSecret = "whsec_webhook_test"

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) Record(ctx context.Context, eventType paymentdomain.EventType, payload paymentdomain.Payload) paymentdomain.RecordResult {
	return m.Called(ctx, eventType, payload).Get(0).(paymentdomain.RecordResult)
}

func (m *mockRecorder) Save(ctx context.Context, record paymentdomain.Record) paymentdomain.RecordResult {
	return m.Called(ctx, record).Get(0).(paymentdomain.RecordResult)
}

func (m *mockRecorder) Resync(ctx context.Context, id string) paymentdomain.RecordResult {
	return m.Called(ctx, id).Get(0).(paymentdomain.RecordResult)
}

func (m *mockRecorder) Find(ctx context.Context, collection, id string) (paymentdomain.Document, error) {
	args := m.Called(ctx, collection, id)
	doc, _ := args.Get(0).(paymentdomain.Document)
	return doc, args.Error(1)
}

type memoryDeduper struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newMemoryDeduper() *memoryDeduper {
	return &memoryDeduper{seen: map[string]bool{}}
}

func (d *memoryDeduper) Seen(_ context.Context, eventID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seen[eventID], nil
}

func (d *memoryDeduper) Mark(_ context.Context, eventID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen[eventID] = true
	return nil
}

type fixture struct {
	svc        *webhook.Service
	recorder   *mockRecorder
	dispatcher *webhook.Dispatcher
	deduper    *memoryDeduper
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.Config{Stripe: config.StripeConfig{WebhookSecret: testSecret}}
	f := &fixture{
		recorder:   &mockRecorder{},
		dispatcher: webhook.NewDispatcher(webhook.DispatcherParams{Cfg: cfg, Log: zap.NewNop()}),
		deduper:    newMemoryDeduper(),
	}
	f.svc = webhook.NewService(webhook.Params{
		Log:        zap.NewNop(),
		Verifier:   stripe.NewVerifier(cfg, zap.NewNop()),
		Classifier: classifier.New(),
		Recorder:   f.recorder,
		Dispatcher: f.dispatcher,
		Deduper:    f.deduper,
	})
	return f
}

// drain runs every queued task on the test goroutine.
func (f *fixture) drain(t *testing.T) {
	t.Helper()
	require.NoError(t, f.dispatcher.Stop(context.Background()))
}

func signed(id, eventType string, object any) ([]byte, string) {
	payload := stripetest.Event(id, eventType, object)
	return payload, stripetest.SignatureHeader(testSecret, payload)
}

func TestReceiveQueuesClassifiedEvent(t *testing.T) {
	f := newFixture(t)
	f.recorder.On("Record", mock.Anything, paymentdomain.EventChargeSucceeded, mock.MatchedBy(func(p paymentdomain.Payload) bool {
		return p.ID == "pi_456"
	})).Return(paymentdomain.RecordResult{Collection: paymentdomain.CollectionRentalPayments, DocumentID: "pi_456"}).Once()

	payload, header := signed("evt_1", "charge.succeeded", map[string]any{
		"id":             "ch_999",
		"payment_intent": "pi_456",
		"amount":         2000,
		"status":         "succeeded",
	})
	require.NoError(t, f.svc.Receive(context.Background(), payload, header))
	f.drain(t)

	f.recorder.AssertExpectations(t)
	seen, _ := f.deduper.Seen(context.Background(), "evt_1")
	assert.True(t, seen)
}

func TestReceiveRejectsBadSignature(t *testing.T) {
	f := newFixture(t)
	payload := stripetest.Event("evt_1", "payment_intent.succeeded", map[string]any{"id": "pi_1"})

	err := f.svc.Receive(context.Background(), payload, stripetest.SignatureHeader("whsec_wrong", payload))
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidSignature)

	err = f.svc.Receive(context.Background(), payload, "")
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidSignature)

	f.drain(t)
	f.recorder.AssertNotCalled(t, "Record", mock.Anything, mock.Anything, mock.Anything)
}

func TestReceiveIgnoresUnknownEventType(t *testing.T) {
	f := newFixture(t)
	payload, header := signed("evt_2", "customer.created", map[string]any{"id": "cus_1"})

	require.NoError(t, f.svc.Receive(context.Background(), payload, header))
	f.drain(t)

	f.recorder.AssertNotCalled(t, "Record", mock.Anything, mock.Anything, mock.Anything)
}

func TestReceiveAcksChargeWithoutPaymentIntent(t *testing.T) {
	f := newFixture(t)
	payload, header := signed("evt_3", "charge.failed", map[string]any{"id": "ch_1", "status": "failed"})

	require.NoError(t, f.svc.Receive(context.Background(), payload, header))
	f.drain(t)

	f.recorder.AssertNotCalled(t, "Record", mock.Anything, mock.Anything, mock.Anything)
}

func TestReceiveSkipsRedeliveredEvent(t *testing.T) {
	f := newFixture(t)
	f.recorder.On("Record", mock.Anything, paymentdomain.EventPaymentIntentSucceeded, mock.Anything).
		Return(paymentdomain.RecordResult{DocumentID: "pi_1"}).Once()
	f.dispatcher.Start()

	payload, header := signed("evt_4", "payment_intent.succeeded", map[string]any{"id": "pi_1", "amount": 10, "status": "succeeded"})
	require.NoError(t, f.svc.Receive(context.Background(), payload, header))
	require.NoError(t, f.dispatcher.Stop(context.Background()))

	// The dispatcher is stopped, so a second submission would run inline.
	require.NoError(t, f.svc.Receive(context.Background(), payload, header))

	f.recorder.AssertNumberOfCalls(t, "Record", 1)
}

func TestReceiveDoesNotMarkFailedRecord(t *testing.T) {
	f := newFixture(t)
	f.recorder.On("Record", mock.Anything, mock.Anything, mock.Anything).
		Return(paymentdomain.RecordResult{Err: paymentdomain.ErrStoreUnavailable})

	payload, header := signed("evt_5", "payment_intent.created", map[string]any{"id": "pi_5", "status": "requires_payment_method"})
	require.NoError(t, f.svc.Receive(context.Background(), payload, header), "write failures never reach the provider")
	f.drain(t)

	seen, _ := f.deduper.Seen(context.Background(), "evt_5")
	assert.False(t, seen)
}

func TestReceiveDetachesTaskContext(t *testing.T) {
	f := newFixture(t)
	var taskCtx context.Context
	f.recorder.On("Record", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { taskCtx = args.Get(0).(context.Context) }).
		Return(paymentdomain.RecordResult{})

	ctx, cancel := context.WithCancel(context.Background())
	payload, header := signed("evt_6", "payment_intent.processing", map[string]any{"id": "pi_6", "status": "processing"})
	require.NoError(t, f.svc.Receive(ctx, payload, header))
	cancel()
	f.drain(t)

	require.NotNil(t, taskCtx)
	assert.NoError(t, taskCtx.Err())

	core, logs := observer.New(zap.InfoLevel)
	ctxlogger.WithContext(taskCtx, zap.New(core)).Info("recorded")
	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "evt_6", fields["event_id"])
	assert.Equal(t, "payment_intent.processing", fields["event_type"])
}
