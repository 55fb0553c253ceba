package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentpay/internal/clock"
	"github.com/smallbiznis/rentpay/internal/config"
	"github.com/smallbiznis/rentpay/internal/payment/domain"
	"github.com/smallbiznis/rentpay/internal/payment/repository"
	"github.com/smallbiznis/rentpay/internal/providers/email"
	"github.com/smallbiznis/rentpay/pkg/db"
	"github.com/smallbiznis/rentpay/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type mockEmail struct {
	mock.Mock
}

func (m *mockEmail) Send(ctx context.Context, msg email.Message) error {
	return m.Called(ctx, msg).Error(0)
}

func newTestService(t *testing.T, provider email.Provider) (*Service, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t, &domain.DocumentRecord{})
	node, err := snowflake.NewNode(7)
	require.NoError(t, err)

	svc := NewService(Params{
		Log:       zap.NewNop(),
		Store:     repository.NewSQLStore(db.NewHandleFromDB(conn), zap.NewNop()),
		Email:     provider,
		Templates: config.NewStaticNotificationConfigHolder(config.DefaultNotificationConfig()),
		GenID:     node,
		Clock:     clock.NewFakeClock(time.Date(2024, 5, 3, 9, 0, 0, 0, time.UTC)),
	})
	return svc, conn
}

func rentRecord() domain.Record {
	return domain.Record{
		PaymentIntentID:   "pi_rent",
		Amount:            152500,
		Status:            "complete",
		TenantID:          "tenant_1",
		TenantEmail:       "a@b.com",
		RentMonth:         "2024-05",
		RentAmount:        150000,
		AdditionalCharges: 2500,
	}
}

func countNotifications(t *testing.T, conn *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(&domain.DocumentRecord{}).
		Where("collection = ?", domain.CollectionNotifications).
		Count(&n).Error)
	return n
}

func TestMaybeNotifySendsOnceForMetadataRecord(t *testing.T) {
	provider := &mockEmail{}
	provider.On("Send", mock.Anything, mock.MatchedBy(func(msg email.Message) bool {
		return msg.To == "a@b.com"
	})).Return(nil).Once()

	svc, conn := newTestService(t, provider)
	sent := svc.MaybeNotify(context.Background(), rentRecord())

	assert.True(t, sent)
	provider.AssertExpectations(t)

	msg := provider.Calls[0].Arguments.Get(1).(email.Message)
	assert.Equal(t, "Rent payment complete for 2024-05", msg.Subject)
	assert.Contains(t, msg.Text, "Rent amount: $1,500.00")
	assert.Contains(t, msg.Text, "Additional charges: $25.00")
	assert.Contains(t, msg.Text, "Status: complete")
	assert.EqualValues(t, 1, countNotifications(t, conn))
}

func TestMaybeNotifySkipsBareRecord(t *testing.T) {
	provider := &mockEmail{}
	svc, conn := newTestService(t, provider)

	sent := svc.MaybeNotify(context.Background(), domain.Record{PaymentIntentID: "pi_1", Amount: 100, Status: "succeeded"})

	assert.False(t, sent)
	provider.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	assert.Zero(t, countNotifications(t, conn))
}

func TestMaybeNotifySwallowsEmailFailure(t *testing.T) {
	provider := &mockEmail{}
	provider.On("Send", mock.Anything, mock.Anything).Return(errors.New("status 500")).Once()
	svc, conn := newTestService(t, provider)

	assert.NotPanics(t, func() {
		assert.False(t, svc.MaybeNotify(context.Background(), rentRecord()))
	})

	var stored domain.DocumentRecord
	require.NoError(t, conn.Where("collection = ?", domain.CollectionNotifications).Take(&stored).Error)
	assert.Equal(t, StatusFailed, stored.Data["status"])
	assert.Equal(t, "status 500", stored.Data["error"])
}

func TestMaybeNotifySkipsWithoutTenantEmail(t *testing.T) {
	provider := &mockEmail{}
	svc, _ := newTestService(t, provider)

	record := rentRecord()
	record.TenantEmail = ""
	assert.False(t, svc.MaybeNotify(context.Background(), record))
	provider.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestMaybeNotifySkipsRedeliveredStatus(t *testing.T) {
	provider := &mockEmail{}
	provider.On("Send", mock.Anything, mock.Anything).Return(nil).Once()
	svc, conn := newTestService(t, provider)

	assert.True(t, svc.MaybeNotify(context.Background(), rentRecord()))
	assert.False(t, svc.MaybeNotify(context.Background(), rentRecord()), "same payment status is emailed once")

	provider.AssertNumberOfCalls(t, "Send", 1)
	assert.EqualValues(t, 1, countNotifications(t, conn))
}

func TestMaybeNotifySendsAgainOnStatusChange(t *testing.T) {
	provider := &mockEmail{}
	provider.On("Send", mock.Anything, mock.Anything).Return(nil).Twice()
	svc, conn := newTestService(t, provider)

	processing := rentRecord()
	processing.Status = "processing"
	assert.True(t, svc.MaybeNotify(context.Background(), processing))
	assert.True(t, svc.MaybeNotify(context.Background(), rentRecord()))

	provider.AssertExpectations(t)
	assert.EqualValues(t, 2, countNotifications(t, conn))
}

func TestMaybeNotifyRetriesAfterFailedSend(t *testing.T) {
	provider := &mockEmail{}
	provider.On("Send", mock.Anything, mock.Anything).Return(errors.New("status 502")).Once()
	provider.On("Send", mock.Anything, mock.Anything).Return(nil).Once()
	svc, conn := newTestService(t, provider)

	assert.False(t, svc.MaybeNotify(context.Background(), rentRecord()))
	assert.True(t, svc.MaybeNotify(context.Background(), rentRecord()))

	var stored domain.DocumentRecord
	require.NoError(t, conn.Where("collection = ? AND document_id = ?", domain.CollectionNotifications, "pi_rent:complete").
		Take(&stored).Error)
	assert.Equal(t, StatusSent, stored.Data["status"])
	assert.Empty(t, stored.Data["error"])
	assert.NotEmpty(t, stored.Data["attemptId"])
	assert.EqualValues(t, 1, countNotifications(t, conn))
}

func TestNotificationKey(t *testing.T) {
	assert.Equal(t, "pi_1:complete", NotificationKey(domain.Record{PaymentIntentID: " pi_1 ", Status: " Complete"}))
	assert.Equal(t, "pi_1:unknown", NotificationKey(domain.Record{PaymentIntentID: "pi_1"}))
}

func TestFormatMoney(t *testing.T) {
	cases := map[int64]string{
		0:         "$0.00",
		5:         "$0.05",
		150000:    "$1,500.00",
		123456789: "$1,234,567.89",
		-2500:     "-$25.00",
	}
	for in, want := range cases {
		assert.Equal(t, want, formatMoney(in), in)
	}
}
