package donation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/donation-bot/internal/lib/sl"
	"github.com/magabrotheeeer/donation-bot/internal/models"
	"github.com/magabrotheeeer/donation-bot/internal/services/catalog"
)

type staticCatalog []models.Package

func (c staticCatalog) SelectByAmount(_ context.Context, amount int64) (*models.Package, bool, error) {
	pkg, ok := catalog.SelectPackage(c, amount)
	return pkg, ok, nil
}

type LifecycleMock struct{ mock.Mock }

func (m *LifecycleMock) Activate(ctx context.Context, userID, packageType string) (time.Time, error) {
	args := m.Called(ctx, userID, packageType)
	return args.Get(0).(time.Time), args.Error(1)
}

type MessengerMock struct{ mock.Mock }

func (m *MessengerMock) SendMessage(ctx context.Context, to, body string) error {
	return m.Called(ctx, to, body).Error(0)
}

func (m *MessengerMock) SetStatus(ctx context.Context, status string) error {
	return m.Called(ctx, status).Error(0)
}

type SubscribersMock struct{ mock.Mock }

func (m *SubscribersMock) AddPhoneNumber(ctx context.Context, name, phoneNumber string) error {
	return m.Called(ctx, name, phoneNumber).Error(0)
}

type TransactionsMock struct{ mock.Mock }

func (m *TransactionsMock) LastTransaction(ctx context.Context) (*models.Transaction, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

type MailerMock struct{ mock.Mock }

func (m *MailerMock) SendLicenseKey(to, supporterName string, amount int64, pkg models.Package) error {
	return m.Called(to, supporterName, amount, pkg).Error(0)
}

var packages = staticCatalog{
	{Type: "bronze", Price: 10000, LicenseKey: "BRZ-1"},
	{Type: "silver", Price: 30000, LicenseKey: "SLV-1"},
	{Type: "gold", Price: 100000, LicenseKey: "GLD-1"},
}

const supporterPhone = "6281234567890@c.us"

type mocks struct {
	lifecycle   *LifecycleMock
	messenger   *MessengerMock
	subscribers *SubscribersMock
}

func newService(opts ...Option) (*Service, mocks) {
	m := mocks{
		lifecycle:   new(LifecycleMock),
		messenger:   new(MessengerMock),
		subscribers: new(SubscribersMock),
	}
	opts = append([]Option{WithKeyDelay(0)}, opts...)
	return New(packages, m.lifecycle, m.messenger, m.subscribers, sl.Discard(), opts...), m
}

func TestProcess_SelectsPackageAndDeliversKey(t *testing.T) {
	s, m := newService()
	expires := time.Date(2024, 6, 9, 0, 0, 0, 0, time.UTC)

	m.messenger.On("SetStatus", mock.Anything, mock.AnythingOfType("string")).Return(nil).Once()
	m.lifecycle.On("Activate", mock.Anything, supporterPhone, "silver").Return(expires, nil).Once()
	sendThanks := m.messenger.On("SendMessage", mock.Anything, supporterPhone,
		mock.MatchedBy(func(body string) bool { return strings.Contains(body, "paket silver") })).Return(nil).Once()
	m.messenger.On("SendMessage", mock.Anything, supporterPhone, "SLV-1").Return(nil).Once().NotBefore(sendThanks)
	m.subscribers.On("AddPhoneNumber", mock.Anything, "Andi", supporterPhone).Return(nil).Once()

	res, err := s.Process(context.Background(), models.DonationPayload{
		SupporterName:    "Andi",
		SupporterMessage: "terima kasih, 081234567890",
		Price:            50000,
	})
	require.NoError(t, err)

	assert.Equal(t, supporterPhone, res.Phone)
	require.NotNil(t, res.Package)
	assert.Equal(t, "silver", res.Package.Type)
	assert.Equal(t, int64(30000), res.Package.Price)
	assert.True(t, res.Activated)
	assert.Equal(t, expires, res.Expires)
	m.lifecycle.AssertExpectations(t)
	m.messenger.AssertExpectations(t)
	m.subscribers.AssertExpectations(t)
}

func TestProcess_NoPhoneOnlyUpdatesStatus(t *testing.T) {
	s, m := newService()
	m.messenger.On("SetStatus", mock.Anything, mock.Anything).Return(nil).Once()

	res, err := s.Process(context.Background(), models.DonationPayload{
		SupporterName:    "Budi",
		SupporterMessage: "semangat!",
		Price:            100000,
	})
	require.NoError(t, err)
	assert.Empty(t, res.Phone)
	assert.False(t, res.Activated)
	m.lifecycle.AssertNotCalled(t, "Activate", mock.Anything, mock.Anything, mock.Anything)
	m.subscribers.AssertNotCalled(t, "AddPhoneNumber", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcess_BelowCheapestStillSubscribes(t *testing.T) {
	s, m := newService()
	m.messenger.On("SetStatus", mock.Anything, mock.Anything).Return(nil).Once()
	m.subscribers.On("AddPhoneNumber", mock.Anything, "Citra", "6285700011122@c.us").Return(nil).Once()

	res, err := s.Process(context.Background(), models.DonationPayload{
		SupporterName:    "Citra",
		SupporterMessage: "+6285700011122",
		Price:            5000,
	})
	require.NoError(t, err)
	assert.Nil(t, res.Package)
	m.lifecycle.AssertNotCalled(t, "Activate", mock.Anything, mock.Anything, mock.Anything)
	m.subscribers.AssertExpectations(t)
}

func TestProcess_FallsBackToLastTransaction(t *testing.T) {
	txs := new(TransactionsMock)
	txs.On("LastTransaction", mock.Anything).
		Return(&models.Transaction{SupportMessage: "nomor aku 081234567890"}, nil).Once()
	s, m := newService(WithTransactionSource(txs))

	m.messenger.On("SetStatus", mock.Anything, mock.Anything).Return(nil).Once()
	m.lifecycle.On("Activate", mock.Anything, supporterPhone, "bronze").Return(time.Now(), nil).Once()
	m.messenger.On("SendMessage", mock.Anything, supporterPhone, mock.Anything).Return(nil).Twice()
	m.subscribers.On("AddPhoneNumber", mock.Anything, "Dewi", supporterPhone).Return(nil).Once()

	res, err := s.Process(context.Background(), models.DonationPayload{SupporterName: "Dewi", Price: 10000})
	require.NoError(t, err)
	assert.Equal(t, supporterPhone, res.Phone)
	txs.AssertExpectations(t)
}

func TestProcess_ActivationFailure(t *testing.T) {
	s, m := newService()
	dbErr := errors.New("db is down")
	m.messenger.On("SetStatus", mock.Anything, mock.Anything).Return(nil).Once()
	m.lifecycle.On("Activate", mock.Anything, supporterPhone, "gold").Return(time.Time{}, dbErr).Once()

	_, err := s.Process(context.Background(), models.DonationPayload{
		SupporterName:    "Eka",
		SupporterMessage: "081234567890",
		Price:            150000,
	})
	assert.ErrorIs(t, err, dbErr)
	m.messenger.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcess_SendFailureAfterActivation(t *testing.T) {
	s, m := newService()
	expires := time.Date(2024, 6, 9, 0, 0, 0, 0, time.UTC)
	sendErr := errors.New("gateway timeout")

	m.messenger.On("SetStatus", mock.Anything, mock.Anything).Return(nil).Once()
	m.lifecycle.On("Activate", mock.Anything, supporterPhone, "bronze").Return(expires, nil).Once()
	m.messenger.On("SendMessage", mock.Anything, supporterPhone, mock.Anything).Return(sendErr).Twice()
	m.subscribers.On("AddPhoneNumber", mock.Anything, "Gita", supporterPhone).Return(errors.New("redis down")).Once()

	res, err := s.Process(context.Background(), models.DonationPayload{
		SupporterName:    "Gita",
		SupporterMessage: "081234567890",
		Price:            10000,
	})
	require.NoError(t, err)
	assert.True(t, res.Activated)
	assert.Equal(t, expires, res.Expires)
	m.lifecycle.AssertNumberOfCalls(t, "Activate", 1)
	m.messenger.AssertExpectations(t)
	m.subscribers.AssertExpectations(t)
}

func TestProcess_SubscribeFailureWithoutPackage(t *testing.T) {
	s, m := newService()
	subErr := errors.New("redis down")

	m.messenger.On("SetStatus", mock.Anything, mock.Anything).Return(nil).Once()
	m.subscribers.On("AddPhoneNumber", mock.Anything, "Hana", supporterPhone).Return(subErr).Once()

	res, err := s.Process(context.Background(), models.DonationPayload{
		SupporterName:    "Hana",
		SupporterMessage: "081234567890",
		Price:            5000,
	})
	assert.ErrorIs(t, err, subErr)
	assert.False(t, res.Activated)
	m.lifecycle.AssertNotCalled(t, "Activate", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcess_EmailsLicenseKey(t *testing.T) {
	mailer := new(MailerMock)
	s, m := newService(WithMailer(mailer))

	m.messenger.On("SetStatus", mock.Anything, mock.Anything).Return(errors.New("gateway down")).Once()
	mailer.On("SendLicenseKey", "fajar@example.com", "Fajar", int64(30000), models.Package(packages[1])).
		Return(nil).Once()

	res, err := s.Process(context.Background(), models.DonationPayload{
		SupporterName:    "Fajar",
		SupporterMessage: "kirim ke fajar@example.com",
		Price:            30000,
	})
	require.NoError(t, err)
	assert.Equal(t, "fajar@example.com", res.Email)
	mailer.AssertExpectations(t)
}

func TestStatusMessage_Trimmed(t *testing.T) {
	short := statusMessage(models.DonationPayload{SupporterName: "Andi", Price: 5000, SupporterMessage: "semangat"})
	assert.Contains(t, short, "dengan pesan semangat")

	long := statusMessage(models.DonationPayload{
		SupporterName:    "Andi",
		Price:            5000,
		SupporterMessage: strings.Repeat("panjang sekali ", 10),
	})
	assert.NotContains(t, long, "dengan pesan")
	assert.LessOrEqual(t, statusLength(long), maxStatusLength)
}

func TestStatusMessage_CountsUTF16(t *testing.T) {
	tests := []struct {
		name    string
		emoji   int
		trimmed bool
	}{
		{name: "fits exactly", emoji: 23, trimmed: false},
		{name: "surrogate pairs overflow", emoji: 24, trimmed: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := statusMessage(models.DonationPayload{
				SupporterName:    "Andi",
				Price:            5000,
				SupporterMessage: strings.Repeat("🙏", tt.emoji),
			})
			assert.Less(t, len([]rune(msg)), maxStatusLength)
			assert.LessOrEqual(t, statusLength(msg), maxStatusLength)
			assert.Equal(t, tt.trimmed, !strings.Contains(msg, "dengan pesan"))
		})
	}
}
