package channel

import (
	"context"
	"errors"
	"testing"
	"time"

	"lead-intake-workers/internal/common/config"
	"lead-intake-workers/internal/common/logger"
	"lead-intake-workers/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	gomail "github.com/wneessen/go-mail"
)

// ==========================
// Mock Implementations
// ==========================

type MockSESClient struct {
	mock.Mock
}

func (m *MockSESClient) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ses.SendEmailOutput), args.Error(1)
}

type MockSNSClient struct {
	mock.Mock
}

func (m *MockSNSClient) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sns.PublishOutput), args.Error(1)
}

// ==========================
// Router
// ==========================

func TestRouter_UnregisteredChannelIsNotConfigured(t *testing.T) {
	r := NewRouter()
	r.Register(models.ChannelSMS, NewStub(models.ChannelSMS, logger.NewNoOpLogger()))

	_, err := r.SenderFor(models.ChannelEmail).Send(context.Background(), Message{To: "a@example.com"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransportNotConfigured)

	receipt, err := r.SenderFor(models.ChannelSMS).Send(context.Background(), Message{To: "5551234567"})
	require.NoError(t, err)
	assert.True(t, receipt.Simulated)
}

func TestStub_HonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewStub(models.ChannelEmail, logger.NewTestLogger(t)).Send(ctx, Message{To: "x@example.com"})
	assert.ErrorIs(t, err, context.Canceled)
}

// ==========================
// SES
// ==========================

func TestSES_Send(t *testing.T) {
	client := new(MockSESClient)
	client.On("SendEmail", mock.Anything, mock.MatchedBy(func(in *ses.SendEmailInput) bool {
		return in.Destination.ToAddresses[0] == "jo@example.com" &&
			aws.ToString(in.Source) == "clinic@example.com" &&
			aws.ToString(in.Message.Subject.Data) == "Hello" &&
			aws.ToString(in.Message.Body.Text.Data) == "Body"
	})).Return(&ses.SendEmailOutput{MessageId: aws.String("ses-1")}, nil)

	receipt, err := NewSES(client, "clinic@example.com").Send(context.Background(), Message{
		To: "jo@example.com", Subject: "Hello", Body: "Body",
	})

	require.NoError(t, err)
	assert.Equal(t, "ses-1", receipt.MessageID)
	assert.Equal(t, config.TransportSES, receipt.Transport)
	assert.False(t, receipt.Simulated)
	client.AssertExpectations(t)
}

func TestSES_SendError(t *testing.T) {
	client := new(MockSESClient)
	client.On("SendEmail", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

	_, err := NewSES(client, "clinic@example.com").Send(context.Background(), Message{To: "jo@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}

func TestSES_EmptyRecipient(t *testing.T) {
	client := new(MockSESClient)
	_, err := NewSES(client, "clinic@example.com").Send(context.Background(), Message{})
	assert.ErrorIs(t, err, ErrInvalidAddress)
	client.AssertNotCalled(t, "SendEmail", mock.Anything, mock.Anything)
}

// ==========================
// SNS
// ==========================

func TestNormalizeE164(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		region  string
		want    string
		wantErr bool
	}{
		{name: "us local", raw: "(201) 555-0123", region: "US", want: "+12015550123"},
		{name: "already e164", raw: "+1 650-253-0000", region: "GB", want: "+16502530000"},
		{name: "empty", raw: "  ", region: "US", wantErr: true},
		{name: "garbage", raw: "call me", region: "US", wantErr: true},
		{name: "too short", raw: "12345", region: "US", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeE164(tt.raw, tt.region)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAddress)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSNS_Send(t *testing.T) {
	client := new(MockSNSClient)
	client.On("Publish", mock.Anything, mock.MatchedBy(func(in *sns.PublishInput) bool {
		_, hasSender := in.MessageAttributes["AWS.SNS.SMS.SenderID"]
		return aws.ToString(in.PhoneNumber) == "+12015550123" &&
			aws.ToString(in.Message) == "see you soon" &&
			hasSender
	})).Return(&sns.PublishOutput{MessageId: aws.String("sns-1")}, nil)

	receipt, err := NewSNS(client, "CLINIC", "US").Send(context.Background(), Message{
		To: "201-555-0123", Body: "see you soon",
	})

	require.NoError(t, err)
	assert.Equal(t, "sns-1", receipt.MessageID)
	client.AssertExpectations(t)
}

func TestSNS_InvalidNumberNeverPublishes(t *testing.T) {
	client := new(MockSNSClient)
	_, err := NewSNS(client, "", "US").Send(context.Background(), Message{To: "n/a", Body: "x"})
	assert.ErrorIs(t, err, ErrInvalidAddress)
	client.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

// ==========================
// SMTP
// ==========================

func TestSMTP_BuildMessage(t *testing.T) {
	s := NewSMTP(config.SMTPConfig{
		Host:        "localhost",
		Port:        2525,
		DefaultFrom: "no-reply@example.com",
		FromName:    "Bright Smiles",
	}, time.Second)

	m, err := s.buildMessage(Message{To: "jo@example.com", Subject: "Welcome", Body: "Hi Jo"})
	require.NoError(t, err)

	rcpts, err := m.GetRecipients()
	require.NoError(t, err)
	assert.Equal(t, []string{"jo@example.com"}, rcpts)
	assert.Equal(t, []string{"Welcome"}, m.GetGenHeader(gomail.HeaderSubject))
	assert.NotEmpty(t, m.GetGenHeader(gomail.HeaderMessageID))
}

func TestSMTP_InvalidRecipient(t *testing.T) {
	s := NewSMTP(config.SMTPConfig{Host: "localhost", Port: 2525, DefaultFrom: "no-reply@example.com"}, time.Second)

	_, err := s.Send(context.Background(), Message{To: "not an address"})
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestSMTP_UnreachableRelay(t *testing.T) {
	s := NewSMTP(config.SMTPConfig{Host: "127.0.0.1", Port: 1, DefaultFrom: "no-reply@example.com"}, 500*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := s.Send(ctx, Message{To: "jo@example.com", Subject: "s", Body: "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp send")
}

// ==========================
// Factory
// ==========================

func TestNewRouterFromConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Delivery.EmailTransport = config.TransportNone
	cfg.Delivery.SMSTransport = config.TransportStub

	r, err := NewRouterFromConfig(context.Background(), cfg, logger.NewNoOpLogger())
	require.NoError(t, err)

	_, err = r.SenderFor(models.ChannelEmail).Send(context.Background(), Message{To: "jo@example.com"})
	assert.ErrorIs(t, err, ErrTransportNotConfigured)

	receipt, err := r.SenderFor(models.ChannelSMS).Send(context.Background(), Message{To: "5551234567"})
	require.NoError(t, err)
	assert.True(t, receipt.Simulated)

	cfg.Delivery.EmailTransport = "pigeon"
	_, err = NewRouterFromConfig(context.Background(), cfg, logger.NewNoOpLogger())
	assert.Error(t, err)
}
