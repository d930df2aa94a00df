package deliverfollowup

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"lead-intake-workers/internal/common/errors"
	"lead-intake-workers/internal/common/logger"
	"lead-intake-workers/internal/followup"
	"lead-intake-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock Dispatcher
// ==========================

type MockDeliverer struct {
	mock.Mock
}

func (m *MockDeliverer) Deliver(ctx context.Context, jobID string, force bool) (*followup.DeliveryResult, error) {
	args := m.Called(ctx, jobID, force)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*followup.DeliveryResult), args.Error(1)
}

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)
	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                key,
		Type:               TaskType,
		ProcessInstanceKey: key * 10,
		BpmnProcessId:      "lead-followup",
		ElementId:          "Activity_DeliverFollowUp",
		CustomHeaders:      "{}",
		Retries:            3,
		Variables:          string(variablesJSON),
	}}
}

func createTestHandler(t *testing.T, d Deliverer) *Handler {
	t.Helper()
	h, err := NewHandler(HandlerOptions{CustomConfig: DefaultConfig(), Dispatcher: d, Logger: logger.NewTestLogger(t)})
	require.NoError(t, err)
	return h
}

// ==========================
// Input Parsing Tests
// ==========================

func TestHandler_ParseInput(t *testing.T) {
	h := createTestHandler(t, new(MockDeliverer))

	in, err := h.parseInput(createMockJob(1, map[string]interface{}{"jobId": "job-1", "force": true}))
	require.NoError(t, err)
	assert.Equal(t, &Input{JobID: "job-1", Force: true}, in)

	in, err = h.parseInput(createMockJob(2, map[string]interface{}{"jobId": "job-2"}))
	require.NoError(t, err)
	assert.False(t, in.Force)

	_, err = h.parseInput(createMockJob(3, map[string]interface{}{"jobId": ""}))
	assert.Equal(t, "VALIDATION_FAILED", errors.ExtractErrorCode(err))

	_, err = h.parseInput(createMockJob(4, map[string]interface{}{"jobId": "job-4", "force": "yes"}))
	assert.Equal(t, "VALIDATION_FAILED", errors.ExtractErrorCode(err))
}

// ==========================
// Execute Tests
// ==========================

func TestHandler_Execute(t *testing.T) {
	sentAt := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name   string
		result *followup.DeliveryResult
		want   *Output
	}{
		{
			name:   "sent",
			result: &followup.DeliveryResult{JobID: "job-1", Channel: models.ChannelEmail, Status: models.JobSent, SentAt: &sentAt},
			want:   &Output{JobID: "job-1", Status: "sent", Channel: "email", SentAt: "2025-06-01T09:30:00Z", Delivered: true},
		},
		{
			name:   "simulated",
			result: &followup.DeliveryResult{JobID: "job-1", Channel: models.ChannelSMS, Status: models.JobSent, SentAt: &sentAt, Simulated: true},
			want:   &Output{JobID: "job-1", Status: "sent", Channel: "sms", SentAt: "2025-06-01T09:30:00Z", Delivered: true, Simulated: true},
		},
		{
			name:   "send failed",
			result: &followup.DeliveryResult{JobID: "job-1", Channel: models.ChannelEmail, Status: models.JobFailed, LastError: "email: transport not configured"},
			want:   &Output{JobID: "job-1", Status: "failed", Channel: "email", LastError: "email: transport not configured"},
		},
		{
			name:   "already sent",
			result: &followup.DeliveryResult{JobID: "job-1", Status: models.JobSent, SentAt: &sentAt, Skipped: true, SkipReason: "not_pending"},
			want:   &Output{JobID: "job-1", Status: "sent", SentAt: "2025-06-01T09:30:00Z", Skipped: true, SkipReason: "not_pending"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := new(MockDeliverer)
			d.On("Deliver", mock.Anything, "job-1", false).Return(tt.result, nil)

			out, err := createTestHandler(t, d).Execute(context.Background(), &Input{JobID: "job-1"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestHandler_Execute_PassesForce(t *testing.T) {
	d := new(MockDeliverer)
	d.On("Deliver", mock.Anything, "job-1", true).
		Return(&followup.DeliveryResult{JobID: "job-1", Status: models.JobSent}, nil).Once()

	_, err := createTestHandler(t, d).Execute(context.Background(), &Input{JobID: "job-1", Force: true})
	require.NoError(t, err)
	d.AssertExpectations(t)
}

func TestHandler_Execute_Errors(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		code      errors.ErrorCode
		retryable bool
	}{
		{"unknown job", fmt.Errorf("%w: job-1", followup.ErrJobNotFound), errors.ErrCodeJobNotFound, false},
		{"template removed", followup.ErrTemplateNotFound, errors.ErrCodeTemplateNotFound, false},
		{"storage down", stderrors.New("pq: connection reset"), errors.ErrCodePersistenceFailed, true},
		{"deadline", context.DeadlineExceeded, errors.ErrCodeTimeout, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := new(MockDeliverer)
			d.On("Deliver", mock.Anything, "job-1", false).Return(nil, tt.err)

			_, err := createTestHandler(t, d).Execute(context.Background(), &Input{JobID: "job-1"})
			stdErr := errors.FromDomainError(err)
			assert.Equal(t, tt.code, stdErr.Code)
			assert.Equal(t, tt.retryable, stdErr.Retryable)
		})
	}
}
