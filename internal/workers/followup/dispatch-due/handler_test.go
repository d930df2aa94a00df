package dispatchdue

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"

	"lead-intake-workers/internal/common/config"
	"lead-intake-workers/internal/common/errors"
	"lead-intake-workers/internal/common/logger"
	"lead-intake-workers/internal/followup"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockDueDeliverer struct {
	mock.Mock
}

func (m *MockDueDeliverer) DeliverDue(ctx context.Context, limit int) (followup.DueSummary, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).(followup.DueSummary), args.Error(1)
}

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)
	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                key,
		Type:               TaskType,
		ProcessInstanceKey: key * 10,
		BpmnProcessId:      "followup-sweep",
		ElementId:          "Activity_DispatchDue",
		CustomHeaders:      "{}",
		Retries:            3,
		Variables:          string(variablesJSON),
	}}
}

func TestNewHandler_BatchSizeFromDelivery(t *testing.T) {
	appCfg := &config.Config{Delivery: config.DeliveryConfig{DueBatchSize: 25}}
	h, err := NewHandler(HandlerOptions{AppConfig: appCfg, Dispatcher: new(MockDueDeliverer), Logger: logger.NewNoOpLogger()})
	require.NoError(t, err)
	assert.Equal(t, 25, h.Config().BatchSize)
	assert.Equal(t, 1, h.Config().MaxJobsActive)
}

func TestHandler_ParseInput(t *testing.T) {
	h, err := NewHandler(HandlerOptions{CustomConfig: DefaultConfig(), Dispatcher: new(MockDueDeliverer), Logger: logger.NewTestLogger(t)})
	require.NoError(t, err)

	in, err := h.parseInput(createMockJob(1, map[string]interface{}{}))
	require.NoError(t, err)
	assert.Equal(t, 0, in.Limit)

	in, err = h.parseInput(createMockJob(2, map[string]interface{}{"limit": 20}))
	require.NoError(t, err)
	assert.Equal(t, 20, in.Limit)

	_, err = h.parseInput(createMockJob(3, map[string]interface{}{"limit": -1}))
	assert.Equal(t, "VALIDATION_FAILED", errors.ExtractErrorCode(err))
}

func TestHandler_Execute(t *testing.T) {
	tests := []struct {
		name      string
		limit     int
		wantLimit int
	}{
		{"explicit limit", 20, 20},
		{"default batch size", 0, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := new(MockDueDeliverer)
			d.On("DeliverDue", mock.Anything, tt.wantLimit).
				Return(followup.DueSummary{Attempted: 3, Sent: 1, Simulated: 1, Failed: 1, Deferred: 4}, nil).Once()

			h, err := NewHandler(HandlerOptions{CustomConfig: DefaultConfig(), Dispatcher: d, Logger: logger.NewTestLogger(t)})
			require.NoError(t, err)

			out, err := h.Execute(context.Background(), &Input{Limit: tt.limit})
			require.NoError(t, err)
			assert.Equal(t, &Output{Attempted: 3, Sent: 1, Simulated: 1, Failed: 1, Deferred: 4}, out)
			d.AssertExpectations(t)
		})
	}
}

func TestHandler_Execute_LoadFailure(t *testing.T) {
	d := new(MockDueDeliverer)
	d.On("DeliverDue", mock.Anything, 20).Return(followup.DueSummary{}, stderrors.New("load due jobs: connection refused"))

	h, err := NewHandler(HandlerOptions{CustomConfig: DefaultConfig(), Dispatcher: d, Logger: logger.NewTestLogger(t)})
	require.NoError(t, err)

	_, err = h.Execute(context.Background(), &Input{})
	stdErr := errors.FromDomainError(err)
	assert.Equal(t, errors.ErrCodePersistenceFailed, stdErr.Code)
	assert.True(t, stdErr.Retryable)
}
