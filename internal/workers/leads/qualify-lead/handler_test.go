package qualifylead

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"lead-intake-workers/internal/common/config"
	"lead-intake-workers/internal/common/errors"
	"lead-intake-workers/internal/common/logger"
	"lead-intake-workers/internal/followup"
	"lead-intake-workers/internal/intake"
	"lead-intake-workers/internal/models"
	"lead-intake-workers/internal/qualification"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock Service Implementation
// ==========================

type MockLeadService struct {
	mock.Mock
}

func (m *MockLeadService) Submit(ctx context.Context, lead *models.Lead) (*intake.Outcome, error) {
	args := m.Called(ctx, lead)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*intake.Outcome), args.Error(1)
}

func (m *MockLeadService) Requalify(ctx context.Context, leadID string) (*intake.Outcome, error) {
	args := m.Called(ctx, leadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*intake.Outcome), args.Error(1)
}

// ==========================
// Mock Job Helper
// ==========================

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)
	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                key,
		Type:               TaskType,
		ProcessInstanceKey: key * 10,
		BpmnProcessId:      "lead-intake",
		ElementId:          "Activity_QualifyLead",
		CustomHeaders:      "{}",
		Worker:             "test-worker",
		Retries:            3,
		Variables:          string(variablesJSON),
	}}
}

func createTestHandler(t *testing.T, svc LeadService) *Handler {
	t.Helper()
	h, err := NewHandler(HandlerOptions{
		CustomConfig: DefaultConfig(),
		Service:      svc,
		Logger:       logger.NewTestLogger(t),
	})
	require.NoError(t, err)
	return h
}

func qualifiedOutcome(id string, changed bool, jobs int) *intake.Outcome {
	lead := models.NewLead()
	lead.ID = id
	return &intake.Outcome{
		Lead: lead,
		Result: qualification.Result{
			Status:  models.QualificationQualified,
			Score:   75,
			Reasons: []string{"Urgent: today", "Emergency-like"},
			Tags:    []string{"emergency", "urgent"},
		},
		StatusChanged: changed,
		JobsCreated:   jobs,
	}
}

// ==========================
// Handler Creation Tests
// ==========================

func TestNewHandler(t *testing.T) {
	t.Run("config from app workers section", func(t *testing.T) {
		h, err := NewHandler(HandlerOptions{
			AppConfig: &config.Config{Workers: map[string]config.WorkerConfig{
				TaskType: {Enabled: true, MaxJobsActive: 3, Timeout: 2500, MaxRetries: 1},
			}},
			Service: new(MockLeadService),
			Logger:  logger.NewNoOpLogger(),
		})
		require.NoError(t, err)
		assert.Equal(t, 3, h.Config().MaxJobsActive)
		assert.Equal(t, 2500*time.Millisecond, h.Config().Timeout)
		assert.Equal(t, 1, h.Config().MaxRetries)
	})

	t.Run("invalid timeout", func(t *testing.T) {
		_, err := NewHandler(HandlerOptions{
			CustomConfig: &Config{MaxJobsActive: 1},
			Service:      new(MockLeadService),
		})
		assert.ErrorContains(t, err, "timeout must be positive")
	})

	t.Run("missing service", func(t *testing.T) {
		_, err := NewHandler(HandlerOptions{CustomConfig: DefaultConfig()})
		assert.Error(t, err)
	})
}

// ==========================
// Input Parsing Tests
// ==========================

func TestHandler_ParseInput(t *testing.T) {
	h := createTestHandler(t, new(MockLeadService))

	tests := []struct {
		name     string
		vars     map[string]interface{}
		wantCode errors.ErrorCode
		check    func(t *testing.T, in *Input)
	}{
		{
			name: "stored lead id",
			vars: map[string]interface{}{"leadId": "lead-1", "unrelated": 42},
			check: func(t *testing.T, in *Input) {
				assert.Equal(t, "lead-1", in.LeadID)
				assert.Nil(t, in.Lead)
			},
		},
		{
			name: "inline lead",
			vars: map[string]interface{}{"lead": map[string]interface{}{
				"firstName": "Jo",
				"email":     "jo@example.com",
				"hipaa":     true,
				"symptoms":  []string{"Toothache"},
				"status":    "contacted",
			}},
			check: func(t *testing.T, in *Input) {
				require.NotNil(t, in.Lead)
				assert.Equal(t, "Jo", in.Lead.FirstName)
				assert.True(t, in.Lead.HIPAA)
				assert.Equal(t, []string{"Toothache"}, in.Lead.Symptoms)
			},
		},
		{
			name:     "neither id nor lead",
			vars:     map[string]interface{}{"foo": "bar"},
			wantCode: errors.ErrCodeValidationFailed,
		},
		{
			name:     "unknown lead status",
			vars:     map[string]interface{}{"lead": map[string]interface{}{"status": "archived"}},
			wantCode: errors.ErrCodeValidationFailed,
		},
		{
			name:     "symptoms not a list",
			vars:     map[string]interface{}{"lead": map[string]interface{}{"symptoms": "toothache"}},
			wantCode: errors.ErrCodeValidationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := h.parseInput(createMockJob(1, tt.vars))
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Equal(t, string(tt.wantCode), errors.ExtractErrorCode(err))
				return
			}
			require.NoError(t, err)
			tt.check(t, in)
		})
	}
}

func TestHandler_ParseInput_MalformedVariables(t *testing.T) {
	h := createTestHandler(t, new(MockLeadService))
	job := entities.Job{ActivatedJob: &pb.ActivatedJob{Key: 1, Variables: "{not json"}}

	_, err := h.parseInput(job)
	assert.Equal(t, "INPUT_PARSING_FAILED", errors.ExtractErrorCode(err))
}

// ==========================
// Execute Tests
// ==========================

func TestHandler_Execute_Requalify(t *testing.T) {
	svc := new(MockLeadService)
	h := createTestHandler(t, svc)
	svc.On("Requalify", mock.Anything, "lead-1").Return(qualifiedOutcome("lead-1", true, 2), nil)

	out, err := h.Execute(context.Background(), &Input{LeadID: "lead-1"})
	require.NoError(t, err)
	assert.Equal(t, &Output{
		LeadID:               "lead-1",
		QualificationStatus:  "qualified",
		QualificationScore:   75,
		QualificationReasons: []string{"Urgent: today", "Emergency-like"},
		Tags:                 []string{"emergency", "urgent"},
		StatusChanged:        true,
		JobsCreated:          2,
	}, out)
	svc.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
}

func TestHandler_Execute_Submit(t *testing.T) {
	svc := new(MockLeadService)
	h := createTestHandler(t, svc)
	svc.On("Submit", mock.Anything, mock.MatchedBy(func(l *models.Lead) bool {
		return l.FirstName == "Jo" && l.HIPAA && l.Status == models.LeadStatusNew &&
			l.QualificationStatus == models.QualificationNurture
	})).Return(qualifiedOutcome("generated", true, 1), nil)

	out, err := h.Execute(context.Background(), &Input{Lead: &LeadInput{FirstName: "Jo", Email: "jo@example.com", HIPAA: true}})
	require.NoError(t, err)
	assert.Equal(t, "generated", out.LeadID)
	assert.Equal(t, 1, out.JobsCreated)
	svc.AssertExpectations(t)
}

func TestHandler_Execute_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code errors.ErrorCode
	}{
		{"unknown lead", followup.ErrLeadNotFound, errors.ErrCodeLeadNotFound},
		{"invalid lead", intake.ErrInvalidLead, errors.ErrCodeValidationFailed},
		{"storage down", stderrors.New("connection refused"), errors.ErrCodePersistenceFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockLeadService)
			h := createTestHandler(t, svc)
			svc.On("Requalify", mock.Anything, "lead-1").Return(nil, tt.err)

			_, err := h.Execute(context.Background(), &Input{LeadID: "lead-1"})
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.FromDomainError(err).Code)
		})
	}
}

func TestHandler_Execute_EmptyInput(t *testing.T) {
	h := createTestHandler(t, new(MockLeadService))
	_, err := h.Execute(context.Background(), &Input{})
	assert.Equal(t, "VALIDATION_FAILED", errors.ExtractErrorCode(err))
}
