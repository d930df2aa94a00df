package schedulemanual

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"lead-intake-workers/internal/common/config"
	"lead-intake-workers/internal/common/errors"
	"lead-intake-workers/internal/common/logger"
	"lead-intake-workers/internal/common/metrics"
	"lead-intake-workers/internal/common/observability"
	"lead-intake-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "followup-schedule-manual"

type ManualScheduler interface {
	ScheduleManual(ctx context.Context, leadID, templateID string, delayMinutes int) (*models.FollowUpJob, error)
}

type Handler struct {
	config       *Config
	logger       logger.Logger
	scheduler    ManualScheduler
	errorHandler *errors.ErrorHandler
	obs          *observability.Observability
}

type HandlerOptions struct {
	AppConfig     *config.Config
	CustomConfig  *Config
	Scheduler     ManualScheduler
	Observability *observability.Observability
	Logger        logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)
	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if opts.Scheduler == nil {
		return nil, fmt.Errorf("%s: scheduler is required", TaskType)
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewStructured("info", "json")
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})

	return &Handler{
		config:       workerConfig,
		logger:       log,
		scheduler:    opts.Scheduler,
		errorHandler: errors.NewErrorHandler(log).WithRetryCap(workerConfig.MaxRetries),
		obs:          opts.Observability,
	}, nil
}

func (h *Handler) Config() *Config {
	return h.config
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	input, err := h.parseInput(job)
	if err != nil {
		h.failJob(ctx, client, job, err, startTime)
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.failJob(ctx, client, job, err, startTime)
		return
	}

	h.completeJob(ctx, client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
	h.obs.RecordJob(ctx, TaskType, "completed", time.Since(startTime))
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewInputParsingError(err)
	}

	result := inputSchema.Validate(variables)
	if !result.Valid {
		return nil, errors.NewValidationError(strings.Join(result.GetErrorMessages(), "; "))
	}

	var input Input
	if err := json.Unmarshal([]byte(job.GetVariables()), &input); err != nil {
		return nil, errors.NewInputParsingError(err)
	}
	return &input, nil
}

// Execute queues one pending job for the lead. Negative delays send immediately.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	job, err := h.scheduler.ScheduleManual(ctx, input.LeadID, input.TemplateID, input.DelayMinutes)
	if err != nil {
		return nil, err
	}
	return &Output{
		JobID:        job.ID,
		Status:       string(job.Status),
		ScheduledFor: job.ScheduledFor.UTC().Format(time.RFC3339),
	}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	request, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}

	if _, err := request.Send(context.WithoutCancel(ctx)); err != nil {
		h.logger.Error("failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
	}
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error, startTime time.Time) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.FromDomainError(err).Code)).Inc()
	h.obs.RecordJob(ctx, TaskType, "failed", time.Since(startTime))
	h.errorHandler.HandleJobError(context.WithoutCancel(ctx), client, job, err)
}
