package dispatchdue

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
	"lead-intake-workers/internal/followup"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// TaskType is driven by a timer-started process; each job sweeps one batch.
const TaskType = "followup-dispatch-due"

type DueDeliverer interface {
	DeliverDue(ctx context.Context, limit int) (followup.DueSummary, error)
}

type Handler struct {
	config       *Config
	logger       logger.Logger
	dispatcher   DueDeliverer
	errorHandler *errors.ErrorHandler
	obs          *observability.Observability
}

type HandlerOptions struct {
	AppConfig     *config.Config
	CustomConfig  *Config
	Dispatcher    DueDeliverer
	Observability *observability.Observability
	Logger        logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)
	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if opts.Dispatcher == nil {
		return nil, fmt.Errorf("%s: dispatcher is required", TaskType)
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewStructured("info", "json")
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})

	return &Handler{
		config:       workerConfig,
		logger:       log,
		dispatcher:   opts.Dispatcher,
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

// Execute sweeps one batch of due jobs. A zero limit uses the configured batch size.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = h.config.BatchSize
	}

	sum, err := h.dispatcher.DeliverDue(ctx, limit)
	if err != nil {
		return nil, err
	}
	return &Output{
		Attempted: sum.Attempted,
		Sent:      sum.Sent,
		Simulated: sum.Simulated,
		Failed:    sum.Failed,
		Skipped:   sum.Skipped,
		Errored:   sum.Errored,
		Deferred:  sum.Deferred,
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
