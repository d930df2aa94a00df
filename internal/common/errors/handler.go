// internal/common/errors/handler.go
package errors

import (
	"context"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// ErrorHandler reports a failed job to Zeebe. Business errors are thrown as
// BPMN errors so the process can route on them; transient errors fail the
// job with a bounded retry budget and raise an incident once it is spent.
type ErrorHandler struct {
	logger     Logger
	maxRetries int
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// WithRetryCap bounds the retries handed back on any failure. Zero means no cap.
func (h *ErrorHandler) WithRetryCap(n int) *ErrorHandler {
	h.maxRetries = n
	return h
}

// Decision describes how a failed job is reported.
type Decision struct {
	Throw   bool
	Retries int
}

// Decide picks throw or fail for err given the job's remaining retries.
func Decide(stdErr *StandardError, remaining int32) Decision {
	if !stdErr.Retryable {
		return Decision{Throw: true}
	}
	retries := min(int(remaining)-1, GetRetryCount(stdErr.Code))
	return Decision{Retries: max(0, retries)}
}

// HandleJobError classifies err and reports the job as thrown or failed.
func (h *ErrorHandler) HandleJobError(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	stdErr := FromDomainError(err)
	bpmnErr := ConvertToBPMNError(stdErr)
	decision := Decide(stdErr, job.GetRetries())
	if h.maxRetries > 0 && decision.Retries > h.maxRetries {
		decision.Retries = h.maxRetries
	}

	h.logger.Error("job failed", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"jobType":            job.GetType(),
		"processInstanceKey": job.GetProcessInstanceKey(),
		"errorCode":          bpmnErr.Code,
		"details":            stdErr.Details,
		"retryable":          stdErr.Retryable,
		"thrown":             decision.Throw,
		"retries":            decision.Retries,
	})

	var sendErr error
	if decision.Throw {
		sendErr = h.throwBPMNError(ctx, client, job, bpmnErr)
	} else {
		sendErr = h.failJob(ctx, client, job, bpmnErr, decision.Retries)
	}
	if sendErr != nil {
		h.logger.Error("failed to report job failure", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  sendErr.Error(),
		})
	}
}

func (h *ErrorHandler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, bpmnErr *BPMNError, retries int) error {
	cmd := client.NewFailJobCommand().
		JobKey(job.GetKey()).
		Retries(int32(retries)).
		ErrorMessage("[" + bpmnErr.Code + "] " + bpmnErr.Message)

	withVars, err := cmd.VariablesFromMap(bpmnErr.ToErrorVariables())
	if err != nil {
		_, err = cmd.Send(ctx)
		return err
	}
	_, err = withVars.Send(ctx)
	return err
}

func (h *ErrorHandler) throwBPMNError(ctx context.Context, client worker.JobClient, job entities.Job, bpmnErr *BPMNError) error {
	cmd := client.NewThrowErrorCommand().
		JobKey(job.GetKey()).
		ErrorCode(bpmnErr.Code).
		ErrorMessage(bpmnErr.Message)

	withVars, err := cmd.VariablesFromMap(bpmnErr.ToErrorVariables())
	if err != nil {
		_, err = cmd.Send(ctx)
		return err
	}
	_, err = withVars.Send(ctx)
	return err
}
