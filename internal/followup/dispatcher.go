package followup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lead-intake-workers/internal/channel"
	"lead-intake-workers/internal/common/logger"
	"lead-intake-workers/internal/common/metrics"
	"lead-intake-workers/internal/models"
)

const (
	outcomeSent      = "sent"
	outcomeSimulated = "simulated"
	outcomeFailed    = "failed"

	skipNotPending = "not_pending"
	skipLocked     = "locked"
	skipClaimed    = "claimed"

	// recordTimeout bounds the outcome write, which outlives the caller's ctx.
	recordTimeout = 10 * time.Second
)

// SenderResolver returns the transport for a channel.
type SenderResolver interface {
	SenderFor(ch models.Channel) channel.Sender
}

type DispatcherConfig struct {
	SendTimeout time.Duration
	// ClaimTTL is how long a dispatch claim on a job stays valid in storage.
	// It must cover loading, sending and recording one job.
	ClaimTTL       time.Duration
	DefaultSubject string
}

type DispatcherDependencies struct {
	Leads     LeadReader
	Templates TemplateReader
	Jobs      JobStore
	Senders   SenderResolver
	Locker    Locker
	Logger    logger.Logger
}

// DeliveryResult is the job state after a Deliver call.
type DeliveryResult struct {
	JobID     string           `json:"jobId"`
	Channel   models.Channel   `json:"channel,omitempty"`
	Status    models.JobStatus `json:"status"`
	SentAt    *time.Time       `json:"sentAt,omitempty"`
	LastError string           `json:"lastError,omitempty"`
	// Skipped is set when nothing was attempted. SkipReason says why:
	// not_pending, locked or claimed.
	Skipped    bool   `json:"skipped"`
	SkipReason string `json:"skipReason,omitempty"`
	Simulated  bool   `json:"simulated"`
}

// DueSummary tallies one DeliverDue batch.
type DueSummary struct {
	Attempted int `json:"attempted"`
	Sent      int `json:"sent"`
	Simulated int `json:"simulated"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	Errored   int `json:"errored"`
	// Deferred counts due jobs left for the next run because the batch
	// deadline could not fit another send.
	Deferred int `json:"deferred"`
}

// Dispatcher renders and sends follow-up jobs and records their outcome.
type Dispatcher struct {
	leads     LeadReader
	templates TemplateReader
	jobs      JobStore
	senders   SenderResolver
	locker    Locker
	config    DispatcherConfig
	now       func() time.Time
	logger    logger.Logger
}

func NewDispatcher(deps DispatcherDependencies, cfg DispatcherConfig) *Dispatcher {
	if deps.Locker == nil {
		deps.Locker = NewLocalLocker()
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 15 * time.Second
	}
	if cfg.ClaimTTL < cfg.SendTimeout {
		cfg.ClaimTTL = cfg.SendTimeout + time.Minute
	}
	if cfg.DefaultSubject == "" {
		cfg.DefaultSubject = "(no subject)"
	}
	return &Dispatcher{
		leads:     deps.Leads,
		templates: deps.Templates,
		jobs:      deps.Jobs,
		senders:   deps.Senders,
		locker:    deps.Locker,
		config:    cfg,
		now:       time.Now,
		logger:    deps.Logger.WithFields(map[string]interface{}{"component": "followup-dispatcher"}),
	}
}

// WithClock overrides the time source.
func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	d.now = now
	return d
}

// Deliver renders and sends one job. Only pending jobs are eligible unless
// force is set. Send failures are recorded on the job and returned in the
// result, not as an error.
//
// The job is claimed in storage before the send, so dispatchers that do not
// share a Locker still send it at most once.
func (d *Dispatcher) Deliver(ctx context.Context, jobID string, force bool) (*DeliveryResult, error) {
	job, err := d.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != models.JobPending && !force {
		return skipped(job, skipNotPending), nil
	}

	unlock, err := d.locker.TryLock(ctx, jobID)
	if errors.Is(err, ErrLockHeld) {
		d.logger.Info("job is being dispatched elsewhere", map[string]interface{}{"jobId": jobID})
		return skipped(job, skipLocked), nil
	}
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := unlock.Unlock(context.WithoutCancel(ctx)); err != nil {
			d.logger.Warn("failed to release dispatch lock", map[string]interface{}{"jobId": jobID, "error": err.Error()})
		}
	}()

	lead, err := d.leads.GetLead(ctx, job.LeadID)
	if err != nil {
		return nil, err
	}
	tpl, err := d.templates.GetTemplate(ctx, job.TemplateID)
	if err != nil {
		return nil, err
	}

	msg := d.compose(lead, tpl)

	now := d.now().UTC()
	current, err := d.jobs.ClaimJob(ctx, jobID, now, now.Add(d.config.ClaimTTL))
	if errors.Is(err, ErrJobClaimed) {
		d.logger.Info("job is claimed by another dispatcher", map[string]interface{}{"jobId": jobID})
		return skipped(job, skipClaimed), nil
	}
	if err != nil {
		return nil, err
	}
	// The job may have been cancelled or sent while we were loading.
	if current.Status != models.JobPending && !force {
		d.release(ctx, jobID)
		return skipped(current, skipNotPending), nil
	}

	receipt, sendErr := d.send(ctx, tpl.Channel, msg)
	return d.record(ctx, current, tpl.Channel, receipt, sendErr, force)
}

func (d *Dispatcher) compose(lead *models.Lead, tpl *models.FollowUpTemplate) channel.Message {
	rc := ContextForLead(lead)
	msg := channel.Message{
		To:   lead.AddressFor(tpl.Channel),
		Body: Render(tpl.Content, rc),
	}
	if tpl.Channel == models.ChannelEmail {
		msg.Subject = Render(tpl.Subject, rc)
		if msg.Subject == "" {
			msg.Subject = d.config.DefaultSubject
		}
	}
	return msg
}

type sendResult struct {
	receipt channel.Receipt
	err     error
}

// send returns once the transport answers or SendTimeout passes, whichever is
// first. A transport that ignores ctx keeps running in the background and its
// late answer is dropped.
func (d *Dispatcher) send(ctx context.Context, ch models.Channel, msg channel.Message) (channel.Receipt, error) {
	if msg.To == "" {
		return channel.Receipt{}, fmt.Errorf("lead has no %s address: %w", ch, channel.ErrInvalidAddress)
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.config.SendTimeout)
	defer cancel()

	sender := d.senders.SenderFor(ch)
	done := make(chan sendResult, 1)
	start := time.Now()
	go func() {
		receipt, err := sender.Send(sendCtx, msg)
		done <- sendResult{receipt: receipt, err: err}
	}()

	var res sendResult
	select {
	case res = <-done:
	case <-sendCtx.Done():
		res.err = sendCtx.Err()
	}
	metrics.FollowUpDeliveryDuration.WithLabelValues(string(ch)).Observe(time.Since(start).Seconds())

	switch {
	case res.err == nil:
		return res.receipt, nil
	case ctx.Err() != nil:
		return res.receipt, fmt.Errorf("dispatch aborted before the send completed: %w", res.err)
	case errors.Is(sendCtx.Err(), context.DeadlineExceeded):
		return res.receipt, fmt.Errorf("send timed out after %s: %w", d.config.SendTimeout, res.err)
	}
	return res.receipt, res.err
}

// record writes the outcome on a ctx detached from the caller, so a batch
// deadline that expires mid-send still leaves the job failed, not pending.
func (d *Dispatcher) record(ctx context.Context, job *models.FollowUpJob, ch models.Channel, receipt channel.Receipt, sendErr error, force bool) (*DeliveryResult, error) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	now := d.now().UTC()
	t := JobTransition{JobID: job.ID, From: job.Status}
	if sendErr == nil {
		t.To = models.JobSent
		t.SentAt = &now
	} else {
		t.To = models.JobFailed
		t.LastError = sendErr.Error()
	}

	if !job.Status.CanTransition(t.To, force) {
		d.release(writeCtx, job.ID)
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, job.Status, t.To)
	}
	if err := d.jobs.TransitionJob(writeCtx, t); err != nil {
		d.release(writeCtx, job.ID)
		return nil, fmt.Errorf("record delivery outcome for job %s: %w", job.ID, err)
	}

	result := &DeliveryResult{
		JobID:     job.ID,
		Channel:   ch,
		Status:    t.To,
		SentAt:    t.SentAt,
		LastError: t.LastError,
		Simulated: receipt.Simulated,
	}

	fields := map[string]interface{}{
		"jobId":   job.ID,
		"leadId":  job.LeadID,
		"channel": string(ch),
		"forced":  force,
	}
	switch {
	case sendErr != nil:
		metrics.FollowUpDeliveries.WithLabelValues(string(ch), outcomeFailed).Inc()
		fields["error"] = sendErr.Error()
		fields["transportNotConfigured"] = errors.Is(sendErr, channel.ErrTransportNotConfigured)
		d.logger.Warn("follow-up delivery failed", fields)
	case receipt.Simulated:
		metrics.FollowUpDeliveries.WithLabelValues(string(ch), outcomeSimulated).Inc()
		fields["transport"] = receipt.Transport
		d.logger.Warn("follow-up marked sent by simulated transport", fields)
	default:
		metrics.FollowUpDeliveries.WithLabelValues(string(ch), outcomeSent).Inc()
		fields["transport"] = receipt.Transport
		fields["messageId"] = receipt.MessageID
		d.logger.Info("follow-up sent", fields)
	}
	return result, nil
}

func (d *Dispatcher) release(ctx context.Context, jobID string) {
	if err := d.jobs.ReleaseJob(context.WithoutCancel(ctx), jobID); err != nil {
		d.logger.Warn("failed to release dispatch claim", map[string]interface{}{"jobId": jobID, "error": err.Error()})
	}
}

func skipped(job *models.FollowUpJob, reason string) *DeliveryResult {
	metrics.FollowUpDeliveriesSkipped.WithLabelValues(reason).Inc()
	return &DeliveryResult{
		JobID:      job.ID,
		Status:     job.Status,
		SentAt:     job.SentAt,
		LastError:  job.LastError,
		Skipped:    true,
		SkipReason: reason,
	}
}

// ScheduleManual creates one pending job for any template, bypassing the
// trigger-status match.
func (d *Dispatcher) ScheduleManual(ctx context.Context, leadID, templateID string, delayMinutes int) (*models.FollowUpJob, error) {
	lead, err := d.leads.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	tpl, err := d.templates.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}

	delay := time.Duration(max(0, delayMinutes)) * time.Minute
	job := newPendingJob(lead.ID, tpl.ID, d.now().UTC(), delay)
	if err := d.jobs.CreateJobs(ctx, []models.FollowUpJob{job}); err != nil {
		return nil, fmt.Errorf("create manual follow-up: %w", err)
	}

	metrics.FollowUpsScheduled.WithLabelValues("manual").Inc()
	d.logger.Info("manual follow-up scheduled", map[string]interface{}{
		"jobId":        job.ID,
		"leadId":       lead.ID,
		"templateId":   tpl.ID,
		"scheduledFor": job.ScheduledFor,
	})
	return &job, nil
}

// DeliverDue delivers every pending job whose due time has passed, up to
// limit. A failing job never stops the batch. When ctx carries a deadline, the
// batch stops once less than one SendTimeout remains and the rest is counted
// as deferred.
func (d *Dispatcher) DeliverDue(ctx context.Context, limit int) (DueSummary, error) {
	var sum DueSummary

	due, err := d.jobs.DueJobs(ctx, d.now().UTC(), limit)
	if err != nil {
		return sum, fmt.Errorf("load due jobs: %w", err)
	}

	for i, job := range due {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < d.config.SendTimeout {
			sum.Deferred = len(due) - i
			d.logger.Warn("batch deadline reached, leaving due jobs for the next run", map[string]interface{}{
				"deferred": sum.Deferred,
			})
			break
		}
		sum.Attempted++

		res, err := d.Deliver(ctx, job.ID, false)
		switch {
		case err != nil:
			sum.Errored++
			d.logger.Error("due job not delivered", map[string]interface{}{"jobId": job.ID, "error": err.Error()})
		case res.Skipped:
			sum.Skipped++
		case res.Status == models.JobFailed:
			sum.Failed++
		case res.Simulated:
			sum.Simulated++
		default:
			sum.Sent++
		}
	}

	d.logger.Info("due follow-ups processed", map[string]interface{}{
		"attempted": sum.Attempted,
		"sent":      sum.Sent,
		"simulated": sum.Simulated,
		"failed":    sum.Failed,
		"skipped":   sum.Skipped,
		"errored":   sum.Errored,
		"deferred":  sum.Deferred,
	})
	return sum, nil
}

// ListJobs returns jobs matching f, latest scheduled first. The limit is
// clamped to maxListLimit and defaults to defaultListLimit.
func (d *Dispatcher) ListJobs(ctx context.Context, f JobFilter) ([]models.FollowUpJob, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown job status %q", ErrInvalidFilter, f.Status)
	}
	switch {
	case f.Limit <= 0:
		f.Limit = defaultListLimit
	case f.Limit > maxListLimit:
		f.Limit = maxListLimit
	}
	return d.jobs.ListJobs(ctx, f)
}

// Cancel moves a pending job to cancelled.
func (d *Dispatcher) Cancel(ctx context.Context, jobID string) (*models.FollowUpJob, error) {
	job, err := d.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.Status.CanTransition(models.JobCancelled, false) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, job.Status, models.JobCancelled)
	}

	err = d.jobs.TransitionJob(ctx, JobTransition{JobID: job.ID, From: job.Status, To: models.JobCancelled})
	if errors.Is(err, ErrStatusConflict) {
		return nil, fmt.Errorf("%w: job %s is no longer pending", ErrInvalidTransition, job.ID)
	}
	if err != nil {
		return nil, err
	}

	job.Status = models.JobCancelled
	d.logger.Info("follow-up cancelled", map[string]interface{}{"jobId": job.ID, "leadId": job.LeadID})
	return job, nil
}
