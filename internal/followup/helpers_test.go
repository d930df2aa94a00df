package followup_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"lead-intake-workers/internal/channel"
	"lead-intake-workers/internal/common/logger"
	"lead-intake-workers/internal/followup"
	"lead-intake-workers/internal/models"
	"lead-intake-workers/internal/repository/memory"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

var testNow = time.Date(2025, 3, 4, 15, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

type recordingSender struct {
	mu    sync.Mutex
	sent  []channel.Message
	err   error
	delay time.Duration
}

func (s *recordingSender) Send(ctx context.Context, msg channel.Message) (channel.Receipt, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return channel.Receipt{}, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return channel.Receipt{}, s.err
	}
	s.sent = append(s.sent, msg)
	return channel.Receipt{Transport: "test", MessageID: "msg-1"}, nil
}

func (s *recordingSender) Sent() []channel.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]channel.Message(nil), s.sent...)
}

// stallingSender blocks for hold whatever its ctx says, like a transport
// client that takes no deadline.
type stallingSender struct {
	hold time.Duration
	mu   sync.Mutex
	sent int
}

func (s *stallingSender) Send(context.Context, channel.Message) (channel.Receipt, error) {
	time.Sleep(s.hold)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent++
	return channel.Receipt{Transport: "stalling"}, nil
}

type fixture struct {
	store      *memory.Store
	email      *recordingSender
	sms        *recordingSender
	router     *channel.Router
	dispatcher *followup.Dispatcher
	scheduler  *followup.Scheduler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  memory.New(),
		email:  &recordingSender{},
		sms:    &recordingSender{},
		router: channel.NewRouter(),
	}
	f.router.Register(models.ChannelEmail, f.email)
	f.router.Register(models.ChannelSMS, f.sms)

	log := logger.NewTestLogger(t)
	f.dispatcher = followup.NewDispatcher(followup.DispatcherDependencies{
		Leads:     f.store,
		Templates: f.store,
		Jobs:      f.store,
		Senders:   f.router,
		Logger:    log,
	}, followup.DispatcherConfig{SendTimeout: 200 * time.Millisecond}).WithClock(fixedClock)
	f.scheduler = followup.NewScheduler(f.store, f.store, log).WithClock(fixedClock)
	return f
}

// replica returns a dispatcher over the same store and transports with its own
// in-process locker, as a second worker process would have.
func (f *fixture) replica(t *testing.T) *followup.Dispatcher {
	t.Helper()
	return followup.NewDispatcher(followup.DispatcherDependencies{
		Leads:     f.store,
		Templates: f.store,
		Jobs:      f.store,
		Senders:   f.router,
		Locker:    followup.NewLocalLocker(),
		Logger:    logger.NewTestLogger(t),
	}, followup.DispatcherConfig{SendTimeout: 200 * time.Millisecond}).WithClock(fixedClock)
}

func (f *fixture) addLead(t *testing.T, mutate func(*models.Lead)) *models.Lead {
	t.Helper()
	l := models.NewLead()
	l.ID = uuid.NewString()
	l.FirstName = "Jo"
	l.LastName = "Park"
	l.Email = "jo@example.com"
	l.Phone = "201-555-0123"
	l.HIPAA = true
	l.QualificationStatus = models.QualificationQualified
	l.QualificationScore = 72
	if mutate != nil {
		mutate(l)
	}
	require.NoError(t, f.store.CreateLead(context.Background(), l))
	return l
}

func (f *fixture) addTemplate(id string, ch models.Channel, trigger models.QualificationStatus, delay int) models.FollowUpTemplate {
	tpl := models.FollowUpTemplate{
		ID:           id,
		Name:         id,
		Channel:      ch,
		Subject:      "Welcome {{first_name}}",
		Content:      "Hi {{name}}, your score is {{score}}",
		DelayMinutes: delay,
		TriggerOn:    trigger,
		Active:       true,
	}
	f.store.PutTemplate(tpl)
	return tpl
}

func (f *fixture) addJob(t *testing.T, leadID, templateID string, status models.JobStatus, at time.Time) models.FollowUpJob {
	t.Helper()
	job := models.FollowUpJob{
		ID:           uuid.NewString(),
		LeadID:       leadID,
		TemplateID:   templateID,
		ScheduledFor: at,
		Status:       status,
		CreatedAt:    at,
	}
	require.NoError(t, f.store.CreateJobs(context.Background(), []models.FollowUpJob{job}))
	return job
}

type failingTemplates struct{}

func (failingTemplates) ActiveTemplates(context.Context, models.QualificationStatus) ([]models.FollowUpTemplate, error) {
	return nil, errors.New("templates must not be read")
}

func (failingTemplates) GetTemplate(context.Context, string) (*models.FollowUpTemplate, error) {
	return nil, errors.New("templates must not be read")
}
