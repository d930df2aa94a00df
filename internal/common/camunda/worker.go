package camunda

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// WorkerOptions are the per task type polling settings.
type WorkerOptions struct {
	MaxJobsActive int
	Timeout       time.Duration
}

type workerSet struct {
	mu      sync.Mutex
	workers map[string]worker.JobWorker
}

func newWorkerSet() *workerSet {
	return &workerSet{workers: make(map[string]worker.JobWorker)}
}

// StartWorker opens a job worker for taskType. A task type can only be
// opened once per client.
func (c *Client) StartWorker(taskType string, handler worker.JobHandler, opts WorkerOptions) error {
	c.workers.mu.Lock()
	defer c.workers.mu.Unlock()

	if _, ok := c.workers.workers[taskType]; ok {
		return fmt.Errorf("worker for %s already started", taskType)
	}

	jw := c.client.NewJobWorker().
		JobType(taskType).
		Handler(handler).
		MaxJobsActive(opts.MaxJobsActive).
		Timeout(opts.Timeout).
		Name(fmt.Sprintf("%s-worker", taskType)).
		Open()
	c.workers.workers[taskType] = jw

	c.logger.Info("worker registered", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": opts.MaxJobsActive,
		"timeout":       opts.Timeout.String(),
	})
	return nil
}

// TaskTypes lists the started workers.
func (c *Client) TaskTypes() []string {
	c.workers.mu.Lock()
	defer c.workers.mu.Unlock()

	out := make([]string, 0, len(c.workers.workers))
	for t := range c.workers.workers {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// CloseWorkers stops polling and waits for in-flight jobs.
func (c *Client) CloseWorkers() {
	c.workers.mu.Lock()
	defer c.workers.mu.Unlock()

	for taskType, jw := range c.workers.workers {
		c.logger.Info("stopping worker", map[string]interface{}{"taskType": taskType})
		jw.Close()
		jw.AwaitClose()
		delete(c.workers.workers, taskType)
	}
}
