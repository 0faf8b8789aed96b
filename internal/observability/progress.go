package observability

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/do3se-driver/internal/domain"
)

// Progress is a point-in-time view of a long-running job.
type Progress struct {
	Job       string    `json:"job"`
	Total     int64     `json:"total"`
	Done      int64     `json:"done"`
	Failed    int64     `json:"failed"`
	StartedAt time.Time `json:"started_at"`
	Elapsed   string    `json:"elapsed"`
}

// Tracker counts finished units of work for the /status endpoint. It is
// safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	job     string
	started time.Time

	total  atomic.Int64
	done   atomic.Int64
	failed atomic.Int64
}

// NewTracker returns an idle tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Start resets the tracker for a job of total units.
func (t *Tracker) Start(job string, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.job = job
	t.started = domain.Now()
	t.total.Store(int64(total))
	t.done.Store(0)
	t.failed.Store(0)
}

// Add records finished units, failed ones included.
func (t *Tracker) Add(done, failed int) {
	t.done.Add(int64(done))
	t.failed.Add(int64(failed))
}

// Snapshot returns the current progress.
func (t *Tracker) Snapshot() Progress {
	t.mu.Lock()
	job, started := t.job, t.started
	t.mu.Unlock()

	p := Progress{
		Job:       job,
		Total:     t.total.Load(),
		Done:      t.done.Load(),
		Failed:    t.failed.Load(),
		StartedAt: started,
	}
	if !started.IsZero() {
		p.Elapsed = domain.Now().Sub(started).Round(time.Second).String()
	}
	return p
}

// CheckReadiness returns nil once a job has started.
func (t *Tracker) CheckReadiness(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.job == "" {
		return errors.New("no job started")
	}
	return nil
}
