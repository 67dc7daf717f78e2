package janitor

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/eodatahub/action-creator/internal/ades"
)

// Sweeper removes matching jobs and returns the removed ids.
type Sweeper interface {
	BatchCancelOrDeleteJobs(ctx context.Context, opts ades.BatchOptions) ([]string, error)
}

// Janitor periodically sweeps stale jobs off the execution engine.
type Janitor struct {
	cron     *cron.Cron
	sweeper  Sweeper
	log      *logrus.Entry
	maxAge   time.Duration
	statuses []ades.Status
	prober   ades.ResultsProber
}

// Options configures the janitor.
type Options struct {
	// Schedule is a cron expression; empty disables the janitor.
	Schedule string
	// MaxAge removes jobs older than this.
	MaxAge time.Duration
	// Statuses removes jobs currently in these statuses.
	Statuses []ades.Status
	// Prober, when set, also removes successful jobs with an empty
	// results catalog.
	Prober ades.ResultsProber
	Logger *logrus.Entry
}

// New builds a janitor over a sweeper. Start is a no-op when the
// schedule is empty.
func New(sweeper Sweeper, opts Options) (*Janitor, error) {
	log := opts.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	j := &Janitor{
		sweeper:  sweeper,
		log:      log,
		maxAge:   opts.MaxAge,
		statuses: opts.Statuses,
		prober:   opts.Prober,
	}
	if opts.Schedule == "" {
		return j, nil
	}

	j.cron = cron.New()
	if _, err := j.cron.AddFunc(opts.Schedule, j.sweep); err != nil {
		return nil, err
	}
	return j, nil
}

// Start begins the schedule.
func (j *Janitor) Start() {
	if j.cron != nil {
		j.cron.Start()
	}
}

// Stop halts the schedule and waits for a running sweep.
func (j *Janitor) Stop() {
	if j.cron != nil {
		<-j.cron.Stop().Done()
	}
}

func (j *Janitor) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	removed, err := j.Sweep(ctx)
	if err != nil {
		j.log.WithError(err).Error("janitor sweep failed")
		return
	}
	if len(removed) > 0 {
		j.log.WithField("removed", removed).Info("janitor removed stale jobs")
	}
}

// Sweep runs one pass immediately.
func (j *Janitor) Sweep(ctx context.Context) ([]string, error) {
	opts := ades.BatchOptions{
		Statuses:           j.statuses,
		RemoveEmptyResults: j.prober != nil,
		Prober:             j.prober,
	}
	if j.maxAge > 0 {
		cutoff := time.Now().Add(-j.maxAge)
		opts.Before = &cutoff
	}
	return j.sweeper.BatchCancelOrDeleteJobs(ctx, opts)
}
