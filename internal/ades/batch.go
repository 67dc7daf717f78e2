package ades

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultBatchWindow is how many of the latest jobs a batch sweep
// inspects.
const DefaultBatchWindow = 1000

// ResultsProber checks whether a job produced any catalogued results.
type ResultsProber interface {
	HasResults(ctx context.Context, workspace, jobID string) (bool, error)
}

// BatchOptions selects which jobs a sweep removes.
type BatchOptions struct {
	// MaxJobs bounds the enumeration; zero means DefaultBatchWindow.
	MaxJobs int
	// Statuses removes jobs currently in any of these statuses.
	Statuses []Status
	// Before removes jobs created before the cutoff.
	Before *time.Time
	// RemoveEmptyResults removes successful jobs whose results catalog
	// is empty. Requires Prober.
	RemoveEmptyResults bool
	Prober             ResultsProber
}

func (o BatchOptions) matches(ctx context.Context, workspace string, job *StatusInfo) (bool, error) {
	for _, s := range o.Statuses {
		if job.Status == s {
			return true, nil
		}
	}
	if o.Before != nil && job.Created != nil && job.Created.Before(*o.Before) {
		return true, nil
	}
	if o.RemoveEmptyResults && o.Prober != nil && job.Status == StatusSuccessful {
		has, err := o.Prober.HasResults(ctx, workspace, job.JobID)
		if err != nil {
			return false, err
		}
		return !has, nil
	}
	return false, nil
}

// BatchCancelOrDeleteJobs sweeps the latest jobs and cancels or deletes
// the ones matching the options. It returns the removed job ids.
func (c *Client) BatchCancelOrDeleteJobs(ctx context.Context, opts BatchOptions) ([]string, error) {
	window := opts.MaxJobs
	if window <= 0 {
		window = DefaultBatchWindow
	}

	removed := []string{}
	skip := 0
	for skip < window {
		limit := window - skip
		list, err := c.ListJobs(ctx, limit, skip)
		if err != nil {
			return removed, err
		}
		if len(list.Jobs) == 0 {
			break
		}

		for i := range list.Jobs {
			job := &list.Jobs[i]
			match, err := opts.matches(ctx, c.workspace, job)
			if err != nil {
				return removed, err
			}
			if !match {
				continue
			}
			if err := c.CancelJob(ctx, job.JobID); err != nil {
				if IsNotFound(err) {
					continue
				}
				return removed, err
			}
			c.log.WithFields(logrus.Fields{
				"job_id": job.JobID,
				"status": job.Status,
			}).Info("removed job")
			removed = append(removed, job.JobID)
		}

		skip += len(list.Jobs)
		if len(list.Jobs) < limit {
			break
		}
	}
	return removed, nil
}
