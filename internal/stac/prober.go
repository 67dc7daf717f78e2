package stac

import (
	"context"
	"fmt"
)

// JobResultsCollection is the catalog collection a job writes its
// processing results into.
func JobResultsCollection(jobID string) string {
	return fmt.Sprintf("col_%s", jobID)
}

// HasResults reports whether a job's processing-results collection
// contains any items. It satisfies the engine client's results prober.
func (c *Client) HasResults(ctx context.Context, workspace, jobID string) (bool, error) {
	count, err := c.Search(ctx, SearchParams{Collection: JobResultsCollection(jobID)})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
