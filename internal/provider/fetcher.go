package provider

import (
	"context"
	"time"

	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/lang"
	"github.com/maxbolgarin/logze/v2"
	"github.com/maxbolgarin/ragreview/internal/model"
	"github.com/maxbolgarin/ragreview/internal/model/interfaces"
)

const defaultFetchLimit = 50

// FetchOptions defines options for fetching merge requests
type FetchOptions struct {
	TargetBranch string     // Filter by target branch (e.g., "main", "develop")
	UpdatedSince *time.Time // Only fetch MRs updated after this time
	Limit        int        // Page size, 50 by default
}

// Fetcher lists merge requests of a repository page by page
type Fetcher struct {
	provider interfaces.CodeProvider
	log      logze.Logger
}

func NewFetcher(provider interfaces.CodeProvider) *Fetcher {
	return &Fetcher{
		provider: provider,
		log:      logze.With("component", "fetcher"),
	}
}

// FetchOpenMRs retrieves every open merge request of a repository
func (f *Fetcher) FetchOpenMRs(ctx context.Context, projectID string) ([]*model.MergeRequest, error) {
	return f.FetchMRsToReview(ctx, projectID, FetchOptions{})
}

// FetchMRsToReview retrieves open merge requests matching the options
func (f *Fetcher) FetchMRsToReview(ctx context.Context, projectID string, options FetchOptions) ([]*model.MergeRequest, error) {
	filter := &model.MergeRequestFilter{
		State:        []string{"opened"},
		TargetBranch: options.TargetBranch,
		UpdatedAfter: options.UpdatedSince,
		Limit:        lang.Check(options.Limit, defaultFetchLimit),
	}

	var out []*model.MergeRequest
	err := f.BatchProcessMRs(ctx, projectID, filter, func(mr *model.MergeRequest) error {
		out = append(out, mr)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// BatchProcessMRs calls processor for every merge request matching filter.
// Processor errors are logged and do not stop the iteration.
func (f *Fetcher) BatchProcessMRs(ctx context.Context, projectID string, filter *model.MergeRequestFilter, processor func(*model.MergeRequest) error) error {
	filter.Limit = lang.Check(filter.Limit, defaultFetchLimit)

	for page := 0; ; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		filter.Page = page
		mrs, err := f.provider.ListMergeRequests(ctx, projectID, filter)
		if err != nil {
			return errm.Wrap(err, "failed to fetch merge requests", "page", page)
		}
		f.log.Debug("processing MR batch", "count", len(mrs), "page", page)

		for _, mr := range mrs {
			if err := processor(mr); err != nil {
				f.log.Err(err, "failed to process merge request", "mr_iid", mr.IID)
			}
		}

		if len(mrs) < filter.Limit {
			return nil
		}
	}
}
