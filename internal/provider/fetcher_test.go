package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/maxbolgarin/ragreview/internal/model"
	"github.com/maxbolgarin/ragreview/internal/model/interfaces"
)

type pagedProvider struct {
	interfaces.CodeProvider

	total int
	fail  bool
	pages []int
}

func (p *pagedProvider) ListMergeRequests(_ context.Context, _ string, filter *model.MergeRequestFilter) ([]*model.MergeRequest, error) {
	if p.fail {
		return nil, errors.New("api down")
	}
	p.pages = append(p.pages, filter.Page)

	var out []*model.MergeRequest
	for i := filter.Page * filter.Limit; i < min((filter.Page+1)*filter.Limit, p.total); i++ {
		out = append(out, &model.MergeRequest{IID: i + 1})
	}
	return out, nil
}

func TestFetchMRsToReview(t *testing.T) {
	p := &pagedProvider{total: 7}
	mrs, err := NewFetcher(p).FetchMRsToReview(context.Background(), "team/shop", FetchOptions{Limit: 3})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(mrs) != 7 || mrs[6].IID != 7 {
		t.Fatalf("expected 7 merge requests, got %d", len(mrs))
	}
	if len(p.pages) != 3 {
		t.Fatalf("expected 3 pages, got %v", p.pages)
	}

	p = &pagedProvider{total: 6}
	if _, err := NewFetcher(p).FetchMRsToReview(context.Background(), "team/shop", FetchOptions{Limit: 3}); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(p.pages) != 3 {
		t.Fatalf("exact multiple must stop on an empty page, got %v", p.pages)
	}
}

func TestBatchProcessContinuesOnProcessorError(t *testing.T) {
	var seen int
	err := NewFetcher(&pagedProvider{total: 4}).BatchProcessMRs(context.Background(), "x", &model.MergeRequestFilter{Limit: 10}, func(*model.MergeRequest) error {
		seen++
		return errors.New("review failed")
	})
	if err != nil || seen != 4 {
		t.Fatalf("unexpected result: seen %d, err %v", seen, err)
	}

	if _, err := NewFetcher(&pagedProvider{fail: true}).FetchOpenMRs(context.Background(), "x"); err == nil {
		t.Fatal("expected provider error")
	}
}

func TestNewProviderValidation(t *testing.T) {
	if _, err := NewProvider(Config{Type: GitHub}); err == nil {
		t.Fatal("expected error without token")
	}
	if _, err := NewProvider(Config{Type: "svn", Token: "t"}); err == nil {
		t.Fatal("expected error for unknown type")
	}
	for _, typ := range []ProviderType{GitHub, GitLab, Bitbucket} {
		if _, err := NewProvider(Config{Type: typ, Token: "t"}); err != nil {
			t.Fatalf("%s: %v", typ, err)
		}
	}
}
