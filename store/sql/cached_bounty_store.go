package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/goliatone/go-bounty/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const (
	bountyCacheKeyPrefix      = "go-bounty::bounty::v1"
	bountyIssueCacheKeyPrefix = "go-bounty::bounty_issue::v1"
)

// CachedBountyStore layers a read cache over a bounty backend. Writes always
// go to the base store and invalidate both the id and issue keys, so a cached
// read can be stale by at most one invalidation window, never wrong about a
// committed transition it raced with itself.
type CachedBountyStore struct {
	base  core.BountyStore
	cache repositorycache.CacheService
}

func NewCachedBountyStore(
	base core.BountyStore,
	cacheService repositorycache.CacheService,
) (*CachedBountyStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base bounty store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: bounty cache service is required")
	}
	return &CachedBountyStore{base: base, cache: cacheService}, nil
}

// BountyCacheKey returns the deterministic cache key for bounty reads by id:
// go-bounty::bounty::v1::<id>
func BountyCacheKey(id int64) string {
	return bountyCacheKeyPrefix + "::" + strconv.FormatInt(id, 10)
}

// BountyIssueCacheKey returns the deterministic cache key for active-bounty
// lookups by issue: go-bounty::bounty_issue::v1::<repository>::<issue>
// with the repository segment URL-path escaped.
func BountyIssueCacheKey(repository string, issueID int) string {
	return strings.Join([]string{
		bountyIssueCacheKeyPrefix,
		url.PathEscape(strings.TrimSpace(repository)),
		strconv.Itoa(issueID),
	}, "::")
}

func (s *CachedBountyStore) Get(ctx context.Context, id int64) (core.Bounty, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Bounty{}, fmt.Errorf("sqlstore: cached bounty store is not configured")
	}
	bounty, err := repositorycache.GetOrFetch(ctx, s.cache, BountyCacheKey(id), func(ctx context.Context) (core.Bounty, error) {
		return s.base.Get(ctx, id)
	})
	if err != nil {
		return core.Bounty{}, err
	}
	return bounty, nil
}

func (s *CachedBountyStore) FindActiveByIssue(ctx context.Context, repository string, issueID int) (core.Bounty, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Bounty{}, fmt.Errorf("sqlstore: cached bounty store is not configured")
	}
	key := BountyIssueCacheKey(repository, issueID)
	bounty, err := repositorycache.GetOrFetch(ctx, s.cache, key, func(ctx context.Context) (core.Bounty, error) {
		return s.base.FindActiveByIssue(ctx, repository, issueID)
	})
	if err != nil {
		return core.Bounty{}, err
	}
	return bounty, nil
}

// FindEscalationCandidates always reads through: the sweeper needs the
// current status of every candidate, not a snapshot.
func (s *CachedBountyStore) FindEscalationCandidates(ctx context.Context) ([]core.Bounty, error) {
	if s == nil || s.base == nil {
		return nil, fmt.Errorf("sqlstore: cached bounty store is not configured")
	}
	return s.base.FindEscalationCandidates(ctx)
}

func (s *CachedBountyStore) CompareAndTransition(
	ctx context.Context,
	id int64,
	expected core.BountyStatus,
	mutation core.BountyMutation,
) (core.Bounty, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Bounty{}, fmt.Errorf("sqlstore: cached bounty store is not configured")
	}
	next, err := s.base.CompareAndTransition(ctx, id, expected, mutation)
	if err != nil {
		return core.Bounty{}, err
	}
	if invalidateErr := s.invalidate(ctx, next); invalidateErr != nil {
		return core.Bounty{}, invalidateErr
	}
	return next, nil
}

func (s *CachedBountyStore) invalidate(ctx context.Context, bounty core.Bounty) error {
	if err := s.cache.Delete(ctx, BountyCacheKey(bounty.ID)); err != nil {
		return err
	}
	return s.cache.Delete(ctx, BountyIssueCacheKey(bounty.Repository, bounty.IssueID))
}

var _ core.BountyStore = (*CachedBountyStore)(nil)
