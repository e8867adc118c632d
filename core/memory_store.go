package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryBountyStore keeps bounty records in process memory behind a mutex.
// It honors the same CAS contract as the SQL store, which makes it the
// reference backend for resolver and sweeper tests.
type MemoryBountyStore struct {
	mu       sync.Mutex
	bounties map[int64]Bounty
	nextID   int64
	Now      func() time.Time
}

func NewMemoryBountyStore() *MemoryBountyStore {
	return &MemoryBountyStore{
		bounties: map[int64]Bounty{},
		nextID:   1,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Put inserts or replaces a bounty record. Records with a zero ID are
// assigned the next sequential ID.
func (s *MemoryBountyStore) Put(_ context.Context, bounty Bounty) (Bounty, error) {
	if s == nil {
		return Bounty{}, fmt.Errorf("core: bounty store is not configured")
	}
	if err := bounty.Validate(); err != nil {
		return Bounty{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if bounty.ID == 0 {
		bounty.ID = s.nextID
	}
	if bounty.ID >= s.nextID {
		s.nextID = bounty.ID + 1
	}
	if bounty.CreatedAt.IsZero() {
		bounty.CreatedAt = s.now()
	}
	bounty.UpdatedAt = s.now()
	s.bounties[bounty.ID] = bounty
	return bounty, nil
}

func (s *MemoryBountyStore) Get(_ context.Context, id int64) (Bounty, error) {
	if s == nil {
		return Bounty{}, fmt.Errorf("core: bounty store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	bounty, ok := s.bounties[id]
	if !ok {
		return Bounty{}, fmt.Errorf("core: bounty %d: %w", id, ErrBountyNotFound)
	}
	return bounty, nil
}

func (s *MemoryBountyStore) FindActiveByIssue(_ context.Context, repository string, issueID int) (Bounty, error) {
	if s == nil {
		return Bounty{}, fmt.Errorf("core: bounty store is not configured")
	}
	repository = strings.TrimSpace(repository)
	if repository == "" {
		return Bounty{}, fmt.Errorf("core: repository is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, bounty := range s.bounties {
		if bounty.Repository == repository && bounty.IssueID == issueID && bounty.Status == BountyStatusActive {
			return bounty, nil
		}
	}
	return Bounty{}, fmt.Errorf("core: active bounty for %s#%d: %w", repository, issueID, ErrBountyNotFound)
}

func (s *MemoryBountyStore) FindEscalationCandidates(_ context.Context) ([]Bounty, error) {
	if s == nil {
		return nil, fmt.Errorf("core: bounty store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	candidates := make([]Bounty, 0, len(s.bounties))
	for _, bounty := range s.bounties {
		if bounty.Status == BountyStatusActive && bounty.CurrentAmount < bounty.MaxAmount {
			candidates = append(candidates, bounty)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].ID < candidates[j].ID
	})
	return candidates, nil
}

func (s *MemoryBountyStore) CompareAndTransition(
	_ context.Context,
	id int64,
	expected BountyStatus,
	mutation BountyMutation,
) (Bounty, error) {
	if s == nil {
		return Bounty{}, fmt.Errorf("core: bounty store is not configured")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bounty, ok := s.bounties[id]
	if !ok {
		return Bounty{}, fmt.Errorf("core: bounty %d: %w", id, ErrBountyNotFound)
	}
	if bounty.Status != expected {
		return Bounty{}, fmt.Errorf("core: bounty %d expected status %q, found %q: %w",
			id, expected, bounty.Status, ErrStatusConflict)
	}

	next, err := mutation.Apply(bounty, s.now())
	if err != nil {
		return Bounty{}, err
	}
	if err := next.Validate(); err != nil {
		return Bounty{}, err
	}
	s.bounties[id] = next
	return next, nil
}

func (s *MemoryBountyStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

var _ BountyStore = (*MemoryBountyStore)(nil)
