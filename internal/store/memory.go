package store

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process TeamAccountStore. It backs the service when no
// database is configured and the package tests. All mutations run under one
// write lock, so per-team linearizability holds trivially.
type Memory struct {
	mu       sync.RWMutex
	accounts map[string]TeamAccount
}

func NewMemory() *Memory {
	return &Memory{accounts: make(map[string]TeamAccount)}
}

func (s *Memory) Get(_ context.Context, teamID string) (TeamAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[teamID]
	if !ok {
		return TeamAccount{}, ErrNotFound
	}
	return a, nil
}

func (s *Memory) FindByAccountID(_ context.Context, accountID string) (TeamAccount, error) {
	if accountID == "" {
		return TeamAccount{}, ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.accounts {
		if a.AccountID == accountID {
			return a, nil
		}
	}
	return TeamAccount{}, ErrNotFound
}

func (s *Memory) AssignAccount(_ context.Context, teamID, accountID string, observedAt time.Time) (TeamAccount, error) {
	if teamID == "" || accountID == "" {
		return TeamAccount{}, ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, other := range s.accounts {
		if other.AccountID == accountID && other.TeamID != teamID {
			return TeamAccount{}, ErrAccountTaken
		}
	}

	existing, ok := s.accounts[teamID]
	if ok {
		if existing.AccountID == accountID {
			return existing, nil
		}
		if existing.AccountID != "" {
			return TeamAccount{}, ErrAccountAssigned
		}
		existing.AccountID = accountID
		existing.Status = StatusPending
		existing.LastCheckedAt = observedAt
		s.accounts[teamID] = existing
		return existing, nil
	}

	created := TeamAccount{
		TeamID:        teamID,
		AccountID:     accountID,
		Status:        StatusPending,
		LastCheckedAt: observedAt,
		CreatedAt:     time.Now().UTC(),
	}
	s.accounts[teamID] = created
	return created, nil
}

func (s *Memory) UpsertStatus(_ context.Context, input UpsertStatusInput) (TeamAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.accounts[input.TeamID]
	if !ok {
		return TeamAccount{}, ErrNotFound
	}

	// Stale observation: acknowledge without overwriting newer state.
	if input.ObservedAt.Before(current.LastCheckedAt) {
		return current, nil
	}

	current.Status = input.Status
	current.ChargesEnabled = input.ChargesEnabled
	current.PayoutsEnabled = input.PayoutsEnabled
	current.DetailsSubmitted = input.DetailsSubmitted
	current.LastCheckedAt = input.ObservedAt
	s.accounts[input.TeamID] = current
	return current, nil
}

func (s *Memory) ClearAccount(_ context.Context, teamID string, observedAt time.Time) (TeamAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.accounts[teamID]
	if !ok {
		return TeamAccount{}, ErrNotFound
	}

	current.AccountID = ""
	current.Status = StatusNotStarted
	current.ChargesEnabled = false
	current.PayoutsEnabled = false
	current.DetailsSubmitted = false
	current.LastCheckedAt = observedAt
	s.accounts[teamID] = current
	return current, nil
}
