package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestAssignAccountCreatesPending(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	now := time.Now().UTC()

	created, err := s.AssignAccount(ctx, "team-1", "acct_1", now)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if created.Status != StatusPending {
		t.Fatalf("expected status %s, got %s", StatusPending, created.Status)
	}
	if created.AccountID != "acct_1" {
		t.Fatalf("expected account acct_1, got %s", created.AccountID)
	}

	found, err := s.FindByAccountID(ctx, "acct_1")
	if err != nil {
		t.Fatalf("find by account: %v", err)
	}
	if found.TeamID != "team-1" {
		t.Fatalf("expected team-1, got %s", found.TeamID)
	}
}

func TestAssignAccountIsIdempotent(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	now := time.Now().UTC()

	first, err := s.AssignAccount(ctx, "team-1", "acct_1", now)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	second, err := s.AssignAccount(ctx, "team-1", "acct_1", now.Add(time.Minute))
	if err != nil {
		t.Fatalf("assign repeat: %v", err)
	}
	if first != second {
		t.Fatalf("expected identical records, got %+v and %+v", first, second)
	}
}

func TestAssignAccountUniqueness(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := s.AssignAccount(ctx, "team-1", "acct_1", now); err != nil {
		t.Fatalf("assign: %v", err)
	}

	_, err := s.AssignAccount(ctx, "team-2", "acct_1", now)
	if !errors.Is(err, ErrAccountTaken) {
		t.Fatalf("expected ErrAccountTaken, got %v", err)
	}

	_, err = s.AssignAccount(ctx, "team-1", "acct_2", now)
	if !errors.Is(err, ErrAccountAssigned) {
		t.Fatalf("expected ErrAccountAssigned, got %v", err)
	}
}

func TestUpsertStatusUnknownTeam(t *testing.T) {
	s := NewMemory()

	_, err := s.UpsertStatus(context.Background(), UpsertStatusInput{
		TeamID:     "nope",
		Status:     StatusPending,
		ObservedAt: time.Now(),
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpsertStatusLastWriteWins(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	base := time.Now().UTC()

	if _, err := s.AssignAccount(ctx, "team-1", "acct_1", base); err != nil {
		t.Fatalf("assign: %v", err)
	}

	newer := UpsertStatusInput{
		TeamID:         "team-1",
		Status:         StatusComplete,
		ChargesEnabled: true,
		PayoutsEnabled: true,
		ObservedAt:     base.Add(2 * time.Minute),
	}
	if _, err := s.UpsertStatus(ctx, newer); err != nil {
		t.Fatalf("upsert newer: %v", err)
	}

	stale := UpsertStatusInput{
		TeamID:     "team-1",
		Status:     StatusPending,
		ObservedAt: base.Add(time.Minute),
	}
	got, err := s.UpsertStatus(ctx, stale)
	if err != nil {
		t.Fatalf("upsert stale: %v", err)
	}
	if got.Status != StatusComplete || !got.ChargesEnabled || !got.PayoutsEnabled {
		t.Fatalf("stale observation overwrote newer state: %+v", got)
	}
	if !got.LastCheckedAt.Equal(newer.ObservedAt) {
		t.Fatalf("expected last_checked_at %v, got %v", newer.ObservedAt, got.LastCheckedAt)
	}
}

func TestClearAccountResets(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	base := time.Now().UTC()

	if _, err := s.AssignAccount(ctx, "team-1", "acct_1", base); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := s.UpsertStatus(ctx, UpsertStatusInput{
		TeamID:         "team-1",
		Status:         StatusComplete,
		ChargesEnabled: true,
		PayoutsEnabled: true,
		ObservedAt:     base.Add(time.Minute),
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	cleared, err := s.ClearAccount(ctx, "team-1", base.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if cleared.Status != StatusNotStarted || cleared.AccountID != "" {
		t.Fatalf("expected reset record, got %+v", cleared)
	}
	if cleared.ChargesEnabled || cleared.PayoutsEnabled || cleared.DetailsSubmitted {
		t.Fatalf("expected capability flags cleared, got %+v", cleared)
	}

	if _, err := s.FindByAccountID(ctx, "acct_1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after clear, got %v", err)
	}
}

func TestConcurrentUpsertsConverge(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	base := time.Now().UTC()

	if _, err := s.AssignAccount(ctx, "team-1", "acct_1", base); err != nil {
		t.Fatalf("assign: %v", err)
	}

	older := UpsertStatusInput{
		TeamID:           "team-1",
		Status:           StatusPending,
		DetailsSubmitted: true,
		ObservedAt:       base.Add(time.Minute),
	}
	newer := UpsertStatusInput{
		TeamID:         "team-1",
		Status:         StatusComplete,
		ChargesEnabled: true,
		PayoutsEnabled: true,
		ObservedAt:     base.Add(2 * time.Minute),
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = s.UpsertStatus(ctx, older)
		}()
		go func() {
			defer wg.Done()
			_, _ = s.UpsertStatus(ctx, newer)
		}()
	}
	wg.Wait()

	got, err := s.Get(ctx, "team-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	// The newer observation must win and nothing may interleave: the record
	// has to match the newer input exactly.
	if got.Status != newer.Status ||
		got.ChargesEnabled != newer.ChargesEnabled ||
		got.PayoutsEnabled != newer.PayoutsEnabled ||
		got.DetailsSubmitted != newer.DetailsSubmitted ||
		!got.LastCheckedAt.Equal(newer.ObservedAt) {
		t.Fatalf("expected record matching newer input, got %+v", got)
	}
}
