package maintenance

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

type fakeSweepStore struct {
	deleted int64
	err     error
	calls   int
}

func (s *fakeSweepStore) DeleteExpiredDownloadTokens(_ context.Context) (int64, error) {
	s.calls++
	return s.deleted, s.err
}

func TestTokenSweeper_RunOnce(t *testing.T) {
	store := &fakeSweepStore{deleted: 3}
	sweeper := NewTokenSweeper(store, nil, zerolog.Nop())

	sweeper.RunOnce()
	if store.calls != 1 {
		t.Errorf("RunOnce() called the store %d times, want 1", store.calls)
	}
}

func TestTokenSweeper_RunOnceSwallowsErrors(t *testing.T) {
	store := &fakeSweepStore{err: errors.New("connection refused")}
	sweeper := NewTokenSweeper(store, nil, zerolog.Nop())

	// Must not panic; sweep failures are logged only.
	sweeper.RunOnce()
	if store.calls != 1 {
		t.Errorf("RunOnce() called the store %d times, want 1", store.calls)
	}
}

func TestTokenSweeper_StartStop(t *testing.T) {
	store := &fakeSweepStore{}
	sweeper := NewTokenSweeper(store, nil, zerolog.Nop())

	if err := sweeper.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := sweeper.Start(); err == nil {
		t.Errorf("second Start() did not fail")
	}

	ctx := sweeper.Stop()
	<-ctx.Done()

	// Stopping an idle sweeper is safe.
	ctx = sweeper.Stop()
	<-ctx.Done()
}
