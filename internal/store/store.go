// Package store is the record store: typed gorm queries over the tables in
// internal/db. Every method issues independent statements; there are no
// multi-row transactions, so concurrent writers follow last-write-wins.
package store

import (
	"context"
	"errors"
	"sync"

	"github.com/bartek5186/mosync/internal/apperr"
	"github.com/bartek5186/mosync/internal/localtime"
	"gorm.io/gorm"
)

type Store struct {
	db *gorm.DB

	mu    sync.RWMutex
	clock localtime.Clock
}

func New(gdb *gorm.DB, clock localtime.Clock) *Store {
	return &Store{db: gdb, clock: clock}
}

func (s *Store) DB() *gorm.DB { return s.db }

func (s *Store) Clock() localtime.Clock {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clock
}

// SetClock swaps the clock used for every timestamp written from now on,
// e.g. after the plant offset changed in config.
func (s *Store) SetClock(c localtime.Clock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = c
}

func (s *Store) with(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// Ping verifies the store is reachable.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return apperr.Storage(err, "store handle")
	}
	return apperr.Storage(sqlDB.PingContext(ctx), "ping store")
}

func notFoundOr(err error, notFound error, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return apperr.Storage(err, op)
}

func strPtr(s string) *string { return &s }
