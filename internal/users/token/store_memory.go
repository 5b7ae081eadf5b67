// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package token

import (
	"context"
	"sync"
	"time"

	"github.com/taibuivan/marketplace-auth/internal/platform/apperr"
)

// MemoryStore is an in-process [Store] for development and tests.
type MemoryStore struct {
	mu     sync.Mutex
	byID   map[string]*Record
	byHash map[string]string
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:   make(map[string]*Record),
		byHash: make(map[string]string),
	}
}

var _ Store = (*MemoryStore)(nil)

func (store *MemoryStore) Create(context context.Context, record *Record) error {
	if err := context.Err(); err != nil {
		return apperr.StorageUnavailable(err)
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	return store.insert(record)
}

func (store *MemoryStore) FindByHash(context context.Context, tokenHash string) (*Record, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	id, ok := store.byHash[tokenHash]
	if !ok {
		return nil, apperr.TokenNotFound()
	}
	return copyOf(store.byID[id]), nil
}

func (store *MemoryStore) Rotate(context context.Context, oldID string, next *Record, at time.Time) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	current, ok := store.byID[oldID]
	if !ok || current.Revoked {
		return apperr.TokenRevoked()
	}
	if err := store.insert(next); err != nil {
		return err
	}
	revoke(current, at)
	return nil
}

func (store *MemoryStore) Revoke(context context.Context, id string, at time.Time) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	if current, ok := store.byID[id]; ok && !current.Revoked {
		revoke(current, at)
	}
	return nil
}

func (store *MemoryStore) RevokeAllForUser(context context.Context, userID string, at time.Time) (int64, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	var revoked int64
	for _, record := range store.byID {
		if record.UserID == userID && !record.Revoked {
			revoke(record, at)
			revoked++
		}
	}
	return revoked, nil
}

func (store *MemoryStore) DeleteExpired(context context.Context, now time.Time) (int64, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	var deleted int64
	for id, record := range store.byID {
		if !record.ExpiresAt.After(now) {
			delete(store.byHash, record.TokenHash)
			delete(store.byID, id)
			deleted++
		}
	}
	return deleted, nil
}

// insert requires store.mu to be held.
func (store *MemoryStore) insert(record *Record) error {
	if _, exists := store.byHash[record.TokenHash]; exists {
		return apperr.Conflict("Refresh token collision")
	}
	stored := copyOf(record)
	store.byID[stored.ID] = stored
	store.byHash[stored.TokenHash] = stored.ID
	return nil
}

func revoke(record *Record, at time.Time) {
	revokedAt := at.UTC()
	record.Revoked = true
	record.RevokedAt = &revokedAt
}

func copyOf(record *Record) *Record {
	clone := *record
	if record.RevokedAt != nil {
		revokedAt := *record.RevokedAt
		clone.RevokedAt = &revokedAt
	}
	return &clone
}
