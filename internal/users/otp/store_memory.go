// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package otp

import (
	"context"
	"sync"
	"time"

	"github.com/taibuivan/marketplace-auth/internal/platform/sec"
)

// MemoryStore keeps code records in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*Record
}

// NewMemoryStore returns an empty in-memory code store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record)}
}

var _ Store = (*MemoryStore)(nil)

func (store *MemoryStore) Save(context context.Context, record Record) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	// Expired records are otherwise only dropped when checked.
	for key, existing := range store.records {
		if !record.CreatedAt.Before(existing.ExpiresAt) {
			delete(store.records, key)
		}
	}

	store.records[recordKey(record.UserID, record.Purpose)] = &record
	return nil
}

func (store *MemoryStore) Check(context context.Context, userID string, purpose Purpose, codeHash string, now time.Time) (Outcome, int, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	key := recordKey(userID, purpose)
	record, found := store.records[key]
	if !found {
		return OutcomeExpired, 0, nil
	}
	if !now.Before(record.ExpiresAt) {
		delete(store.records, key)
		return OutcomeExpired, 0, nil
	}
	if record.AttemptsLeft <= 0 {
		return OutcomeExhausted, 0, nil
	}
	if sec.EqualDigest(record.CodeHash, codeHash) {
		delete(store.records, key)
		return OutcomeMatched, 0, nil
	}

	record.AttemptsLeft--
	return OutcomeMismatch, record.AttemptsLeft, nil
}

func (store *MemoryStore) Get(context context.Context, userID string, purpose Purpose, now time.Time) (*Record, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	record, found := store.records[recordKey(userID, purpose)]
	if !found || !now.Before(record.ExpiresAt) {
		return nil, nil
	}

	copied := *record
	return &copied, nil
}
