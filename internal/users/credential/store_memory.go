// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package credential

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/taibuivan/marketplace-auth/internal/platform/apperr"
	"github.com/taibuivan/marketplace-auth/pkg/pagination"
)

// MemoryStore keeps accounts in process memory.
//
// It backs STORAGE_DRIVER=memory and the service tests. A single mutex makes
// every operation atomic, including the email uniqueness check.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]*User
	byEmail map[string]string
	byPhone map[string]string
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]*User),
		byEmail: make(map[string]string),
		byPhone: make(map[string]string),
	}
}

var _ Store = (*MemoryStore)(nil)

func (store *MemoryStore) Create(context context.Context, user *User) error {
	if err := context.Err(); err != nil {
		return apperr.StorageUnavailable(err)
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	prepareForInsert(user, time.Now().UTC())

	if _, taken := store.byEmail[user.Email]; taken {
		return apperr.DuplicateEmail()
	}
	if user.Phone != "" {
		if _, taken := store.byPhone[user.Phone]; taken {
			return apperr.Conflict("Phone number is already registered")
		}
		store.byPhone[user.Phone] = user.ID
	}

	store.byID[user.ID] = user
	store.byID[user.ID] = store.copyOf(user.ID)
	store.byEmail[user.Email] = user.ID
	return nil
}

func (store *MemoryStore) FindByEmail(context context.Context, email string) (*User, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	id, found := store.byEmail[NormalizeEmail(email)]
	if !found {
		return nil, apperr.NotFound("User")
	}
	return store.copyOf(id), nil
}

func (store *MemoryStore) FindByID(context context.Context, id string) (*User, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	if _, found := store.byID[id]; !found {
		return nil, apperr.NotFound("User")
	}
	return store.copyOf(id), nil
}

func (store *MemoryStore) UpdateStatus(context context.Context, userID string, from, to Status) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	user, found := store.byID[userID]
	if !found {
		return apperr.NotFound("User")
	}
	if user.Status != from || !from.CanTransitionTo(to) {
		return apperr.InvalidTransition(string(user.Status), string(to))
	}

	user.Status = to
	user.UpdatedAt = time.Now().UTC()
	return nil
}

func (store *MemoryStore) UpdatePasswordHash(context context.Context, userID, hash string) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	user, found := store.byID[userID]
	if !found {
		return apperr.NotFound("User")
	}

	user.PasswordHash = hash
	user.UpdatedAt = time.Now().UTC()
	return nil
}

func (store *MemoryStore) TouchLastLogin(context context.Context, userID string, at time.Time) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	if user, found := store.byID[userID]; found {
		at = at.UTC()
		user.LastLoginAt = &at
	}
	return nil
}

func (store *MemoryStore) List(context context.Context, filter Filter, page pagination.Params) ([]*User, int, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	prefix := NormalizeEmail(filter.EmailPrefix)
	matches := []*User{}
	for id, user := range store.byID {
		if len(filter.Roles) > 0 && !slices.Contains(filter.Roles, user.Role) {
			continue
		}
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, user.Status) {
			continue
		}
		if prefix != "" && !strings.HasPrefix(user.Email, prefix) {
			continue
		}
		matches = append(matches, store.copyOf(id))
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].ID > matches[j].ID
		}
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})

	total := len(matches)
	start := min(page.Offset(), total)
	end := min(start+page.Limit, total)
	return matches[start:end], total, nil
}

// copyOf returns a detached copy; callers must hold the lock.
func (store *MemoryStore) copyOf(id string) *User {
	user := *store.byID[id]
	if user.LastLoginAt != nil {
		at := *user.LastLoginAt
		user.LastLoginAt = &at
	}
	if user.HaveSubscription != nil {
		subscribed := *user.HaveSubscription
		user.HaveSubscription = &subscribed
	}
	return &user
}
