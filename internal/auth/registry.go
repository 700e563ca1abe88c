// Package auth decides who may use the bot. Administrators are fixed at
// startup; other users are granted access by an administrator through the
// request handshake and the grant is kept in a durable Store.
package auth

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"kamadata-bot/pkg/logger"

	"go.uber.org/zap"
)

// Store persists the set of authorized user IDs and the access requests
// still waiting for an administrator, keyed by requester.
type Store interface {
	LoadAuthorized(ctx context.Context) ([]int64, error)
	SaveAuthorized(ctx context.Context, userID int64) error
	DeleteAuthorized(ctx context.Context, userID int64) error

	LoadPending(ctx context.Context) (map[int64]string, error)
	SavePending(ctx context.Context, userID int64, displayName string) error
	DeletePending(ctx context.Context, userID int64) error
}

type Registry struct {
	mu         sync.RWMutex
	admins     map[int64]struct{}
	authorized map[int64]struct{}
	store      Store
	logger     *zap.Logger
}

// NewRegistry loads the authorized set from store. Admin IDs are never
// written to the store.
func NewRegistry(ctx context.Context, store Store, admins []int64, log *zap.Logger) (*Registry, error) {
	r := &Registry{
		admins:     make(map[int64]struct{}, len(admins)),
		authorized: make(map[int64]struct{}),
		store:      store,
		logger:     log.With(zap.String(logger.FieldComponent, "auth")),
	}
	for _, id := range admins {
		r.admins[id] = struct{}{}
	}

	ids, err := store.LoadAuthorized(ctx)
	if err != nil {
		return nil, fmt.Errorf("load authorized users: %w", err)
	}
	for _, id := range ids {
		if _, admin := r.admins[id]; !admin {
			r.authorized[id] = struct{}{}
		}
	}
	r.logger.Info("Authorization registry loaded",
		zap.Int("admins", len(r.admins)), zap.Int("authorized", len(r.authorized)))
	return r, nil
}

func (r *Registry) IsAdmin(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.admins[userID]
	return ok
}

// IsAuthorized is true for administrators and granted users.
func (r *Registry) IsAuthorized(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.admins[userID]; ok {
		return true
	}
	_, ok := r.authorized[userID]
	return ok
}

// Admins returns the administrator IDs in ascending order.
func (r *Registry) Admins() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]int64, 0, len(r.admins))
	for id := range r.admins {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Authorize grants access. It is a no-op for administrators and users that
// are already authorized.
func (r *Registry) Authorize(ctx context.Context, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.admins[userID]; ok {
		return nil
	}
	if _, ok := r.authorized[userID]; ok {
		return nil
	}
	if err := r.store.SaveAuthorized(ctx, userID); err != nil {
		return fmt.Errorf("authorize %d: %w", userID, err)
	}
	r.authorized[userID] = struct{}{}
	r.logger.Info("User authorized", zap.Int64(logger.FieldUserID, userID))
	return nil
}

// Revoke removes a grant. It is a no-op for users without one and never
// affects administrators.
func (r *Registry) Revoke(ctx context.Context, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.authorized[userID]; !ok {
		return nil
	}
	if err := r.store.DeleteAuthorized(ctx, userID); err != nil {
		return fmt.Errorf("revoke %d: %w", userID, err)
	}
	delete(r.authorized, userID)
	r.logger.Info("User revoked", zap.Int64(logger.FieldUserID, userID))
	return nil
}

// MemoryStore is a non-durable Store.
type MemoryStore struct {
	mu      sync.Mutex
	ids     map[int64]struct{}
	pending map[int64]string
}

func NewMemoryStore(ids ...int64) *MemoryStore {
	m := &MemoryStore{
		ids:     make(map[int64]struct{}, len(ids)),
		pending: make(map[int64]string),
	}
	for _, id := range ids {
		m.ids[id] = struct{}{}
	}
	return m
}

func (m *MemoryStore) LoadAuthorized(context.Context) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]int64, 0, len(m.ids))
	for id := range m.ids {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *MemoryStore) SaveAuthorized(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ids[userID] = struct{}{}
	return nil
}

func (m *MemoryStore) DeleteAuthorized(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.ids, userID)
	return nil
}

func (m *MemoryStore) LoadPending(context.Context) (map[int64]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pending := make(map[int64]string, len(m.pending))
	for id, name := range m.pending {
		pending[id] = name
	}
	return pending, nil
}

func (m *MemoryStore) SavePending(_ context.Context, userID int64, displayName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pending[userID] = displayName
	return nil
}

func (m *MemoryStore) DeletePending(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.pending, userID)
	return nil
}
