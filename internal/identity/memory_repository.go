package identity

import (
	"context"
	"sync"
)

type memoryRepository struct {
	mu      sync.RWMutex
	byPhone map[string]Identity
	devices map[string]map[string]bool // phone -> device id set
}

// NewMemoryRepository builds an in-memory identity store for development and tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		byPhone: make(map[string]Identity),
		devices: make(map[string]map[string]bool),
	}
}

func (r *memoryRepository) Create(_ context.Context, id Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byPhone[id.Phone]; exists {
		return ErrPhoneTaken
	}
	r.byPhone[id.Phone] = id
	return nil
}

func (r *memoryRepository) FindByPhone(_ context.Context, phone string) (Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byPhone[phone]
	if !ok {
		return Identity{}, ErrNotFound
	}
	return id, nil
}

func (r *memoryRepository) FindByID(_ context.Context, identityID string) (Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.byPhone {
		if id.ID == identityID {
			return id, nil
		}
	}
	return Identity{}, ErrNotFound
}

func (r *memoryRepository) UpdateProfile(_ context.Context, id Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for phone, existing := range r.byPhone {
		if existing.ID == id.ID {
			existing.Name = id.Name
			existing.Gender = id.Gender
			existing.BirthDate = id.BirthDate
			existing.ImageKey = id.ImageKey
			existing.Language = id.Language
			r.byPhone[phone] = existing
			return nil
		}
	}
	return ErrNotFound
}

func (r *memoryRepository) Delete(_ context.Context, identityID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for phone, existing := range r.byPhone {
		if existing.ID == identityID {
			delete(r.byPhone, phone)
			delete(r.devices, phone)
			return nil
		}
	}
	return ErrNotFound
}

func (r *memoryRepository) TrustDevice(_ context.Context, identityID, deviceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for phone, existing := range r.byPhone {
		if existing.ID == identityID {
			if r.devices[phone] == nil {
				r.devices[phone] = make(map[string]bool)
			}
			r.devices[phone][deviceID] = true
			return nil
		}
	}
	return ErrNotFound
}

func (r *memoryRepository) DeviceTrusted(_ context.Context, deviceID, phone string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.devices[phone][deviceID], nil
}
