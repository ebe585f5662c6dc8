package repository

import (
	"context"
	"sync"

	"github.com/spec-kit/support-desk/internal/domain"
)

type memoryUserRepository struct {
	mu      sync.RWMutex
	byID    map[string]*domain.User
	byEmail map[string]string
	order   []string
	clock   Clock
}

// NewMemoryUserRepository returns a process-local user directory.
func NewMemoryUserRepository(clock Clock) UserRepository {
	return &memoryUserRepository{
		byID:    make(map[string]*domain.User),
		byEmail: make(map[string]string),
		clock:   clock,
	}
}

func (r *memoryUserRepository) Create(_ context.Context, user *domain.User) error {
	prepareUser(user, r.clock)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byEmail[user.Email]; exists {
		return emailTaken(user.Email)
	}
	stored := *user
	r.byID[user.ID] = &stored
	r.byEmail[user.Email] = user.ID
	r.order = append(r.order, user.ID)
	return nil
}

func (r *memoryUserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.byID[id]
	if !ok {
		return nil, userNotFound(id)
	}
	out := *user
	return &out, nil
}

func (r *memoryUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	id, ok := r.byEmail[normalizeEmail(email)]
	r.mu.RUnlock()
	if !ok {
		return nil, userEmailNotFound(email)
	}
	return r.GetByID(ctx, id)
}

func (r *memoryUserRepository) List(_ context.Context) ([]domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]domain.User, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, *r.byID[id])
	}
	return result, nil
}

func (r *memoryUserRepository) UpdateRole(_ context.Context, id string, role domain.Role) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.byID[id]
	if !ok {
		return nil, userNotFound(id)
	}
	user.Role = role
	user.UpdatedAt = domain.Timestamp(r.clock.now())
	out := *user
	return &out, nil
}

func (r *memoryUserRepository) CountByRole(_ context.Context) (map[domain.Role]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[domain.Role]int, len(domain.Roles))
	for _, user := range r.byID {
		counts[user.Role]++
	}
	return counts, nil
}
