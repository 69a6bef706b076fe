package repositories

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/models"
	"github.com/google/uuid"
)

// UserRepository is the in-process user directory. Records live only as long
// as the process.
type UserRepository struct {
	mu      sync.RWMutex
	byID    map[string]*models.User
	byEmail map[string]string
	now     func() time.Time
}

// NewUserRepository creates an empty directory. A nil clock defaults to time.Now.
func NewUserRepository(clock func() time.Time) *UserRepository {
	if clock == nil {
		clock = time.Now
	}
	return &UserRepository{
		byID:    make(map[string]*models.User),
		byEmail: make(map[string]string),
		now:     clock,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// GetByID returns a copy of the user with id
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	u := *user
	return &u, nil
}

// GetByEmail returns a copy of the user with email, compared case-insensitively
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, models.ErrNotFound
	}
	u := *r.byID[id]
	return &u, nil
}

// Create stores a new user, assigning its id and creation time
func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	email := normalizeEmail(user.Email)
	if email == "" {
		return nil, fmt.Errorf("email is required: %w", models.ErrBadRequest)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[email]; exists {
		return nil, models.ErrConflict
	}

	created := *user
	created.ID = uuid.New().String()
	created.Email = email
	created.CreatedAt = r.now()
	if created.Role == "" {
		created.Role = "user"
	}

	r.byID[created.ID] = &created
	r.byEmail[email] = created.ID

	out := created
	return &out, nil
}

// List returns every user ordered by creation time
func (r *UserRepository) List(ctx context.Context) ([]*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]*models.User, 0, len(r.byID))
	for _, u := range r.byID {
		c := *u
		users = append(users, &c)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}
