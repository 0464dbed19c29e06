package ports

import (
	"context"

	"github.com/pw/identity-service/internal/core/domain"
)

// IdentityStore defines the persistence contract the authentication core
// consumes. Implementations must be safe for concurrent use.
type IdentityStore interface {
	FindByEmail(ctx context.Context, email string) (*domain.Identity, error)
	FindRoleByName(ctx context.Context, name domain.RoleName) (*domain.Role, error)
	Create(ctx context.Context, identity *domain.Identity) (*domain.Identity, error)
	List(ctx context.Context) ([]domain.Identity, error)
}

// RoleSeeder is the bootstrap-only extension of the store: idempotent
// insertion of the closed role set.
type RoleSeeder interface {
	EnsureRole(ctx context.Context, role *domain.Role) (*domain.Role, error)
}
