// Package bootstrap seeds the reference data the service cannot run without:
// the closed role set and one SUPER_ADMIN account. Seeding is idempotent and
// runs once at startup, before the HTTP server accepts traffic.
package bootstrap

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/pw/identity-service/internal/api/metrics"
	"github.com/pw/identity-service/internal/core/domain"
	"github.com/pw/identity-service/internal/core/ports"
)

type store interface {
	ports.IdentityStore
	ports.RoleSeeder
}

// Seeder creates missing roles and the super-admin fixture account.
type Seeder struct {
	store         store
	adminEmail    string
	adminPassword string
	log           zerolog.Logger
}

func NewSeeder(s store, adminEmail, adminPassword string, log zerolog.Logger) *Seeder {
	return &Seeder{
		store:         s,
		adminEmail:    adminEmail,
		adminPassword: adminPassword,
		log:           log,
	}
}

var roleDescriptions = map[domain.RoleName]string{
	domain.RoleUser:       "Default user role",
	domain.RoleAdmin:      "Administrator role",
	domain.RoleSuperAdmin: "Super administrator role",
}

// Run seeds roles, then the super admin. Existing data is left untouched, so
// repeated startups are no-ops.
func (s *Seeder) Run(ctx context.Context) error {
	for _, name := range []domain.RoleName{domain.RoleUser, domain.RoleAdmin, domain.RoleSuperAdmin} {
		now := time.Now().UTC()
		if _, err := s.store.EnsureRole(ctx, &domain.Role{
			Name:        name,
			Description: roleDescriptions[name],
			CreatedAt:   now,
			UpdatedAt:   now,
		}); err != nil {
			return err
		}
	}

	return s.createSuperAdmin(ctx)
}

func (s *Seeder) createSuperAdmin(ctx context.Context) error {
	_, err := s.store.FindByEmail(ctx, s.adminEmail)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrIdentityNotFound) {
		return err
	}

	role, err := s.store.FindRoleByName(ctx, domain.RoleSuperAdmin)
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(s.adminPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if _, err := s.store.Create(ctx, &domain.Identity{
		FullName:     "Super Admin",
		Email:        s.adminEmail,
		PasswordHash: string(hash),
		Role:         *role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}); err != nil {
		// A concurrent replica may have won the race; that still counts as seeded.
		if errors.Is(err, domain.ErrIdentityExists) {
			return nil
		}
		return err
	}

	metrics.IdentitiesSeededTotal.Inc()
	s.log.Info().Str("email", s.adminEmail).Msg("seeded super admin account")
	return nil
}
