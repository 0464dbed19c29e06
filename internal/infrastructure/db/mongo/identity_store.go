package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pw/identity-service/internal/core/domain"
)

const (
	identityCollection = "identities"
	roleCollection     = "roles"
)

// IdentityStore is the MongoDB-backed implementation of ports.IdentityStore
// and ports.RoleSeeder. Email uniqueness is enforced by the unique index
// EnsureIndexes creates; duplicate-key errors map to ErrIdentityExists.
type IdentityStore struct {
	identities *mongo.Collection
	roles      *mongo.Collection
}

func NewIdentityStore(db *mongo.Database) *IdentityStore {
	return &IdentityStore{
		identities: db.Collection(identityCollection),
		roles:      db.Collection(roleCollection),
	}
}

// EnsureIndexes creates the indexes the store depends on: the unique email
// index backing the global email invariant, and the unique role-name index.
// Must run at startup before the store serves traffic.
func (r *IdentityStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.identities.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create email index: %w", err)
	}

	_, err = r.roles.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create role name index: %w", err)
	}
	return nil
}

type mongoIdentity struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	FullName     string             `bson:"full_name"`
	Email        string             `bson:"email"`
	PasswordHash string             `bson:"password_hash"`
	RoleName     string             `bson:"role_name"`
	CreatedAt    int64              `bson:"created_at"`
	UpdatedAt    int64              `bson:"updated_at"`
}

type mongoRole struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Name        string             `bson:"name"`
	Description string             `bson:"description"`
	CreatedAt   int64              `bson:"created_at"`
	UpdatedAt   int64              `bson:"updated_at"`
}

func (r *IdentityStore) Create(ctx context.Context, identity *domain.Identity) (*domain.Identity, error) {
	doc := mongoIdentity{
		FullName:     identity.FullName,
		Email:        identity.Email,
		PasswordHash: identity.PasswordHash,
		RoleName:     string(identity.Role.Name),
		CreatedAt:    identity.CreatedAt.Unix(),
		UpdatedAt:    identity.UpdatedAt.Unix(),
	}

	_, err := r.identities.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrIdentityExists
		}
		return nil, fmt.Errorf("insert identity: %w", err)
	}

	// fetch back to get ID
	created, err := r.FindByEmail(ctx, identity.Email)
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *IdentityStore) FindByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	var mi mongoIdentity
	if err := r.identities.FindOne(ctx, bson.M{"email": email}).Decode(&mi); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domain.ErrIdentityNotFound
		}
		return nil, fmt.Errorf("find identity: %w", err)
	}
	return r.toDomain(ctx, mi)
}

func (r *IdentityStore) FindRoleByName(ctx context.Context, name domain.RoleName) (*domain.Role, error) {
	var mr mongoRole
	if err := r.roles.FindOne(ctx, bson.M{"name": string(name)}).Decode(&mr); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domain.ErrRoleNotFound
		}
		return nil, fmt.Errorf("find role: %w", err)
	}
	role := roleToDomain(mr)
	return &role, nil
}

func (r *IdentityStore) List(ctx context.Context) ([]domain.Identity, error) {
	// The role set is closed and tiny; resolve it once instead of a lookup
	// per identity.
	roles, err := r.rolesByName(ctx)
	if err != nil {
		return nil, err
	}

	cursor, err := r.identities.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	defer cursor.Close(ctx)

	var out []domain.Identity
	for cursor.Next(ctx) {
		var mi mongoIdentity
		if err := cursor.Decode(&mi); err != nil {
			return nil, fmt.Errorf("decode identity: %w", err)
		}
		role, ok := roles[domain.RoleName(mi.RoleName)]
		if !ok {
			return nil, domain.ErrRoleNotFound
		}
		out = append(out, *identityFromDoc(mi, role))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	return out, nil
}

func (r *IdentityStore) rolesByName(ctx context.Context) (map[domain.RoleName]domain.Role, error) {
	cursor, err := r.roles.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer cursor.Close(ctx)

	roles := make(map[domain.RoleName]domain.Role)
	for cursor.Next(ctx) {
		var mr mongoRole
		if err := cursor.Decode(&mr); err != nil {
			return nil, fmt.Errorf("decode role: %w", err)
		}
		role := roleToDomain(mr)
		roles[role.Name] = role
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	return roles, nil
}

// EnsureRole inserts the role when absent and returns the stored document
// either way. Safe to call on every startup.
func (r *IdentityStore) EnsureRole(ctx context.Context, role *domain.Role) (*domain.Role, error) {
	existing, err := r.FindRoleByName(ctx, role.Name)
	if err == nil {
		return existing, nil
	}
	if err != domain.ErrRoleNotFound {
		return nil, err
	}

	doc := mongoRole{
		Name:        string(role.Name),
		Description: role.Description,
		CreatedAt:   role.CreatedAt.Unix(),
		UpdatedAt:   role.UpdatedAt.Unix(),
	}
	if _, err := r.roles.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return r.FindRoleByName(ctx, role.Name)
		}
		return nil, fmt.Errorf("insert role: %w", err)
	}
	return r.FindRoleByName(ctx, role.Name)
}

// toDomain resolves the stored role name against the roles collection so an
// Identity never leaves this layer with an empty role.
func (r *IdentityStore) toDomain(ctx context.Context, mi mongoIdentity) (*domain.Identity, error) {
	name, err := domain.ParseRoleName(mi.RoleName)
	if err != nil {
		return nil, err
	}
	role, err := r.FindRoleByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return identityFromDoc(mi, *role), nil
}

func identityFromDoc(mi mongoIdentity, role domain.Role) *domain.Identity {
	return &domain.Identity{
		ID:           mi.ID.Hex(),
		FullName:     mi.FullName,
		Email:        mi.Email,
		PasswordHash: mi.PasswordHash,
		Role:         role,
		CreatedAt:    unixToTime(mi.CreatedAt),
		UpdatedAt:    unixToTime(mi.UpdatedAt),
	}
}

func roleToDomain(mr mongoRole) domain.Role {
	return domain.Role{
		ID:          mr.ID.Hex(),
		Name:        domain.RoleName(mr.Name),
		Description: mr.Description,
		CreatedAt:   unixToTime(mr.CreatedAt),
		UpdatedAt:   unixToTime(mr.UpdatedAt),
	}
}

func unixToTime(ts int64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0).UTC()
}
