package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/auth-gate/internal/domain"
)

var (
	errEmailTaken    = fmt.Errorf("%w: email", domain.ErrIdentityExists)
	errUsernameTaken = fmt.Errorf("%w: username", domain.ErrIdentityExists)
)

const (
	identityKeyPrefix      = "identity:"
	identityEmailKeyPrefix = "identity-email:"
)

type redisIdentityRepository struct {
	client redis.UniversalClient
	now    func() time.Time
}

// NewRedisIdentityRepository stores each identity as a hash keyed by username
// plus an email index key pointing back at the username.
func NewRedisIdentityRepository(client redis.UniversalClient) IdentityRepository {
	return &redisIdentityRepository{client: client, now: time.Now}
}

func identityKey(subjectID string) string { return identityKeyPrefix + subjectID }

func emailKey(email string) string { return identityEmailKeyPrefix + strings.ToLower(email) }

func (r *redisIdentityRepository) FindBySubjectID(ctx context.Context, subjectID string) (*domain.Identity, error) {
	fields, err := r.client.HGetAll(ctx, identityKey(subjectID)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, domain.ErrIdentityNotFound
	}

	identity := &domain.Identity{
		ID:           fields["id"],
		Username:     subjectID,
		Email:        fields["email"],
		PasswordHash: fields["password_hash"],
		Roles:        []domain.RoleName{},
	}
	if created, err := time.Parse(time.RFC3339Nano, fields["created_at"]); err == nil {
		identity.CreatedAt = created
	}
	for _, role := range strings.Split(fields["roles"], ",") {
		if role = strings.TrimSpace(role); role != "" {
			identity.Roles = append(identity.Roles, domain.RoleName(role))
		}
	}
	return identity, nil
}

func (r *redisIdentityRepository) ExistsBySubjectID(ctx context.Context, subjectID string) (bool, error) {
	n, err := r.client.Exists(ctx, identityKey(subjectID)).Result()
	return n > 0, err
}

func (r *redisIdentityRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	n, err := r.client.Exists(ctx, emailKey(email)).Result()
	return n > 0, err
}

// Create claims the email index with SETNX, then writes the identity hash in a
// WATCH transaction so neither a username nor an email can be registered twice.
func (r *redisIdentityRepository) Create(ctx context.Context, identity *domain.Identity) error {
	ok, err := r.client.SetNX(ctx, emailKey(identity.Email), identity.Username, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return errEmailTaken
	}

	roles := make([]string, 0, len(identity.Roles))
	for _, role := range identity.Roles {
		roles = append(roles, string(role))
	}
	id := uuid.NewString()
	createdAt := r.now().UTC()
	key := identityKey(identity.Username)

	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return errUsernameTaken
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key,
				"id", id,
				"email", identity.Email,
				"password_hash", identity.PasswordHash,
				"roles", strings.Join(roles, ","),
				"created_at", createdAt.Format(time.RFC3339Nano),
			)
			return nil
		})
		return err
	}, key)
	if err != nil {
		r.client.Del(ctx, emailKey(identity.Email))
		return err
	}

	identity.ID = id
	identity.CreatedAt = createdAt
	return nil
}
