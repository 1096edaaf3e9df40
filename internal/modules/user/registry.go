// README: Username uniqueness: Redis SETNX reservations, or a store query when Redis is not configured.
package user

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"

	"newber/internal/apperr"
)

var ErrUsernameTaken = apperr.Validation("username has already been taken")

type UsernameRegistry interface {
	// Reserve claims username for owner or fails with ErrUsernameTaken.
	Reserve(ctx context.Context, username, owner string) error
	Release(ctx context.Context, username string) error
}

const usernameKeyPrefix = "newber:username:"

type RedisRegistry struct {
	redis *redis.Client
}

func NewRedisRegistry(rdb *redis.Client) *RedisRegistry {
	return &RedisRegistry{redis: rdb}
}

// usernameKey is the form both registries compare: usernames are unique ignoring case.
func usernameKey(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func redisUsernameKey(username string) string {
	return usernameKeyPrefix + usernameKey(username)
}

func (r *RedisRegistry) Reserve(ctx context.Context, username, owner string) error {
	ok, err := r.redis.SetNX(ctx, redisUsernameKey(username), owner, 0).Result()
	if err != nil {
		return apperr.Store("reserve username", err)
	}
	if !ok {
		return ErrUsernameTaken
	}
	return nil
}

func (r *RedisRegistry) Release(ctx context.Context, username string) error {
	if err := r.redis.Del(ctx, redisUsernameKey(username)).Err(); err != nil {
		return apperr.Store("release username", err)
	}
	return nil
}

// StoreRegistry checks the users collection. Two concurrent sign-ups with the same username can
// both pass the check; use RedisRegistry when that matters.
type StoreRegistry struct {
	users *Store
}

func NewStoreRegistry(users *Store) *StoreRegistry {
	return &StoreRegistry{users: users}
}

func (r *StoreRegistry) Reserve(ctx context.Context, username, _ string) error {
	found, err := r.users.FindByUsername(ctx, username)
	if err != nil {
		return err
	}
	if len(found) > 0 {
		return ErrUsernameTaken
	}
	return nil
}

func (r *StoreRegistry) Release(ctx context.Context, username string) error {
	return nil
}
