// Package session stores the bearer credential the dashboard attaches to
// every bed service call. Callers receive a Store at construction; nothing
// reads the token from ambient global state.
package session

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/kingrea/wardboard/internal/config"
)

// Store is the credential collaborator. Token returns "" when no session is
// active.
type Store interface {
	Token(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// FromConfig builds the store selected by session.backend.
func FromConfig(cfg *config.Config) (Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("session: config is nil")
	}
	sc := cfg.Project.Session
	switch sc.Backend {
	case config.SessionBackendFile, "":
		return NewFileStore(cfg.SessionPath()), nil
	case config.SessionBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     sc.Redis.Addr,
			Password: sc.Redis.Password,
			DB:       sc.Redis.DB,
		})
		return NewRedisStore(client, sc.Redis.Key, sc.Redis.TTL), nil
	default:
		return nil, fmt.Errorf("session: unknown backend %q", sc.Backend)
	}
}
