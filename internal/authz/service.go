package authz

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrActorRequired indicates a capability check without an actor.
var ErrActorRequired = errors.New("authz: actor required")

// Service answers boolean capability checks for payroll actors. Resolved
// capability sets are cached with a TTL and invalidated on every grant or
// revoke, so slow lookups never sit on the period critical section.
type Service struct {
	pool   *pgxpool.Pool
	cache  *Cache
	logger *slog.Logger

	// loader is swappable for tests.
	loader func(ctx context.Context, actorID int64) ([]Capability, error)
}

// NewService constructs a Service backed by the provided pool and cache.
func NewService(pool *pgxpool.Pool, cache *Cache, logger *slog.Logger) *Service {
	s := &Service{pool: pool, cache: cache, logger: logger}
	s.loader = s.loadCapabilities
	return s
}

// Allow reports whether the actor holds the capability.
func (s *Service) Allow(ctx context.Context, actorID int64, cap Capability) (bool, error) {
	caps, err := s.Capabilities(ctx, actorID)
	if err != nil {
		return false, err
	}
	for _, c := range caps {
		if c == cap {
			return true, nil
		}
	}
	return false, nil
}

// Capabilities returns the actor's effective capability set, from cache when warm.
func (s *Service) Capabilities(ctx context.Context, actorID int64) ([]Capability, error) {
	if actorID == 0 {
		return nil, ErrActorRequired
	}
	if caps, ok := s.cache.Get(ctx, actorID); ok {
		return caps, nil
	}
	caps, err := s.loader(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Put(ctx, actorID, caps); err != nil && s.logger != nil {
		s.logger.Warn("authz cache put", slog.Any("error", err))
	}
	return caps, nil
}

// Grant adds a capability to an actor and invalidates the cached set.
func (s *Service) Grant(ctx context.Context, actorID int64, cap Capability) error {
	if actorID == 0 {
		return ErrActorRequired
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO actor_capabilities (actor_id, capability)
VALUES ($1, $2) ON CONFLICT DO NOTHING`, actorID, string(cap))
	if err != nil {
		return err
	}
	return s.cache.Invalidate(ctx, actorID)
}

// Revoke removes a capability from an actor and invalidates the cached set.
func (s *Service) Revoke(ctx context.Context, actorID int64, cap Capability) error {
	if actorID == 0 {
		return ErrActorRequired
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM actor_capabilities WHERE actor_id=$1 AND capability=$2`, actorID, string(cap))
	if err != nil {
		return err
	}
	return s.cache.Invalidate(ctx, actorID)
}

func (s *Service) loadCapabilities(ctx context.Context, actorID int64) ([]Capability, error) {
	rows, err := s.pool.Query(ctx, `SELECT capability FROM actor_capabilities WHERE actor_id=$1 ORDER BY capability`, actorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	caps := []Capability{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		caps = append(caps, Capability(c))
	}
	return caps, rows.Err()
}
