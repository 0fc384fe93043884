// Package redisstore keeps calibration profiles in Redis so several
// processes can share the latest profile.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/sawpanic/swingrun/internal/calibration"
	"github.com/sawpanic/swingrun/internal/persistence"
)

// DefaultPrefix namespaces every key the store writes
const DefaultPrefix = "swingrun:calibration:"

// ProfileStore implements persistence.ProfileStore. Profiles live under
// <prefix>profile:<id> with an optional retention TTL; <prefix>latest holds
// the ID of the active one.
type ProfileStore struct {
	client    redis.UniversalClient
	prefix    string
	retention time.Duration
}

// New creates a store; retention 0 keeps profiles forever
func New(client redis.UniversalClient, prefix string, retention time.Duration) *ProfileStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &ProfileStore{client: client, prefix: prefix, retention: retention}
}

func (s *ProfileStore) profileKey(id string) string { return s.prefix + "profile:" + id }
func (s *ProfileStore) latestKey() string           { return s.prefix + "latest" }

// Save writes the profile before repointing latest, so the pointer never
// names a missing profile
func (s *ProfileStore) Save(ctx context.Context, p *calibration.Profile) error {
	if p == nil || p.ID == "" {
		return errors.New("profile must have an ID")
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	if err := s.client.Set(ctx, s.profileKey(p.ID), raw, s.retention).Err(); err != nil {
		return fmt.Errorf("failed to save profile %s: %w", p.ID, err)
	}
	if err := s.client.Set(ctx, s.latestKey(), p.ID, 0).Err(); err != nil {
		return fmt.Errorf("failed to point latest at %s: %w", p.ID, err)
	}
	return nil
}

// Latest follows the latest pointer
func (s *ProfileStore) Latest(ctx context.Context) (*calibration.Profile, error) {
	id, err := s.client.Get(ctx, s.latestKey()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, persistence.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read latest profile pointer: %w", err)
	}
	return s.Get(ctx, id)
}

// Get loads a profile by ID
func (s *ProfileStore) Get(ctx context.Context, id string) (*calibration.Profile, error) {
	raw, err := s.client.Get(ctx, s.profileKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, persistence.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read profile %s: %w", id, err)
	}
	var p calibration.Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("failed to decode profile %s: %w", id, err)
	}
	return &p, nil
}

// ClearLatest deletes the latest pointer; the profile itself is kept
func (s *ProfileStore) ClearLatest(ctx context.Context) error {
	if err := s.client.Del(ctx, s.latestKey()).Err(); err != nil {
		return fmt.Errorf("failed to clear latest profile: %w", err)
	}
	return nil
}

// Ping checks connectivity
func (s *ProfileStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
