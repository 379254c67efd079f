package cacheinfra

import (
	"context"
	"time"

	"github.com/viccon/sturdyc"
)

// entry carries its own deadline because sturdyc applies one TTL to the
// whole client.
type entry struct {
	value     []byte
	expiresAt time.Time
}

// SturdycStore is an in-process store backed by a sturdyc client. Capacity is
// enforced by sturdyc's percentage eviction.
type SturdycStore struct {
	client     *sturdyc.Client[entry]
	defaultTTL time.Duration
	maxTTL     time.Duration
	now        func() time.Time
}

// NewSturdycStore validates cfg and initializes a sturdyc client.
//
// Capacity, NumShards, MaxTTL and EvictionPercentage are passed to
// sturdyc.New(); EvictionInterval is applied as an option.
func NewSturdycStore(cfg MemoryConfig) (*SturdycStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var options []sturdyc.Option
	if cfg.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(cfg.EvictionInterval))
	}

	client := sturdyc.New[entry](
		cfg.Capacity,
		cfg.NumShards,
		cfg.MaxTTL,
		cfg.EvictionPercentage,
		options...,
	)

	return &SturdycStore{
		client:     client,
		defaultTTL: cfg.DefaultTTL,
		maxTTL:     cfg.MaxTTL,
		now:        time.Now,
	}, nil
}

// Get returns the payload for key if it exists and has not expired.
func (s *SturdycStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	e, ok := s.client.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !s.now().Before(e.expiresAt) {
		s.client.Delete(key)
		return nil, false, nil
	}
	return e.value, true, nil
}

// Set upserts key. TTLs beyond MaxTTL are clamped.
func (s *SturdycStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	if ttl > s.maxTTL {
		ttl = s.maxTTL
	}

	s.client.Set(key, entry{
		value:     append([]byte(nil), value...),
		expiresAt: s.now().Add(ttl),
	})
	return nil
}

// Delete removes a single entry.
func (s *SturdycStore) Delete(ctx context.Context, key string) error {
	s.client.Delete(key)
	return nil
}

// KeysMatching scans the live keys and returns those selected by pattern.
func (s *SturdycStore) KeysMatching(ctx context.Context, pattern string) ([]string, error) {
	matches := make([]string, 0)
	now := s.now()

	for _, key := range s.client.ScanKeys() {
		if !matchPattern(pattern, key) {
			continue
		}
		if e, ok := s.client.Get(key); ok && now.Before(e.expiresAt) {
			matches = append(matches, key)
		}
	}

	return matches, nil
}

// ResetAll deletes every entry.
func (s *SturdycStore) ResetAll(ctx context.Context) error {
	for _, key := range s.client.ScanKeys() {
		s.client.Delete(key)
	}
	return nil
}

// Len reports the number of entries currently held, expired or not.
func (s *SturdycStore) Len() int {
	return len(s.client.ScanKeys())
}
