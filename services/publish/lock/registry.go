// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package lock provides lease-based mutual exclusion for publishing operations.
//
// Locks are keyed by an arbitrary string (an article id, or an environment
// name such as "production"). Acquisition is non-blocking: a caller that
// loses the race gets a LockError immediately instead of queueing, which
// keeps admin-request latency predictable. Every lease carries a TTL so a
// crashed worker cannot wedge a key forever; an expired lease is reclaimed
// by the next Acquire.
package lock

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Lease represents a held lock. It must be released via Registry.Release
// when the guarded operation completes or fails.
type Lease struct {
	// Key is the lock key this lease guards.
	Key string

	// Token uniquely identifies this acquisition. Release checks the
	// token so a reclaimed lease cannot release its successor.
	Token string

	// Holder is a human-readable owner, used in Busy errors and logs.
	Holder string

	// ExpiresAt is when the lease becomes reclaimable.
	ExpiresAt time.Time
}

// Registry manages leases for a set of keys.
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
type Registry struct {
	mu         sync.Mutex
	leases     map[string]*Lease
	defaultTTL time.Duration
	now        func() time.Time
}

// NewRegistry creates a registry whose leases expire after ttl.
// A zero ttl falls back to two minutes.
func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Registry{
		leases:     make(map[string]*Lease),
		defaultTTL: ttl,
		now:        time.Now,
	}
}

// Acquire takes the lease for key on behalf of holder.
//
// Description:
//
//	Non-blocking. If the key is free, or its current lease has expired,
//	a fresh lease is returned. If the key is held by a live lease a
//	*LockError wrapping ErrLockHeld is returned and the caller should
//	surface a Busy error rather than retrying in a loop.
//
// Inputs:
//
//	key - Lock key (article id or environment name). Must be non-empty.
//	holder - Owner identity recorded on the lease, e.g. an actor name.
//
// Outputs:
//
//	*Lease - The acquired lease, nil on failure.
//	error - *LockError if held, ErrEmptyKey if key is empty.
func (r *Registry) Acquire(key, holder string) (*Lease, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.leases[key]; ok {
		if r.now().Before(existing.ExpiresAt) {
			return nil, &LockError{Key: key, Holder: existing.Holder, Err: ErrLockHeld}
		}
		// Lease outlived its TTL: the owning transition crashed or timed
		// out. Reclaim it so retries are eventually possible.
		slog.Warn("Reclaiming expired lease",
			"key", key,
			"stale_holder", existing.Holder,
			"expired_at", existing.ExpiresAt)
		delete(r.leases, key)
	}

	lease := &Lease{
		Key:       key,
		Token:     uuid.NewString(),
		Holder:    holder,
		ExpiresAt: r.now().Add(r.defaultTTL),
	}
	r.leases[key] = lease
	return lease, nil
}

// Release returns the lease. Releasing a nil, already-released, or
// reclaimed lease is a no-op, so Release is safe in deferred cleanup.
func (r *Registry) Release(l *Lease) {
	if l == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.leases[l.Key]
	if !ok || current.Token != l.Token {
		return
	}
	delete(r.leases, l.Key)
}

// Held reports whether key currently has a live lease.
func (r *Registry) Held(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.leases[key]
	return ok && r.now().Before(l.ExpiresAt)
}
