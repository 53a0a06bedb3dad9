// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package envstore

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// copyConcurrency bounds parallel object copies during promotion.
const copyConcurrency = 8

// Store exposes environment-scoped operations over an ObjectStore and a
// CDN invalidator.
//
// # Description
//
// All keys at this level are environment-relative ("<language>/<id>" or
// "<language>/index"); the Store joins them with the environment prefix.
// Promotion uses Copy, never write-after-re-render, so production always
// receives exactly the bytes that were previewed in staging.
//
// # Thread Safety
//
// Safe for concurrent use. Serialization of conflicting writers is the
// coordinator's job, not this package's.
type Store struct {
	objects ObjectStore
	cdn     Invalidator

	// Staging and Production are the two logical environments.
	Staging    Environment
	Production Environment
}

// NewStore assembles a Store from its collaborators. A nil cdn falls
// back to NoopInvalidator.
func NewStore(objects ObjectStore, cdn Invalidator, staging, production Environment) *Store {
	if cdn == nil {
		cdn = NoopInvalidator{}
	}
	return &Store{
		objects:    objects,
		cdn:        cdn,
		Staging:    staging,
		Production: production,
	}
}

// Objects returns the underlying object store. The backup manager uses
// it for prefixes outside any environment.
func (s *Store) Objects() ObjectStore {
	return s.objects
}

// Env resolves an environment by name.
func (s *Store) Env(name string) (Environment, error) {
	switch name {
	case EnvStaging:
		return s.Staging, nil
	case EnvProduction:
		return s.Production, nil
	default:
		return Environment{}, fmt.Errorf("%q: %w", name, ErrUnknownEnvironment)
	}
}

// Write stores data under the environment-relative key.
func (s *Store) Write(ctx context.Context, env Environment, relKey string, data []byte) error {
	return s.objects.Write(ctx, env.AbsoluteKey(relKey), data)
}

// Read returns the object bytes for the environment-relative key.
func (s *Store) Read(ctx context.Context, env Environment, relKey string) ([]byte, error) {
	return s.objects.Read(ctx, env.AbsoluteKey(relKey))
}

// Copy promotes the given relative keys from one environment to another,
// byte for byte.
func (s *Store) Copy(ctx context.Context, from, to Environment, relKeys []string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(copyConcurrency)
	for _, relKey := range relKeys {
		g.Go(func() error {
			return s.objects.Copy(ctx, from.AbsoluteKey(relKey), to.AbsoluteKey(relKey))
		})
	}
	return g.Wait()
}

// List returns all environment-relative keys currently in env.
func (s *Store) List(ctx context.Context, env Environment) ([]string, error) {
	absKeys, err := s.objects.List(ctx, env.Prefix+"/")
	if err != nil {
		return nil, err
	}
	rel := make([]string, 0, len(absKeys))
	for _, k := range absKeys {
		if r, ok := env.RelativeKey(k); ok {
			rel = append(rel, r)
		}
	}
	return rel, nil
}

// Delete removes the environment-relative key.
func (s *Store) Delete(ctx context.Context, env Environment, relKey string) error {
	return s.objects.Delete(ctx, env.AbsoluteKey(relKey))
}

// Invalidate asks the environment's distribution to drop the given paths.
//
// Best-effort: the error is returned for logging but callers must not
// fail an otherwise-successful promotion on it.
func (s *Store) Invalidate(ctx context.Context, env Environment, relKeys []string) error {
	if env.Distribution == "" {
		return NoopInvalidator{}.Invalidate(ctx, env.Name, relKeys)
	}
	paths := make([]string, 0, len(relKeys))
	for _, k := range relKeys {
		paths = append(paths, "/"+k)
	}
	if err := s.cdn.Invalidate(ctx, env.Distribution, paths); err != nil {
		slog.Warn("Cache invalidation failed, edge may serve stale content until TTL",
			"environment", env.Name,
			"paths", paths,
			"error", err)
		return err
	}
	return nil
}
