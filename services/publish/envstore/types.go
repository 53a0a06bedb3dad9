// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package envstore models the staging and production environments.
//
// An environment is a prefix in an object store plus a content-delivery
// distribution whose cached paths can be invalidated. All mutation of the
// published site funnels through this package; nothing else writes to the
// environment prefixes.
package envstore

import (
	"context"
	"strings"
)

// Well-known environment names.
const (
	EnvStaging    = "staging"
	EnvProduction = "production"
)

// Environment is a named deployment target. It is configuration, not a
// persisted record.
type Environment struct {
	// Name is "staging" or "production".
	Name string

	// Prefix is the object-store path root for this environment.
	Prefix string

	// Distribution is the cache-invalidation handle for the CDN serving
	// this environment. Empty means no CDN is attached.
	Distribution string

	// BaseURL is the public root readers use, e.g.
	// "https://staging.example.com".
	BaseURL string
}

// DetailKey returns the environment-relative object key for an article
// detail page: "<language>/<article-id>".
func DetailKey(language, articleID string) string {
	return language + "/" + articleID
}

// ListingKey returns the environment-relative object key for a language's
// listing page: "<language>/index".
func ListingKey(language string) string {
	return language + "/index"
}

// AbsoluteKey joins the environment prefix with a relative key.
func (e Environment) AbsoluteKey(relKey string) string {
	return e.Prefix + "/" + relKey
}

// RelativeKey strips the environment prefix from an absolute key. The
// second return is false if the key does not belong to this environment.
func (e Environment) RelativeKey(absKey string) (string, bool) {
	rel, ok := strings.CutPrefix(absKey, e.Prefix+"/")
	return rel, ok
}

// PageURL returns the public URL for an environment-relative key.
func (e Environment) PageURL(relKey string) string {
	return strings.TrimSuffix(e.BaseURL, "/") + "/" + relKey
}

// ObjectStore is the raw object storage contract.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type ObjectStore interface {
	// Write stores data under key, replacing any existing object.
	Write(ctx context.Context, key string, data []byte) error

	// Read returns the object bytes, or ErrObjectNotFound.
	Read(ctx context.Context, key string) ([]byte, error)

	// Copy duplicates srcKey to dstKey server-side, byte for byte.
	Copy(ctx context.Context, srcKey, dstKey string) error

	// List returns all keys under prefix, lexicographically sorted.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Invalidator asks a CDN distribution to drop cached paths.
//
// Invalidation is best-effort and asynchronous: failure leaves stale
// edge caches (bounded by the cache TTL) but never a wrong origin.
type Invalidator interface {
	Invalidate(ctx context.Context, distribution string, paths []string) error
}
