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
	"sync"

	compute "google.golang.org/api/compute/v1"
	"google.golang.org/api/option"
)

// NoopInvalidator logs invalidations without performing them. Used when
// no CDN is configured: origin content is still correct, readers just see
// edge staleness bounded by the cache TTL.
type NoopInvalidator struct{}

func (NoopInvalidator) Invalidate(ctx context.Context, distribution string, paths []string) error {
	slog.Info("CDN not configured, skipping cache invalidation",
		"distribution", distribution,
		"paths", paths)
	return nil
}

// CloudCDNInvalidator drops cached paths from a Cloud CDN enabled load
// balancer. The distribution handle on Environment is the name of the
// URL map fronting the environment's bucket.
type CloudCDNInvalidator struct {
	svc     *compute.Service
	project string
}

// NewCloudCDNInvalidator creates an invalidator for the given GCP
// project. An empty saKeyPath uses application-default credentials.
func NewCloudCDNInvalidator(ctx context.Context, project, saKeyPath string) (*CloudCDNInvalidator, error) {
	if project == "" {
		return nil, fmt.Errorf("cloud cdn invalidation requires a project id")
	}
	var opts []option.ClientOption
	if saKeyPath != "" {
		opts = append(opts, option.WithCredentialsFile(saKeyPath))
	}
	svc, err := compute.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create compute client: %w", err)
	}
	return &CloudCDNInvalidator{svc: svc, project: project}, nil
}

// Invalidate submits one cache invalidation request per path.
//
// The CDN processes invalidations asynchronously; this returns once
// every request has been accepted, not once the edge is clean.
func (i *CloudCDNInvalidator) Invalidate(ctx context.Context, distribution string, paths []string) error {
	for _, path := range paths {
		rule := &compute.CacheInvalidationRule{Path: path}
		_, err := i.svc.UrlMaps.InvalidateCache(i.project, distribution, rule).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("failed to invalidate %s on %s: %w", path, distribution, err)
		}
	}
	return nil
}

// RecordingInvalidator captures invalidation calls for tests.
type RecordingInvalidator struct {
	mu    sync.Mutex
	Calls [][]string

	// Fail makes every Invalidate return an error, to verify that
	// invalidation failures never fail a promotion.
	Fail bool
}

func (r *RecordingInvalidator) Invalidate(ctx context.Context, distribution string, paths []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = append(r.Calls, paths)
	if r.Fail {
		return context.DeadlineExceeded
	}
	return nil
}

// CallCount reports how many invalidations were requested.
func (r *RecordingInvalidator) CallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Calls)
}
