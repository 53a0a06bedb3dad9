// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics contains pre-defined metrics for the publish service.
//
// All metrics use the "publish_" prefix for consistent naming.
//
// Thread Safety: Safe for concurrent use after creation.
type Metrics struct {
	// --- HTTP Metrics ---

	// HTTPRequestsTotal counts total HTTP requests by method, path, and status.
	HTTPRequestsTotal metric.Int64Counter

	// HTTPRequestDuration records HTTP request duration in seconds.
	HTTPRequestDuration metric.Float64Histogram

	// HTTPActiveRequests tracks currently active HTTP requests.
	HTTPActiveRequests metric.Int64UpDownCounter

	// --- Transition Metrics ---

	// TransitionsTotal counts publishing transitions by action and outcome.
	TransitionsTotal metric.Int64Counter

	// TransitionDuration records transition duration in seconds by action.
	TransitionDuration metric.Float64Histogram

	// TransitionNoOps counts idempotent no-op transitions by action.
	TransitionNoOps metric.Int64Counter

	// --- Backup Metrics ---

	// BackupsTotal counts backup snapshots by outcome.
	BackupsTotal metric.Int64Counter

	// BackupDuration records snapshot duration in seconds.
	BackupDuration metric.Float64Histogram

	// RollbacksTotal counts production restores.
	RollbacksTotal metric.Int64Counter

	// --- Storage Metrics ---

	// StorageRetriesTotal counts storage call retries by operation.
	StorageRetriesTotal metric.Int64Counter

	// --- Error Metrics ---

	// ErrorsTotal counts total errors by type and component.
	ErrorsTotal metric.Int64Counter
}

// NewMetrics registers all publish service metrics with the given meter.
//
// Example:
//
//	meter := otel.Meter("publish")
//	metrics, err := telemetry.NewMetrics(meter)
//	if err != nil {
//	    return fmt.Errorf("create metrics: %w", err)
//	}
//	metrics.TransitionsTotal.Add(ctx, 1, ...)
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.HTTPRequestsTotal, err = meter.Int64Counter(
		"publish_http_requests_total",
		metric.WithDescription("Total HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_requests_total: %w", err)
	}

	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"publish_http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_request_duration: %w", err)
	}

	m.HTTPActiveRequests, err = meter.Int64UpDownCounter(
		"publish_http_active_requests",
		metric.WithDescription("Currently active HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_active_requests: %w", err)
	}

	m.TransitionsTotal, err = meter.Int64Counter(
		"publish_transitions_total",
		metric.WithDescription("Total publishing transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create transitions_total: %w", err)
	}

	m.TransitionDuration, err = meter.Float64Histogram(
		"publish_transition_duration_seconds",
		metric.WithDescription("Publishing transition duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		return nil, fmt.Errorf("create transition_duration: %w", err)
	}

	m.TransitionNoOps, err = meter.Int64Counter(
		"publish_transition_noops_total",
		metric.WithDescription("Idempotent no-op transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create transition_noops: %w", err)
	}

	m.BackupsTotal, err = meter.Int64Counter(
		"publish_backups_total",
		metric.WithDescription("Total backup snapshots"),
		metric.WithUnit("{backup}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create backups_total: %w", err)
	}

	m.BackupDuration, err = meter.Float64Histogram(
		"publish_backup_duration_seconds",
		metric.WithDescription("Backup snapshot duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2, 5, 10, 30, 60),
	)
	if err != nil {
		return nil, fmt.Errorf("create backup_duration: %w", err)
	}

	m.RollbacksTotal, err = meter.Int64Counter(
		"publish_rollbacks_total",
		metric.WithDescription("Total production restores"),
		metric.WithUnit("{restore}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create rollbacks_total: %w", err)
	}

	m.StorageRetriesTotal, err = meter.Int64Counter(
		"publish_storage_retries_total",
		metric.WithDescription("Storage call retries"),
		metric.WithUnit("{retry}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create storage_retries_total: %w", err)
	}

	m.ErrorsTotal, err = meter.Int64Counter(
		"publish_errors_total",
		metric.WithDescription("Total errors by type and component"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create errors_total: %w", err)
	}

	return m, nil
}
