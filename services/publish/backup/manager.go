// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package backup snapshots and restores the production environment.
//
// A backup is a complete, timestamped copy of every object under the
// production prefix, taken immediately before any production write. The
// manifest object is written last: a backup without a manifest was never
// completed and is never listed, so partial snapshots cannot be restored.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianPress/services/publish/envstore"
)

const (
	// Root is the object-store prefix holding all backups.
	Root = "backups/"

	// TimestampLayout formats backup identifiers. Second resolution; a
	// numeric suffix separates snapshots taken within the same second.
	TimestampLayout = "2006-01-02-15-04-05"

	manifestObject = "manifest"

	copyConcurrency = 8
)

// Sentinel errors for backup operations.
var (
	// ErrBackupNotFound is returned for unknown backup identifiers.
	ErrBackupNotFound = errors.New("backup not found")

	// ErrNoBackups is returned by Restore when no backup exists yet.
	ErrNoBackups = errors.New("no backups available")

	// ErrSnapshotIncomplete is returned when a snapshot cannot be
	// verified complete. The caller must fail closed: no production
	// write may follow an unverified backup.
	ErrSnapshotIncomplete = errors.New("snapshot could not be verified complete")
)

// Manifest records the exact object set a backup captured. Written last,
// so its presence proves the backup completed.
type Manifest struct {
	// Timestamp is the backup identifier.
	Timestamp string `json:"timestamp"`

	// SourceEnvironment is always "production" today.
	SourceEnvironment string `json:"source_environment"`

	// Keys are the environment-relative keys the backup holds.
	Keys []string `json:"keys"`

	// CreatedAt is the snapshot creation time.
	CreatedAt time.Time `json:"created_at"`
}

// Info describes a listed backup.
type Info struct {
	// Timestamp is the backup identifier.
	Timestamp string `json:"timestamp"`

	// Path is the object-store prefix of the backup.
	Path string `json:"path"`

	// CreatedAt is the snapshot creation time.
	CreatedAt time.Time `json:"created_at"`

	// ObjectCount is how many objects the backup holds.
	ObjectCount int `json:"object_count"`
}

// Manager creates, lists, restores, and expires backups of production.
//
// # Thread Safety
//
// Safe for concurrent use, but the consistency of a snapshot depends on
// the coordinator holding the production environment lock across the
// whole backup-then-write sequence.
type Manager struct {
	store     *envstore.Store
	retention time.Duration
	now       func() time.Time
}

// NewManager creates a backup manager. A non-positive retention falls
// back to 30 days.
func NewManager(store *envstore.Store, retention time.Duration) *Manager {
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	return &Manager{
		store:     store,
		retention: retention,
		now:       time.Now,
	}
}

// WithClock overrides the time source. Test hook.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

func backupPrefix(timestamp string) string {
	return Root + timestamp + "/"
}

func manifestKey(timestamp string) string {
	return backupPrefix(timestamp) + manifestObject
}

// Snapshot copies every object currently under the environment's prefix
// into a new timestamped backup.
//
// Description:
//
//	The snapshot is verified complete (every source key re-listed under
//	the backup prefix) before the manifest is written. On any failure no
//	manifest exists, so the partial copy is invisible to List and
//	Restore. Callers must treat an error as fatal to their promotion
//	attempt: fail closed, never proceed to overwrite production.
//
// Inputs:
//
//	ctx - Context with the operation deadline.
//	env - Environment to snapshot (production).
//
// Outputs:
//
//	*Info - The created backup.
//	error - ErrSnapshotIncomplete (possibly wrapped) or a storage error.
func (m *Manager) Snapshot(ctx context.Context, env envstore.Environment) (*Info, error) {
	createdAt := m.now().UTC()
	objects := m.store.Objects()

	// Back-to-back snapshots can land on the same clock second, and a
	// shared prefix would merge two backups into one. The environment
	// lock serializes snapshots but does not separate their timestamps,
	// so the id is suffixed until it is unused.
	timestamp := createdAt.Format(TimestampLayout)
	for n := 2; ; n++ {
		existing, err := objects.List(ctx, backupPrefix(timestamp))
		if err != nil {
			return nil, fmt.Errorf("check backup id %s: %w", timestamp, err)
		}
		if len(existing) == 0 {
			break
		}
		timestamp = fmt.Sprintf("%s-%02d", createdAt.Format(TimestampLayout), n)
	}

	relKeys, err := m.store.List(ctx, env)
	if err != nil {
		return nil, fmt.Errorf("list %s for snapshot: %w", env.Name, err)
	}
	sort.Strings(relKeys)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(copyConcurrency)
	for _, relKey := range relKeys {
		g.Go(func() error {
			return objects.Copy(gctx, env.AbsoluteKey(relKey), backupPrefix(timestamp)+relKey)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSnapshotIncomplete, err)
	}

	// Verify before declaring the backup usable.
	copied, err := objects.List(ctx, backupPrefix(timestamp))
	if err != nil {
		return nil, fmt.Errorf("%w: verify listing failed: %w", ErrSnapshotIncomplete, err)
	}
	if len(copied) != len(relKeys) {
		return nil, fmt.Errorf("%w: expected %d objects, found %d", ErrSnapshotIncomplete, len(relKeys), len(copied))
	}

	manifest := Manifest{
		Timestamp:         timestamp,
		SourceEnvironment: env.Name,
		Keys:              relKeys,
		CreatedAt:         createdAt,
	}
	data, err := json.Marshal(&manifest)
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	if err := objects.Write(ctx, manifestKey(timestamp), data); err != nil {
		return nil, fmt.Errorf("%w: write manifest: %w", ErrSnapshotIncomplete, err)
	}

	slog.Info("Created backup",
		"timestamp", timestamp,
		"source", env.Name,
		"objects", len(relKeys))

	return &Info{
		Timestamp:   timestamp,
		Path:        backupPrefix(timestamp),
		CreatedAt:   createdAt,
		ObjectCount: len(relKeys),
	}, nil
}

// List returns all completed backups, newest first. Backups without a
// manifest (crashed mid-snapshot) are never included.
func (m *Manager) List(ctx context.Context) ([]Info, error) {
	keys, err := m.store.Objects().List(ctx, Root)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}

	var infos []Info
	for _, key := range keys {
		if !strings.HasSuffix(key, "/"+manifestObject) {
			continue
		}
		manifest, err := m.readManifest(ctx, key)
		if err != nil {
			slog.Warn("Skipping unreadable backup manifest", "key", key, "error", err)
			continue
		}
		infos = append(infos, Info{
			Timestamp:   manifest.Timestamp,
			Path:        backupPrefix(manifest.Timestamp),
			CreatedAt:   manifest.CreatedAt,
			ObjectCount: len(manifest.Keys),
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Timestamp > infos[j].Timestamp
	})
	return infos, nil
}

func (m *Manager) readManifest(ctx context.Context, key string) (*Manifest, error) {
	data, err := m.store.Objects().Read(ctx, key)
	if err != nil {
		return nil, err
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", key, err)
	}
	return &manifest, nil
}

// Get returns the manifest for a backup id, or ErrBackupNotFound.
func (m *Manager) Get(ctx context.Context, timestamp string) (*Manifest, error) {
	manifest, err := m.readManifest(ctx, manifestKey(timestamp))
	if errors.Is(err, envstore.ErrObjectNotFound) {
		return nil, fmt.Errorf("%s: %w", timestamp, ErrBackupNotFound)
	}
	if err != nil {
		return nil, err
	}
	return manifest, nil
}

// Restore copies a backup's objects back onto production and removes any
// production object the backup does not contain, reproducing the exact
// object set of the snapshot. Cache paths for every touched key are
// invalidated best-effort.
//
// An empty timestamp restores the most recent backup.
func (m *Manager) Restore(ctx context.Context, timestamp string) (*Manifest, error) {
	if timestamp == "" {
		backups, err := m.List(ctx)
		if err != nil {
			return nil, err
		}
		if len(backups) == 0 {
			return nil, ErrNoBackups
		}
		timestamp = backups[0].Timestamp
	}

	manifest, err := m.Get(ctx, timestamp)
	if err != nil {
		return nil, err
	}

	production := m.store.Production
	objects := m.store.Objects()

	inBackup := make(map[string]bool, len(manifest.Keys))
	for _, k := range manifest.Keys {
		inBackup[k] = true
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(copyConcurrency)
	for _, relKey := range manifest.Keys {
		g.Go(func() error {
			return objects.Copy(gctx, backupPrefix(timestamp)+relKey, production.AbsoluteKey(relKey))
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("restore backup %s: %w", timestamp, err)
	}

	// Objects written after the snapshot are not part of the restored
	// state and must go.
	current, err := m.store.List(ctx, production)
	if err != nil {
		return nil, fmt.Errorf("list production after restore: %w", err)
	}
	touched := append([]string{}, manifest.Keys...)
	for _, relKey := range current {
		if !inBackup[relKey] {
			if err := m.store.Delete(ctx, production, relKey); err != nil {
				return nil, fmt.Errorf("remove post-snapshot object %s: %w", relKey, err)
			}
			touched = append(touched, relKey)
		}
	}

	// Best-effort: a failed invalidation leaves bounded edge staleness,
	// never wrong origin content.
	_ = m.store.Invalidate(ctx, production, touched)

	slog.Info("Restored backup",
		"timestamp", timestamp,
		"objects", len(manifest.Keys))
	return manifest, nil
}

// Sweep deletes backups older than the retention window. The most recent
// backup is always kept, whatever its age, so at least one restore point
// exists after the first promotion. Returns the deleted backup ids.
func (m *Manager) Sweep(ctx context.Context) ([]string, error) {
	backups, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(backups) <= 1 {
		return nil, nil
	}

	cutoff := m.now().UTC().Add(-m.retention)
	var deleted []string
	// backups is newest-first; index 0 is never a candidate.
	for _, info := range backups[1:] {
		if !info.CreatedAt.Before(cutoff) {
			continue
		}
		if err := m.deleteBackup(ctx, info.Timestamp); err != nil {
			return deleted, err
		}
		deleted = append(deleted, info.Timestamp)
	}

	if len(deleted) > 0 {
		slog.Info("Swept expired backups", "deleted", deleted)
	}
	return deleted, nil
}

func (m *Manager) deleteBackup(ctx context.Context, timestamp string) error {
	objects := m.store.Objects()
	keys, err := objects.List(ctx, backupPrefix(timestamp))
	if err != nil {
		return fmt.Errorf("list backup %s: %w", timestamp, err)
	}
	// Manifest goes first so a partially-deleted backup can no longer
	// be listed or restored.
	if err := objects.Delete(ctx, manifestKey(timestamp)); err != nil {
		return fmt.Errorf("delete manifest %s: %w", timestamp, err)
	}
	for _, key := range keys {
		if err := objects.Delete(ctx, key); err != nil {
			return fmt.Errorf("delete backup object %s: %w", key, err)
		}
	}
	return nil
}
