// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package backup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianPress/services/publish/envstore"
)

type fixture struct {
	store   *envstore.Store
	objects *envstore.MemoryStore
	cdn     *envstore.RecordingInvalidator
	manager *Manager
	clock   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	objects := envstore.NewMemoryStore()
	cdn := &envstore.RecordingInvalidator{}
	store := envstore.NewStore(objects, cdn,
		envstore.Environment{Name: envstore.EnvStaging, Prefix: "staging"},
		envstore.Environment{Name: envstore.EnvProduction, Prefix: "production", Distribution: "dist-prod"},
	)
	f := &fixture{
		store:   store,
		objects: objects,
		cdn:     cdn,
		manager: NewManager(store, 30*24*time.Hour),
		clock:   time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
	f.manager.now = func() time.Time { return f.clock }
	return f
}

func (f *fixture) writeProduction(t *testing.T, relKey, content string) {
	t.Helper()
	require.NoError(t, f.store.Write(context.Background(), f.store.Production, relKey, []byte(content)))
}

func TestSnapshot_CapturesProduction(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.writeProduction(t, "en/a1", "one")
	f.writeProduction(t, "es/a1", "uno")
	f.writeProduction(t, "en/index", "listing")

	info, err := f.manager.Snapshot(ctx, f.store.Production)
	require.NoError(t, err)
	assert.Equal(t, "2026-08-01-12-00-00", info.Timestamp)
	assert.Equal(t, 3, info.ObjectCount)

	data, err := f.objects.Read(ctx, "backups/2026-08-01-12-00-00/en/a1")
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))
}

func TestSnapshot_SameSecondIDsAreDistinct(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.writeProduction(t, "en/a1", "one")

	first, err := f.manager.Snapshot(ctx, f.store.Production)
	require.NoError(t, err)
	second, err := f.manager.Snapshot(ctx, f.store.Production)
	require.NoError(t, err)
	require.NotEqual(t, first.Timestamp, second.Timestamp,
		"two snapshots inside one second must not share a backup id")
	assert.Equal(t, 1, second.ObjectCount)

	backups, err := f.manager.List(ctx)
	require.NoError(t, err)
	require.Len(t, backups, 2)
	assert.Equal(t, second.Timestamp, backups[0].Timestamp, "the suffixed id sorts newer")
	assert.Equal(t, first.Timestamp, backups[1].Timestamp)

	// Each backup restores on its own.
	f.writeProduction(t, "en/a1", "mutated")
	_, err = f.manager.Restore(ctx, first.Timestamp)
	require.NoError(t, err)
	data, err := f.store.Read(ctx, f.store.Production, "en/a1")
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))
}

func TestSnapshot_FailsClosed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.writeProduction(t, "en/a1", "one")
	f.objects.FailCopies = true

	_, err := f.manager.Snapshot(ctx, f.store.Production)
	require.ErrorIs(t, err, ErrSnapshotIncomplete)

	// The failed snapshot has no manifest and must be invisible.
	backups, listErr := f.manager.List(ctx)
	require.NoError(t, listErr)
	assert.Empty(t, backups)
}

func TestList_NewestFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.writeProduction(t, "en/a1", "one")

	_, err := f.manager.Snapshot(ctx, f.store.Production)
	require.NoError(t, err)

	f.clock = f.clock.Add(time.Hour)
	_, err = f.manager.Snapshot(ctx, f.store.Production)
	require.NoError(t, err)

	backups, err := f.manager.List(ctx)
	require.NoError(t, err)
	require.Len(t, backups, 2)
	assert.Equal(t, "2026-08-01-13-00-00", backups[0].Timestamp)
	assert.Equal(t, "2026-08-01-12-00-00", backups[1].Timestamp)
}

func TestRestore_ByteIdentical(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.writeProduction(t, "en/a1", "version one")
	f.writeProduction(t, "en/index", "listing one")

	info, err := f.manager.Snapshot(ctx, f.store.Production)
	require.NoError(t, err)

	// Mutate production after the snapshot: overwrite one object and
	// add a new one.
	f.writeProduction(t, "en/a1", "version two")
	f.writeProduction(t, "en/a2", "a newcomer")

	manifest, err := f.manager.Restore(ctx, info.Timestamp)
	require.NoError(t, err)
	assert.Equal(t, info.Timestamp, manifest.Timestamp)

	data, err := f.store.Read(ctx, f.store.Production, "en/a1")
	require.NoError(t, err)
	assert.Equal(t, "version one", string(data))

	// The post-snapshot object must be gone: restore reproduces the
	// exact object set.
	_, err = f.store.Read(ctx, f.store.Production, "en/a2")
	assert.ErrorIs(t, err, envstore.ErrObjectNotFound)

	assert.Greater(t, f.cdn.CallCount(), 0, "restore must request cache invalidation")
}

func TestRestore_DefaultsToNewest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.writeProduction(t, "en/a1", "old")
	_, err := f.manager.Snapshot(ctx, f.store.Production)
	require.NoError(t, err)

	f.clock = f.clock.Add(time.Hour)
	f.writeProduction(t, "en/a1", "new")
	_, err = f.manager.Snapshot(ctx, f.store.Production)
	require.NoError(t, err)

	f.writeProduction(t, "en/a1", "broken deploy")

	manifest, err := f.manager.Restore(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "2026-08-01-13-00-00", manifest.Timestamp)

	data, err := f.store.Read(ctx, f.store.Production, "en/a1")
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestRestore_UnknownBackup(t *testing.T) {
	f := newFixture(t)
	_, err := f.manager.Restore(context.Background(), "1999-01-01-00-00-00")
	assert.ErrorIs(t, err, ErrBackupNotFound)
}

func TestRestore_NoBackups(t *testing.T) {
	f := newFixture(t)
	_, err := f.manager.Restore(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoBackups)
}

func TestSweep_KeepsNewestRegardlessOfAge(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.writeProduction(t, "en/a1", "one")

	_, err := f.manager.Snapshot(ctx, f.store.Production)
	require.NoError(t, err)
	f.clock = f.clock.Add(time.Hour)
	_, err = f.manager.Snapshot(ctx, f.store.Production)
	require.NoError(t, err)

	// Both backups are now far older than the retention window.
	f.clock = f.clock.Add(90 * 24 * time.Hour)

	deleted, err := f.manager.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-08-01-12-00-00"}, deleted)

	backups, err := f.manager.List(ctx)
	require.NoError(t, err)
	require.Len(t, backups, 1, "the newest backup must survive any sweep")
	assert.Equal(t, "2026-08-01-13-00-00", backups[0].Timestamp)
}

func TestSweep_KeepsFreshBackups(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.writeProduction(t, "en/a1", "one")

	_, err := f.manager.Snapshot(ctx, f.store.Production)
	require.NoError(t, err)
	f.clock = f.clock.Add(time.Hour)
	_, err = f.manager.Snapshot(ctx, f.store.Production)
	require.NoError(t, err)

	deleted, err := f.manager.Sweep(ctx)
	require.NoError(t, err)
	assert.Empty(t, deleted)
}
