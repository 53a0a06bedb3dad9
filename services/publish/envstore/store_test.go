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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore() *Store {
	return NewStore(
		NewMemoryStore(),
		&RecordingInvalidator{},
		Environment{Name: EnvStaging, Prefix: "staging", Distribution: "dist-stg", BaseURL: "https://staging.example.com"},
		Environment{Name: EnvProduction, Prefix: "production", Distribution: "dist-prod", BaseURL: "https://example.com"},
	)
}

func TestKeyConventions(t *testing.T) {
	assert.Equal(t, "en/a1", DetailKey("en", "a1"))
	assert.Equal(t, "es/index", ListingKey("es"))

	env := Environment{Name: EnvStaging, Prefix: "staging", BaseURL: "https://staging.example.com/"}
	assert.Equal(t, "staging/en/a1", env.AbsoluteKey("en/a1"))
	assert.Equal(t, "https://staging.example.com/en/a1", env.PageURL("en/a1"))

	rel, ok := env.RelativeKey("staging/en/a1")
	require.True(t, ok)
	assert.Equal(t, "en/a1", rel)

	_, ok = env.RelativeKey("production/en/a1")
	assert.False(t, ok)
}

func TestStore_WriteReadList(t *testing.T) {
	ctx := context.Background()
	s := testStore()

	require.NoError(t, s.Write(ctx, s.Staging, DetailKey("en", "a1"), []byte("<html>one</html>")))
	require.NoError(t, s.Write(ctx, s.Staging, DetailKey("es", "a1"), []byte("<html>uno</html>")))

	data, err := s.Read(ctx, s.Staging, "en/a1")
	require.NoError(t, err)
	assert.Equal(t, "<html>one</html>", string(data))

	keys, err := s.List(ctx, s.Staging)
	require.NoError(t, err)
	assert.Equal(t, []string{"en/a1", "es/a1"}, keys)

	// Production must be empty: environments do not share keys.
	keys, err = s.List(ctx, s.Production)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestStore_CopyPreservesBytes(t *testing.T) {
	ctx := context.Background()
	s := testStore()

	payload := []byte("<html>previewed bytes</html>")
	require.NoError(t, s.Write(ctx, s.Staging, "en/a1", payload))
	require.NoError(t, s.Copy(ctx, s.Staging, s.Production, []string{"en/a1"}))

	got, err := s.Read(ctx, s.Production, "en/a1")
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestStore_CopyMissingSource(t *testing.T) {
	ctx := context.Background()
	s := testStore()

	err := s.Copy(ctx, s.Staging, s.Production, []string{"en/missing"})
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestStore_ReadMissing(t *testing.T) {
	_, err := testStore().Read(context.Background(), testStore().Staging, "en/none")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestStore_Env(t *testing.T) {
	s := testStore()

	env, err := s.Env(EnvProduction)
	require.NoError(t, err)
	assert.Equal(t, "production", env.Prefix)

	_, err = s.Env("qa")
	assert.ErrorIs(t, err, ErrUnknownEnvironment)
}

func TestStore_InvalidatePrependsSlash(t *testing.T) {
	ctx := context.Background()
	rec := &RecordingInvalidator{}
	s := NewStore(NewMemoryStore(), rec,
		Environment{Name: EnvStaging, Prefix: "staging"},
		Environment{Name: EnvProduction, Prefix: "production", Distribution: "dist-prod"},
	)

	require.NoError(t, s.Invalidate(ctx, s.Production, []string{"en/a1", "en/index"}))
	require.Len(t, rec.Calls, 1)
	assert.Equal(t, []string{"/en/a1", "/en/index"}, rec.Calls[0])
}

func TestStore_InvalidateFailureIsReturnedNotFatal(t *testing.T) {
	ctx := context.Background()
	rec := &RecordingInvalidator{Fail: true}
	s := NewStore(NewMemoryStore(), rec,
		Environment{Name: EnvStaging, Prefix: "staging"},
		Environment{Name: EnvProduction, Prefix: "production", Distribution: "dist-prod"},
	)

	err := s.Invalidate(ctx, s.Production, []string{"en/a1"})
	assert.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
