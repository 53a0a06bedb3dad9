// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package articles

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianPress/services/publish/storage/badgerstore"
)

func newTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	db, err := badgerstore.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store, err := NewBadgerStore(db)
	require.NoError(t, err)
	return store
}

func seedArticle(t *testing.T, store *BadgerStore, id, date string, status ReviewStatus, stage PublishStage) {
	t.Helper()
	err := store.PutArticle(context.Background(), &Article{
		ID:              id,
		PrimaryLanguage: "en",
		PublishedDate:   date,
		Title:           map[string]string{"en": "Title " + id},
		Content:         map[string]string{"en": "Body " + id},
		ReviewStatus:    status,
		Publishing:      PublishingBlock{Stage: stage},
	})
	require.NoError(t, err)
}

func TestGetArticle_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	seedArticle(t, store, "a1", "2026-08-01", ReviewApproved, "")

	got, err := store.GetArticle(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "a1", got.ID)
	assert.Equal(t, ReviewApproved, got.ReviewStatus)
	assert.Equal(t, StageUnpublished, got.Publishing.CurrentStage())
}

func TestGetArticle_Unknown(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetArticle(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrArticleNotFound)
}

func TestListApproved_FiltersAndOrders(t *testing.T) {
	store := newTestStore(t)
	seedArticle(t, store, "older", "2026-07-01", ReviewApproved, "")
	seedArticle(t, store, "newer", "2026-08-01", ReviewApproved, "")
	seedArticle(t, store, "pending", "2026-08-02", ReviewPending, "")

	got, err := store.ListApproved(context.Background(), "en")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "newer", got[0].ID, "newest first")
	assert.Equal(t, "older", got[1].ID)
}

func TestListApproved_TiebreaksByID(t *testing.T) {
	store := newTestStore(t)
	seedArticle(t, store, "b", "2026-08-01", ReviewApproved, "")
	seedArticle(t, store, "a", "2026-08-01", ReviewApproved, "")

	got, err := store.ListApproved(context.Background(), "en")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
}

func TestListPublished_OnlyPublishedStage(t *testing.T) {
	store := newTestStore(t)
	seedArticle(t, store, "live", "2026-08-01", ReviewApproved, StagePublished)
	seedArticle(t, store, "staged", "2026-08-02", ReviewApproved, StageStaged)

	got, err := store.ListPublished(context.Background(), "en")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "live", got[0].ID)
}

func TestList_SkipsArticlesWithoutContent(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.PutArticle(context.Background(), &Article{
		ID:              "empty",
		PrimaryLanguage: "en",
		ReviewStatus:    ReviewApproved,
		Title:           map[string]string{"en": "Empty"},
		Content:         map[string]string{},
	}))

	got, err := store.ListApproved(context.Background(), "en")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestUpdatePublishingMetadata_ReplacesBlock(t *testing.T) {
	store := newTestStore(t)
	seedArticle(t, store, "a1", "2026-08-01", ReviewApproved, "")

	err := store.UpdatePublishingMetadata(context.Background(), "a1", PublishingBlock{
		Stage:   StageStaged,
		Version: 0,
		ContentHash: map[string]string{
			"staging": "abc123",
		},
	})
	require.NoError(t, err)

	got, err := store.GetArticle(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, StageStaged, got.Publishing.Stage)
	assert.Equal(t, "abc123", got.Publishing.ContentHash["staging"])
	assert.Equal(t, ReviewApproved, got.ReviewStatus, "review status untouched")
}

func TestUpdateReviewStatus_UnknownArticle(t *testing.T) {
	store := newTestStore(t)

	err := store.UpdateReviewStatus(context.Background(), "ghost", ReviewRejected)
	assert.ErrorIs(t, err, ErrArticleNotFound)
}

func TestContentFor_FallsBackToPrimary(t *testing.T) {
	a := &Article{
		PrimaryLanguage: "en",
		Content:         map[string]string{"en": "english body", "es": "cuerpo"},
	}

	body, fallback := a.ContentFor("es")
	assert.Equal(t, "cuerpo", body)
	assert.False(t, fallback)

	body, fallback = a.ContentFor("uk")
	assert.Equal(t, "english body", body)
	assert.True(t, fallback)
}
