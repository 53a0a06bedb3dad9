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
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"
)

const articleKeyPrefix = "article/"

// BadgerStore is a BadgerDB-backed article store.
//
// # Description
//
// Stores each article as a JSON value under "article/<id>". The content
// pipeline that acquires and translates articles writes the same keys;
// in deployments where that pipeline runs elsewhere, this store acts as
// its local replica.
//
// # Thread Safety
//
// Safe for concurrent use; BadgerDB transactions provide the per-record
// consistency the coordinator relies on.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore creates a store on top of an opened BadgerDB.
func NewBadgerStore(db *badger.DB) (*BadgerStore, error) {
	if db == nil {
		return nil, errors.New("db must not be nil")
	}
	return &BadgerStore{db: db}, nil
}

func articleKey(id string) []byte {
	return []byte(articleKeyPrefix + id)
}

// PutArticle inserts or replaces the whole article record. Used by the
// acquisition pipeline and by tests to seed the store.
func (s *BadgerStore) PutArticle(ctx context.Context, a *Article) error {
	if a == nil || a.ID == "" {
		return errors.New("article must have an id")
	}
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal article %s: %w", a.ID, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(articleKey(a.ID), data)
	})
}

// GetArticle returns the article with the given id.
func (s *BadgerStore) GetArticle(ctx context.Context, id string) (*Article, error) {
	var a Article
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(articleKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &a)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("article %s: %w", id, ErrArticleNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get article %s: %w", id, err)
	}
	return &a, nil
}

// ListApproved returns approved articles with content in the language,
// newest-first.
func (s *BadgerStore) ListApproved(ctx context.Context, language string) ([]*Article, error) {
	return s.list(ctx, language, func(a *Article) bool {
		return a.ReviewStatus == ReviewApproved
	})
}

// ListPublished returns published articles with content in the language,
// newest-first.
func (s *BadgerStore) ListPublished(ctx context.Context, language string) ([]*Article, error) {
	return s.list(ctx, language, func(a *Article) bool {
		return a.Publishing.CurrentStage() == StagePublished
	})
}

func (s *BadgerStore) list(ctx context.Context, language string, keep func(*Article) bool) ([]*Article, error) {
	var out []*Article
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(articleKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var a Article
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &a)
			}); err != nil {
				return err
			}
			if !keep(&a) {
				continue
			}
			if body, _ := a.ContentFor(language); body == "" {
				continue
			}
			copied := a
			out = append(out, &copied)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}

	// Newest-first, id as a deterministic tiebreak. Listing rendering
	// depends on this order being stable across processes.
	sort.Slice(out, func(i, j int) bool {
		if out[i].PublishedDate != out[j].PublishedDate {
			return out[i].PublishedDate > out[j].PublishedDate
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// UpdatePublishingMetadata replaces the Publishing block on the article.
func (s *BadgerStore) UpdatePublishingMetadata(ctx context.Context, id string, block PublishingBlock) error {
	return s.mutate(id, func(a *Article) {
		a.Publishing = block
	})
}

// UpdateReviewStatus records a review decision on the article.
func (s *BadgerStore) UpdateReviewStatus(ctx context.Context, id string, status ReviewStatus) error {
	return s.mutate(id, func(a *Article) {
		a.ReviewStatus = status
	})
}

func (s *BadgerStore) mutate(id string, apply func(*Article)) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(articleKey(id))
		if err != nil {
			return err
		}
		var a Article
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &a)
		}); err != nil {
			return err
		}
		apply(&a)
		data, err := json.Marshal(&a)
		if err != nil {
			return err
		}
		return txn.Set(articleKey(id), data)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("article %s: %w", id, ErrArticleNotFound)
	}
	if err != nil {
		return fmt.Errorf("update article %s: %w", id, err)
	}
	return nil
}
