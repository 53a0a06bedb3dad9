// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ledger persists the append-only publishing audit history.
//
// Every state transition the coordinator completes is recorded as one
// entry. Entries are never mutated or removed; the current publishing
// block of an article is derivable by folding its history in order.
// The ledger also owns the global production version counter, which
// increases on every successful production mutation including rollbacks.
package ledger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/AleutianPress/services/publish/articles"
)

// Action identifies the transition an entry records.
type Action string

const (
	ActionStage     Action = "stage"
	ActionPromote   Action = "promote"
	ActionRollback  Action = "rollback"
	ActionReject    Action = "reject"
	ActionUnpublish Action = "unpublish"
)

// ProductionSubject is the reserved subject id for environment-level
// entries (rollbacks, listing promotions) that are not tied to one
// article.
const ProductionSubject = "_production"

// ListingSubject returns the reserved subject id for a language's
// listing page.
func ListingSubject(language string) string {
	return "_listing/" + language
}

// Entry is one recorded transition. Append-only.
type Entry struct {
	// Seq orders entries within a subject. Assigned by Append.
	Seq uint64 `json:"seq"`

	// ArticleID is the subject: an article id, ProductionSubject, or a
	// ListingSubject value.
	ArticleID string `json:"article_id"`

	// Actor is the opaque identity that requested the transition.
	Actor string `json:"actor"`

	// Action names the transition.
	Action Action `json:"action"`

	// FromStage and ToStage bracket the state change.
	FromStage articles.PublishStage `json:"from_stage"`
	ToStage   articles.PublishStage `json:"to_stage"`

	// Timestamp is the completion time of the owning transition.
	Timestamp time.Time `json:"timestamp"`

	// Detail carries transition-specific context, e.g. the backup id of
	// a rollback or "no-op" for an idempotent republish.
	Detail string `json:"detail,omitempty"`
}

const (
	entryKeyPrefix   = "ledger/"
	seqKeyPrefix     = "ledgerseq/"
	globalVersionKey = "version/production"
)

// ErrEmptySubject is returned when appending an entry without a subject.
var ErrEmptySubject = errors.New("ledger entry must have a subject id")

// Ledger is a BadgerDB-backed audit ledger.
//
// # Thread Safety
//
// Safe for concurrent use. Per-subject ordering is guaranteed by the
// coordinator holding the subject's lock across the transition and the
// append; the ledger itself only guarantees atomicity of each append.
type Ledger struct {
	db *badger.DB
}

// New creates a ledger on top of an opened BadgerDB.
func New(db *badger.DB) (*Ledger, error) {
	if db == nil {
		return nil, errors.New("db must not be nil")
	}
	return &Ledger{db: db}, nil
}

func entryKey(subject string, seq uint64) []byte {
	return fmt.Appendf(nil, "%s%s/%010d", entryKeyPrefix, subject, seq)
}

// Append records an entry, assigning it the subject's next sequence
// number. The entry is never visible partially: sequence bump and entry
// write commit in one transaction.
func (l *Ledger) Append(ctx context.Context, e Entry) error {
	if e.ArticleID == "" {
		return ErrEmptySubject
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.db.Update(func(txn *badger.Txn) error {
		seq, err := nextSeq(txn, e.ArticleID)
		if err != nil {
			return err
		}
		e.Seq = seq
		data, err := json.Marshal(&e)
		if err != nil {
			return fmt.Errorf("marshal ledger entry: %w", err)
		}
		return txn.Set(entryKey(e.ArticleID, seq), data)
	})
}

func nextSeq(txn *badger.Txn, subject string) (uint64, error) {
	key := []byte(seqKeyPrefix + subject)
	var current uint64
	item, err := txn.Get(key)
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		current = 0
	case err != nil:
		return 0, err
	default:
		if err := item.Value(func(val []byte) error {
			if len(val) != 8 {
				return fmt.Errorf("corrupt sequence value for %s", subject)
			}
			current = binary.BigEndian.Uint64(val)
			return nil
		}); err != nil {
			return 0, err
		}
	}
	next := current + 1
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, next)
	return next, txn.Set(key, buf)
}

// History returns all entries for a subject in append order.
func (l *Ledger) History(ctx context.Context, subject string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []Entry
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(entryKeyPrefix + subject + "/")
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var e Entry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return err
			}
			out = append(out, e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read history for %s: %w", subject, err)
	}
	return out, nil
}

// CurrentPublishing folds a subject's history into its publishing block.
//
// Description:
//
//	Replays the entries in order, reproducing stage, version, and the
//	timestamp/actor pairs. Content hashes and derived URLs live on the
//	article record itself and are not part of the fold.
func (l *Ledger) CurrentPublishing(ctx context.Context, subject string) (articles.PublishingBlock, error) {
	history, err := l.History(ctx, subject)
	if err != nil {
		return articles.PublishingBlock{}, err
	}
	return Fold(history), nil
}

// Fold replays entries into a publishing block. Exposed for audit
// tooling that already has a history slice.
func Fold(history []Entry) articles.PublishingBlock {
	block := articles.PublishingBlock{Stage: articles.StageUnpublished}
	for _, e := range history {
		switch e.Action {
		case ActionStage:
			block.Stage = articles.StageStaged
			ts := e.Timestamp
			block.StagedAt = &ts
			block.StagedBy = e.Actor
		case ActionPromote:
			block.Stage = articles.StagePublished
			ts := e.Timestamp
			block.PublishedAt = &ts
			block.PublishedBy = e.Actor
			// Idempotent re-promotes append an entry but do not bump
			// the version; they are marked in Detail.
			if e.Detail != "no-op" {
				block.Version++
			}
		case ActionUnpublish:
			block.Stage = articles.StageStaged
		case ActionReject:
			block.Stage = articles.StageUnpublished
		case ActionRollback:
			// Environment-level action; does not change an article's
			// own stage.
		}
	}
	return block
}

// GlobalVersion returns the production version counter.
func (l *Ledger) GlobalVersion(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var v uint64
	err := l.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(globalVersionKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) != 8 {
				return errors.New("corrupt global version value")
			}
			v = binary.BigEndian.Uint64(val)
			return nil
		})
	})
	if err != nil {
		return 0, fmt.Errorf("read global version: %w", err)
	}
	return v, nil
}

// BumpGlobalVersion increments and returns the production version
// counter. Called once per successful production mutation, rollbacks
// included: a rollback is a recorded, versioned event, not a silent
// revert.
func (l *Ledger) BumpGlobalVersion(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var next uint64
	err := l.db.Update(func(txn *badger.Txn) error {
		var current uint64
		item, err := txn.Get([]byte(globalVersionKey))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return err
		default:
			if err := item.Value(func(val []byte) error {
				if len(val) != 8 {
					return errors.New("corrupt global version value")
				}
				current = binary.BigEndian.Uint64(val)
				return nil
			}); err != nil {
				return err
			}
		}
		next = current + 1
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, next)
		return txn.Set([]byte(globalVersionKey), buf)
	})
	if err != nil {
		return 0, fmt.Errorf("bump global version: %w", err)
	}
	return next, nil
}
