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
	"errors"
)

// ErrArticleNotFound is returned for lookups of unknown article ids.
var ErrArticleNotFound = errors.New("article not found")

// Store is the article-store contract consumed by the publish coordinator.
//
// # Description
//
// All reads and writes are assumed strongly consistent on a single record.
// The coordinator is the only writer of the Publishing block; the reviewer
// workflow is the only writer of ReviewStatus (except the terminal
// rejected transition, which the coordinator records on its behalf).
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Store interface {
	// GetArticle returns the article with the given id, or
	// ErrArticleNotFound.
	GetArticle(ctx context.Context, id string) (*Article, error)

	// ListApproved returns approved articles that have content in the
	// given language, ordered newest-first by PublishedDate then id.
	ListApproved(ctx context.Context, language string) ([]*Article, error)

	// ListPublished returns published articles that have content in the
	// given language, ordered newest-first by PublishedDate then id.
	ListPublished(ctx context.Context, language string) ([]*Article, error)

	// UpdatePublishingMetadata replaces the article's Publishing block.
	UpdatePublishingMetadata(ctx context.Context, id string, block PublishingBlock) error

	// UpdateReviewStatus records a review decision on the article.
	UpdateReviewStatus(ctx context.Context, id string, status ReviewStatus) error
}
