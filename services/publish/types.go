// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package publish

import (
	"github.com/AleutianAI/AleutianPress/services/publish/articles"
	"github.com/AleutianAI/AleutianPress/services/publish/backup"
)

// ServiceVersion is the publish service version.
const ServiceVersion = "0.1.0"

// StageResult is returned by a successful stage transition.
type StageResult struct {
	ArticleID  string `json:"article_id"`
	StagingURL string `json:"staging_url"`

	// NoOp is true when the staged content hash already matched and the
	// write was skipped. The ledger entry is recorded either way.
	NoOp bool `json:"no_op,omitempty"`
}

// PromoteResult is returned by a successful promote transition.
type PromoteResult struct {
	ArticleID     string `json:"article_id"`
	ProductionURL string `json:"production_url"`

	// Version is the article's promotion counter.
	Version int `json:"version"`

	// GlobalVersion is the production environment's version counter.
	GlobalVersion uint64 `json:"global_version"`

	// BackupID identifies the snapshot taken before the write. Empty
	// for no-op promotes, which never touch production.
	BackupID string `json:"backup_id,omitempty"`

	NoOp bool `json:"no_op,omitempty"`
}

// ListingResult is returned by a successful listing promotion.
type ListingResult struct {
	Language      string `json:"language"`
	ProductionURL string `json:"production_url"`
	GlobalVersion uint64 `json:"global_version"`
	BackupID      string `json:"backup_id,omitempty"`

	// ArticleCount is how many published articles the listing holds.
	ArticleCount int `json:"article_count"`

	NoOp bool `json:"no_op,omitempty"`
}

// RollbackResult is returned by a successful restore.
type RollbackResult struct {
	BackupID      string `json:"backup_id"`
	GlobalVersion uint64 `json:"global_version"`
	ObjectCount   int    `json:"object_count"`
}

// StatusResult reports an article's current publishing block.
type StatusResult struct {
	ArticleID  string                   `json:"article_id"`
	Review     articles.ReviewStatus    `json:"review_status"`
	Publishing articles.PublishingBlock `json:"publishing"`
}

// BackupsResult lists available backups, newest first.
type BackupsResult struct {
	Backups []backup.Info `json:"backups"`
}

// ErrorResponse is the error body returned by all handlers.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HealthResponse reports service liveness.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ReadyResponse reports service readiness.
type ReadyResponse struct {
	Ready         bool   `json:"ready"`
	GlobalVersion uint64 `json:"global_version"`
}
