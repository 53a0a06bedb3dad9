// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package articles provides access to the canonical article records.
//
// The article record itself (content, translations, review status) is owned
// by the content-acquisition pipeline and the reviewer workflow. The
// publishing service only reads it and writes back the Publishing block,
// which it owns exclusively.
package articles

import "time"

// ReviewStatus is the reviewer-workflow decision for an article.
// It is read-only input to the publishing service, except for the
// rejected transition which is terminal.
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

// PublishStage is the publishing lifecycle state of an article.
type PublishStage string

const (
	StageUnpublished PublishStage = "unpublished"
	StageStaged      PublishStage = "staged"
	StagePublished   PublishStage = "published"
)

// Article is the canonical article record.
//
// Content and Title are keyed by BCP-47-ish language codes ("en", "es",
// "uk"). At least the primary language is always present; missing
// translations are rendered with a fallback to the primary language.
type Article struct {
	// ID is the stable article identifier. Immutable.
	ID string `json:"id"`

	// Source names the originating publication.
	Source string `json:"source"`

	// SourceURL links back to the original article.
	SourceURL string `json:"source_url"`

	// PublishedDate is the original publication date as displayed text.
	PublishedDate string `json:"published_date"`

	// PrimaryLanguage is the language the article was acquired in.
	PrimaryLanguage string `json:"primary_language"`

	// Title holds the per-language titles.
	Title map[string]string `json:"title"`

	// Content holds the per-language article bodies (markdown).
	Content map[string]string `json:"content"`

	// ReviewStatus is owned by the reviewer workflow.
	ReviewStatus ReviewStatus `json:"review_status"`

	// Publishing is owned exclusively by the publish coordinator.
	Publishing PublishingBlock `json:"publishing"`

	// CreatedAt is when the record entered the store.
	CreatedAt time.Time `json:"created_at"`
}

// PublishingBlock is the publishing metadata attached to an article.
// Mutated only through the coordinator's transitions; never deleted.
type PublishingBlock struct {
	// Stage is the current publishing lifecycle state.
	Stage PublishStage `json:"stage"`

	// Version counts successful production promotions of this article.
	Version int `json:"version"`

	StagedAt    *time.Time `json:"staged_at,omitempty"`
	StagedBy    string     `json:"staged_by,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	PublishedBy string     `json:"published_by,omitempty"`

	// ContentHash maps environment name to the hash of the rendered
	// artifact bytes last written there. Used for idempotence checks.
	ContentHash map[string]string `json:"content_hash,omitempty"`

	// StagingURL and ProductionURL are derived, read-only locations.
	StagingURL    string `json:"staging_url,omitempty"`
	ProductionURL string `json:"production_url,omitempty"`
}

// CurrentStage returns the publishing stage, defaulting to unpublished
// for articles that were never staged.
func (b PublishingBlock) CurrentStage() PublishStage {
	if b.Stage == "" {
		return StageUnpublished
	}
	return b.Stage
}

// ContentFor returns the article body for the requested language, falling
// back to the primary language. The second return reports whether a
// fallback was taken.
func (a *Article) ContentFor(language string) (string, bool) {
	if c, ok := a.Content[language]; ok && c != "" {
		return c, false
	}
	return a.Content[a.PrimaryLanguage], true
}

// TitleFor returns the article title for the requested language, falling
// back to the primary language.
func (a *Article) TitleFor(language string) string {
	if t, ok := a.Title[language]; ok && t != "" {
		return t
	}
	return a.Title[a.PrimaryLanguage]
}
