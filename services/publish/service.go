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
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/AleutianPress/services/publish/articles"
	"github.com/AleutianAI/AleutianPress/services/publish/backup"
	"github.com/AleutianAI/AleutianPress/services/publish/envstore"
	"github.com/AleutianAI/AleutianPress/services/publish/ledger"
	"github.com/AleutianAI/AleutianPress/services/publish/lock"
	"github.com/AleutianAI/AleutianPress/services/publish/render"
)

// CoordinatorConfig configures the publish coordinator.
type CoordinatorConfig struct {
	// Languages are the supported language codes, in the order artifacts
	// are rendered and hashed. Default: en, es, uk.
	Languages []string

	// ArticleLockTTL is the lease duration for per-article locks.
	// Default: 2m
	ArticleLockTTL time.Duration

	// EnvironmentLockTTL is the lease duration for the production lock.
	// Default: 5m
	EnvironmentLockTTL time.Duration

	// OperationTimeout bounds one whole transition. A timed-out
	// transition is failed, never committed.
	// Default: 2m
	OperationTimeout time.Duration

	// RetryAttempts is how many times a storage call is tried before the
	// transition fails with ErrStorageUnavailable.
	// Default: 3
	RetryAttempts int

	// RetryBackoff is the initial backoff between attempts; it doubles
	// per attempt.
	// Default: 250ms
	RetryBackoff time.Duration
}

// DefaultCoordinatorConfig returns production defaults.
func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		Languages:          []string{"en", "es", "uk"},
		ArticleLockTTL:     2 * time.Minute,
		EnvironmentLockTTL: 5 * time.Minute,
		OperationTimeout:   2 * time.Minute,
		RetryAttempts:      3,
		RetryBackoff:       250 * time.Millisecond,
	}
}

// Coordinator owns the publishing state machine.
//
// # Description
//
// Serializes conflicting operations per article and per environment,
// invokes the renderer, writes through the environment store, triggers
// the backup manager, and appends to the audit ledger. All mutation of
// the environment prefixes goes through here.
//
// # Thread Safety
//
// Safe for concurrent use. Conflicting transitions are rejected with
// ErrBusy rather than queued.
type Coordinator struct {
	cfg      CoordinatorConfig
	store    articles.Store
	renderer *render.Renderer
	env      *envstore.Store
	backups  *backup.Manager
	ledger   *ledger.Ledger

	articleLocks *lock.Registry
	envLocks     *lock.Registry

	now func() time.Time
}

// NewCoordinator assembles a coordinator from its collaborators.
func NewCoordinator(
	cfg CoordinatorConfig,
	store articles.Store,
	renderer *render.Renderer,
	env *envstore.Store,
	backups *backup.Manager,
	auditLedger *ledger.Ledger,
) *Coordinator {
	def := DefaultCoordinatorConfig()
	if len(cfg.Languages) == 0 {
		cfg.Languages = def.Languages
	}
	if cfg.ArticleLockTTL <= 0 {
		cfg.ArticleLockTTL = def.ArticleLockTTL
	}
	if cfg.EnvironmentLockTTL <= 0 {
		cfg.EnvironmentLockTTL = def.EnvironmentLockTTL
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = def.OperationTimeout
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = def.RetryAttempts
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = def.RetryBackoff
	}
	return &Coordinator{
		cfg:          cfg,
		store:        store,
		renderer:     renderer,
		env:          env,
		backups:      backups,
		ledger:       auditLedger,
		articleLocks: lock.NewRegistry(cfg.ArticleLockTTL),
		envLocks:     lock.NewRegistry(cfg.EnvironmentLockTTL),
		now:          time.Now,
	}
}

// artifact is one rendered page bound to its environment-relative key.
type artifact struct {
	language string
	relKey   string
	data     []byte
}

// Stage renders an approved article and writes it to the staging
// environment for preview.
func (c *Coordinator) Stage(ctx context.Context, articleID, actor string) (*StageResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.OperationTimeout)
	defer cancel()

	lease, err := c.articleLocks.Acquire(articleID, actor)
	if err != nil {
		return nil, busyErr(ScopeArticle, err)
	}
	defer c.articleLocks.Release(lease)

	return c.stageLocked(ctx, articleID, actor)
}

func (c *Coordinator) stageLocked(ctx context.Context, articleID, actor string) (*StageResult, error) {
	a, err := c.getArticle(ctx, articleID)
	if err != nil {
		return nil, err
	}
	if a.ReviewStatus != articles.ReviewApproved {
		return nil, fmt.Errorf("article %s has review status %q, want approved: %w",
			articleID, a.ReviewStatus, ErrPreconditionFailed)
	}

	arts, hash, err := c.renderDetailPages(a)
	if err != nil {
		return nil, err
	}

	fromStage := a.Publishing.CurrentStage()
	noop := a.Publishing.ContentHash[envstore.EnvStaging] == hash
	if noop {
		slog.Info("Staging content unchanged, skipping write",
			"article_id", articleID, "hash", hash)
	} else {
		for _, art := range arts {
			if err := c.withRetry(ctx, "write staging "+art.relKey, func(ctx context.Context) error {
				return c.env.Write(ctx, c.env.Staging, art.relKey, art.data)
			}); err != nil {
				return nil, err
			}
		}
	}

	now := c.now().UTC()
	block := a.Publishing
	block.Stage = articles.StageStaged
	block.StagedAt = &now
	block.StagedBy = actor
	block.StagingURL = c.env.Staging.PageURL(envstore.DetailKey(c.primaryLanguage(a), articleID))
	if block.ContentHash == nil {
		block.ContentHash = make(map[string]string)
	}
	block.ContentHash[envstore.EnvStaging] = hash

	if err := c.store.UpdatePublishingMetadata(ctx, articleID, block); err != nil {
		return nil, fmt.Errorf("update publishing metadata: %w", err)
	}

	entry := ledger.Entry{
		ArticleID: articleID,
		Actor:     actor,
		Action:    ledger.ActionStage,
		FromStage: fromStage,
		ToStage:   articles.StageStaged,
		Timestamp: now,
	}
	if noop {
		entry.Detail = "no-op"
	}
	if err := c.ledger.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("append ledger entry: %w", err)
	}

	slog.Info("Article staged",
		"article_id", articleID,
		"actor", actor,
		"staging_url", block.StagingURL,
		"no_op", noop)

	return &StageResult{ArticleID: articleID, StagingURL: block.StagingURL, NoOp: noop}, nil
}

// Promote copies an article's staged pages to production, backing up
// production first.
func (c *Coordinator) Promote(ctx context.Context, articleID, actor string) (*PromoteResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.OperationTimeout)
	defer cancel()

	lease, err := c.articleLocks.Acquire(articleID, actor)
	if err != nil {
		return nil, busyErr(ScopeArticle, err)
	}
	defer c.articleLocks.Release(lease)

	return c.promoteLocked(ctx, articleID, actor)
}

func (c *Coordinator) promoteLocked(ctx context.Context, articleID, actor string) (*PromoteResult, error) {
	envLease, err := c.envLocks.Acquire(envstore.EnvProduction, actor)
	if err != nil {
		return nil, busyErr(ScopeEnvironment, err)
	}
	defer c.envLocks.Release(envLease)

	a, err := c.getArticle(ctx, articleID)
	if err != nil {
		return nil, err
	}

	fromStage := a.Publishing.CurrentStage()
	stagedHash := a.Publishing.ContentHash[envstore.EnvStaging]
	// published → promote is allowed only when the recorded hashes say
	// nothing changed; changed content must go through stage first.
	noop := stagedHash != "" && stagedHash == a.Publishing.ContentHash[envstore.EnvProduction]
	switch {
	case fromStage == articles.StageStaged:
	case fromStage == articles.StagePublished && noop:
	default:
		return nil, fmt.Errorf("article %s is %s, want staged: %w",
			articleID, fromStage, ErrPreconditionFailed)
	}

	relKeys := c.detailKeys(articleID)

	if noop {
		// The recorded production hash goes stale after a rollback, so
		// the no-op is confirmed against the bytes production serves.
		liveHash, err := c.productionContentHash(ctx, articleID)
		if err != nil {
			return nil, err
		}
		noop = liveHash == stagedHash
	}

	now := c.now().UTC()
	block := a.Publishing
	backupID := ""
	var globalVersion uint64

	if noop {
		slog.Info("Production content unchanged, skipping backup and write",
			"article_id", articleID, "hash", stagedHash)
		if globalVersion, err = c.ledger.GlobalVersion(ctx); err != nil {
			return nil, err
		}
	} else {
		info, err := c.backups.Snapshot(ctx, c.env.Production)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBackupFailed, err)
		}
		backupID = info.Timestamp

		if err := c.withRetry(ctx, "promote "+articleID, func(ctx context.Context) error {
			return c.env.Copy(ctx, c.env.Staging, c.env.Production, relKeys)
		}); err != nil {
			return nil, err
		}

		// Best-effort: invalidation failure never fails a promotion.
		_ = c.env.Invalidate(ctx, c.env.Production, relKeys)

		if globalVersion, err = c.ledger.BumpGlobalVersion(ctx); err != nil {
			return nil, err
		}
		block.Version++
	}

	block.Stage = articles.StagePublished
	block.PublishedAt = &now
	block.PublishedBy = actor
	block.ProductionURL = c.env.Production.PageURL(envstore.DetailKey(c.primaryLanguage(a), articleID))
	if block.ContentHash == nil {
		block.ContentHash = make(map[string]string)
	}
	block.ContentHash[envstore.EnvProduction] = stagedHash

	if err := c.store.UpdatePublishingMetadata(ctx, articleID, block); err != nil {
		return nil, fmt.Errorf("update publishing metadata: %w", err)
	}

	entry := ledger.Entry{
		ArticleID: articleID,
		Actor:     actor,
		Action:    ledger.ActionPromote,
		FromStage: fromStage,
		ToStage:   articles.StagePublished,
		Timestamp: now,
	}
	if noop {
		entry.Detail = "no-op"
	} else {
		entry.Detail = "backup:" + backupID
	}
	if err := c.ledger.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("append ledger entry: %w", err)
	}

	slog.Info("Article promoted to production",
		"article_id", articleID,
		"actor", actor,
		"version", block.Version,
		"global_version", globalVersion,
		"backup_id", backupID,
		"no_op", noop)

	return &PromoteResult{
		ArticleID:     articleID,
		ProductionURL: block.ProductionURL,
		Version:       block.Version,
		GlobalVersion: globalVersion,
		BackupID:      backupID,
		NoOp:          noop,
	}, nil
}

// Republish re-stages and re-promotes a published article whose content
// changed. Both ledger entries are recorded.
func (c *Coordinator) Republish(ctx context.Context, articleID, actor string) (*PromoteResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.OperationTimeout)
	defer cancel()

	lease, err := c.articleLocks.Acquire(articleID, actor)
	if err != nil {
		return nil, busyErr(ScopeArticle, err)
	}
	defer c.articleLocks.Release(lease)

	a, err := c.getArticle(ctx, articleID)
	if err != nil {
		return nil, err
	}
	if a.Publishing.CurrentStage() != articles.StagePublished {
		return nil, fmt.Errorf("article %s is %s, want published: %w",
			articleID, a.Publishing.CurrentStage(), ErrPreconditionFailed)
	}

	if _, err := c.stageLocked(ctx, articleID, actor); err != nil {
		return nil, err
	}
	return c.promoteLocked(ctx, articleID, actor)
}

// Reject records a terminal review rejection for an unpublished article.
func (c *Coordinator) Reject(ctx context.Context, articleID, actor string) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.OperationTimeout)
	defer cancel()

	lease, err := c.articleLocks.Acquire(articleID, actor)
	if err != nil {
		return busyErr(ScopeArticle, err)
	}
	defer c.articleLocks.Release(lease)

	a, err := c.getArticle(ctx, articleID)
	if err != nil {
		return err
	}
	if a.Publishing.CurrentStage() != articles.StageUnpublished {
		return fmt.Errorf("article %s is %s, reject requires unpublished: %w",
			articleID, a.Publishing.CurrentStage(), ErrPreconditionFailed)
	}

	if err := c.store.UpdateReviewStatus(ctx, articleID, articles.ReviewRejected); err != nil {
		return fmt.Errorf("update review status: %w", err)
	}

	now := c.now().UTC()
	if err := c.ledger.Append(ctx, ledger.Entry{
		ArticleID: articleID,
		Actor:     actor,
		Action:    ledger.ActionReject,
		FromStage: articles.StageUnpublished,
		ToStage:   articles.StageUnpublished,
		Timestamp: now,
	}); err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}

	slog.Info("Article rejected", "article_id", articleID, "actor", actor)
	return nil
}

// Unpublish removes a published article's pages from production, backing
// up production first. The article drops back to staged.
func (c *Coordinator) Unpublish(ctx context.Context, articleID, actor string) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.OperationTimeout)
	defer cancel()

	lease, err := c.articleLocks.Acquire(articleID, actor)
	if err != nil {
		return busyErr(ScopeArticle, err)
	}
	defer c.articleLocks.Release(lease)

	envLease, err := c.envLocks.Acquire(envstore.EnvProduction, actor)
	if err != nil {
		return busyErr(ScopeEnvironment, err)
	}
	defer c.envLocks.Release(envLease)

	a, err := c.getArticle(ctx, articleID)
	if err != nil {
		return err
	}
	if a.Publishing.CurrentStage() != articles.StagePublished {
		return fmt.Errorf("article %s is %s, unpublish requires published: %w",
			articleID, a.Publishing.CurrentStage(), ErrPreconditionFailed)
	}

	if _, err := c.backups.Snapshot(ctx, c.env.Production); err != nil {
		return fmt.Errorf("%w: %w", ErrBackupFailed, err)
	}

	relKeys := c.detailKeys(articleID)
	for _, relKey := range relKeys {
		if err := c.withRetry(ctx, "unpublish "+relKey, func(ctx context.Context) error {
			return c.env.Delete(ctx, c.env.Production, relKey)
		}); err != nil {
			return err
		}
	}
	_ = c.env.Invalidate(ctx, c.env.Production, relKeys)

	if _, err := c.ledger.BumpGlobalVersion(ctx); err != nil {
		return err
	}

	now := c.now().UTC()
	block := a.Publishing
	block.Stage = articles.StageStaged
	block.ProductionURL = ""
	delete(block.ContentHash, envstore.EnvProduction)

	if err := c.store.UpdatePublishingMetadata(ctx, articleID, block); err != nil {
		return fmt.Errorf("update publishing metadata: %w", err)
	}

	if err := c.ledger.Append(ctx, ledger.Entry{
		ArticleID: articleID,
		Actor:     actor,
		Action:    ledger.ActionUnpublish,
		FromStage: articles.StagePublished,
		ToStage:   articles.StageStaged,
		Timestamp: now,
	}); err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}

	slog.Info("Article unpublished", "article_id", articleID, "actor", actor)
	return nil
}

// PromoteListing rebuilds and promotes the listing page for one language.
//
// The listing is its own publishable unit: promoting it never re-renders
// any article's detail pages, and vice versa.
func (c *Coordinator) PromoteListing(ctx context.Context, language, actor string) (*ListingResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.OperationTimeout)
	defer cancel()

	if !c.supportsLanguage(language) {
		return nil, fmt.Errorf("language %q: %w", language, ErrNotFound)
	}

	subject := ledger.ListingSubject(language)
	lease, err := c.articleLocks.Acquire(subject, actor)
	if err != nil {
		return nil, busyErr(ScopeArticle, err)
	}
	defer c.articleLocks.Release(lease)

	envLease, err := c.envLocks.Acquire(envstore.EnvProduction, actor)
	if err != nil {
		return nil, busyErr(ScopeEnvironment, err)
	}
	defer c.envLocks.Release(envLease)

	published, err := c.store.ListPublished(ctx, language)
	if err != nil {
		return nil, fmt.Errorf("list published articles: %w", err)
	}

	data, err := c.renderer.RenderListing(language, published)
	if err != nil {
		return nil, fmt.Errorf("render listing: %w", err)
	}
	hash := hashBytes(data)

	relKey := envstore.ListingKey(language)
	noop := false
	if current, err := c.env.Read(ctx, c.env.Production, relKey); err == nil {
		noop = hashBytes(current) == hash
	}

	now := c.now().UTC()
	backupID := ""
	var globalVersion uint64

	if noop {
		slog.Info("Listing unchanged, skipping backup and write",
			"language", language, "hash", hash)
		if globalVersion, err = c.ledger.GlobalVersion(ctx); err != nil {
			return nil, err
		}
	} else {
		if err := c.withRetry(ctx, "write staging listing "+language, func(ctx context.Context) error {
			return c.env.Write(ctx, c.env.Staging, relKey, data)
		}); err != nil {
			return nil, err
		}

		info, err := c.backups.Snapshot(ctx, c.env.Production)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBackupFailed, err)
		}
		backupID = info.Timestamp

		if err := c.withRetry(ctx, "promote listing "+language, func(ctx context.Context) error {
			return c.env.Copy(ctx, c.env.Staging, c.env.Production, []string{relKey})
		}); err != nil {
			return nil, err
		}
		_ = c.env.Invalidate(ctx, c.env.Production, []string{relKey})

		if globalVersion, err = c.ledger.BumpGlobalVersion(ctx); err != nil {
			return nil, err
		}
	}

	entry := ledger.Entry{
		ArticleID: subject,
		Actor:     actor,
		Action:    ledger.ActionPromote,
		FromStage: articles.StageStaged,
		ToStage:   articles.StagePublished,
		Timestamp: now,
	}
	if noop {
		entry.Detail = "no-op"
	} else {
		entry.Detail = "backup:" + backupID
	}
	if err := c.ledger.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("append ledger entry: %w", err)
	}

	slog.Info("Listing promoted",
		"language", language,
		"actor", actor,
		"articles", len(published),
		"global_version", globalVersion,
		"no_op", noop)

	return &ListingResult{
		Language:      language,
		ProductionURL: c.env.Production.PageURL(relKey),
		GlobalVersion: globalVersion,
		BackupID:      backupID,
		ArticleCount:  len(published),
		NoOp:          noop,
	}, nil
}

// Status returns an article's current publishing block.
func (c *Coordinator) Status(ctx context.Context, articleID string) (*StatusResult, error) {
	a, err := c.getArticle(ctx, articleID)
	if err != nil {
		return nil, err
	}
	block := a.Publishing
	block.Stage = block.CurrentStage()
	return &StatusResult{
		ArticleID:  articleID,
		Review:     a.ReviewStatus,
		Publishing: block,
	}, nil
}

// History returns an article's full audit history.
func (c *Coordinator) History(ctx context.Context, articleID string) ([]ledger.Entry, error) {
	if _, err := c.getArticle(ctx, articleID); err != nil {
		return nil, err
	}
	return c.ledger.History(ctx, articleID)
}

// Backups lists available production backups, newest first.
func (c *Coordinator) Backups(ctx context.Context) (*BackupsResult, error) {
	infos, err := c.backups.List(ctx)
	if err != nil {
		return nil, err
	}
	return &BackupsResult{Backups: infos}, nil
}

// Rollback restores production from a backup. An empty backupID restores
// the most recent one. The restore is itself a recorded, versioned event.
func (c *Coordinator) Rollback(ctx context.Context, backupID, actor string) (*RollbackResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.OperationTimeout)
	defer cancel()

	envLease, err := c.envLocks.Acquire(envstore.EnvProduction, actor)
	if err != nil {
		return nil, busyErr(ScopeEnvironment, err)
	}
	defer c.envLocks.Release(envLease)

	manifest, err := c.backups.Restore(ctx, backupID)
	if errors.Is(err, backup.ErrBackupNotFound) || errors.Is(err, backup.ErrNoBackups) {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	globalVersion, err := c.ledger.BumpGlobalVersion(ctx)
	if err != nil {
		return nil, err
	}

	if err := c.ledger.Append(ctx, ledger.Entry{
		ArticleID: ledger.ProductionSubject,
		Actor:     actor,
		Action:    ledger.ActionRollback,
		Timestamp: c.now().UTC(),
		Detail:    "backup:" + manifest.Timestamp,
	}); err != nil {
		return nil, fmt.Errorf("append ledger entry: %w", err)
	}

	slog.Info("Production rolled back",
		"backup_id", manifest.Timestamp,
		"actor", actor,
		"global_version", globalVersion)

	return &RollbackResult{
		BackupID:      manifest.Timestamp,
		GlobalVersion: globalVersion,
		ObjectCount:   len(manifest.Keys),
	}, nil
}

// SweepBackups expires backups past the retention window. Wired to a
// background ticker in the service entrypoint.
func (c *Coordinator) SweepBackups(ctx context.Context) ([]string, error) {
	return c.backups.Sweep(ctx)
}

// GlobalVersion returns the production version counter.
func (c *Coordinator) GlobalVersion(ctx context.Context) (uint64, error) {
	return c.ledger.GlobalVersion(ctx)
}

// --- internals ---

func (c *Coordinator) getArticle(ctx context.Context, articleID string) (*articles.Article, error) {
	a, err := c.store.GetArticle(ctx, articleID)
	if errors.Is(err, articles.ErrArticleNotFound) {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if err != nil {
		return nil, fmt.Errorf("get article %s: %w", articleID, err)
	}
	return a, nil
}

func (c *Coordinator) primaryLanguage(a *articles.Article) string {
	if a.PrimaryLanguage != "" {
		return a.PrimaryLanguage
	}
	return c.cfg.Languages[0]
}

func (c *Coordinator) supportsLanguage(language string) bool {
	for _, l := range c.cfg.Languages {
		if l == language {
			return true
		}
	}
	return false
}

// renderDetailPages renders every supported language's detail page and
// the combined content hash. Rendering order is fixed by configuration
// so the hash is stable.
func (c *Coordinator) renderDetailPages(a *articles.Article) ([]artifact, string, error) {
	arts := make([]artifact, 0, len(c.cfg.Languages))
	h := sha256.New()
	for _, language := range c.cfg.Languages {
		data, err := c.renderer.RenderDetail(a, language)
		if err != nil {
			return nil, "", fmt.Errorf("render %s/%s: %w", language, a.ID, err)
		}
		arts = append(arts, artifact{
			language: language,
			relKey:   envstore.DetailKey(language, a.ID),
			data:     data,
		})
		h.Write([]byte(language))
		h.Write([]byte{0})
		h.Write(data)
	}
	return arts, hex.EncodeToString(h.Sum(nil)), nil
}

func (c *Coordinator) detailKeys(articleID string) []string {
	keys := make([]string, 0, len(c.cfg.Languages))
	for _, language := range c.cfg.Languages {
		keys = append(keys, envstore.DetailKey(language, articleID))
	}
	return keys
}

// productionContentHash hashes the article pages production actually
// serves, combined the same way as renderDetailPages. Returns "" when
// any page is missing from production.
func (c *Coordinator) productionContentHash(ctx context.Context, articleID string) (string, error) {
	h := sha256.New()
	for _, language := range c.cfg.Languages {
		data, err := c.env.Read(ctx, c.env.Production, envstore.DetailKey(language, articleID))
		if errors.Is(err, envstore.ErrObjectNotFound) {
			return "", nil
		}
		if err != nil {
			return "", fmt.Errorf("read production %s/%s: %w", language, articleID, err)
		}
		h.Write([]byte(language))
		h.Write([]byte{0})
		h.Write(data)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// withRetry runs fn with bounded retries and exponential backoff,
// wrapping persistent failure in ErrStorageUnavailable.
func (c *Coordinator) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	backoff := c.cfg.RetryBackoff
	var lastErr error
	for attempt := 1; attempt <= c.cfg.RetryAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		// Missing objects and cancelled contexts will not heal with
		// another attempt.
		if errors.Is(lastErr, envstore.ErrObjectNotFound) || ctx.Err() != nil {
			break
		}
		if attempt < c.cfg.RetryAttempts {
			slog.Warn("Storage call failed, retrying",
				"operation", op,
				"attempt", attempt,
				"backoff", backoff,
				"error", lastErr)
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, lastErr)
}

func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// BusyError wraps ErrBusy with the lock scope that lost the race, so
// handlers can report article contention and environment contention
// under distinct codes.
type BusyError struct {
	// Scope is ScopeArticle or ScopeEnvironment.
	Scope string
	Err   error
}

// Lock scopes carried by BusyError.
const (
	ScopeArticle     = "article"
	ScopeEnvironment = "environment"
)

func (e *BusyError) Error() string {
	return fmt.Sprintf("%s lock busy: %v", e.Scope, e.Err)
}

func (e *BusyError) Unwrap() error { return ErrBusy }

func busyErr(scope string, err error) error {
	return &BusyError{Scope: scope, Err: err}
}
