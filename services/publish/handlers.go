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
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianPress/pkg/validation"
)

// Handlers contains the HTTP handlers for the publish service.
type Handlers struct {
	coord *Coordinator
}

// NewHandlers creates handlers for the given coordinator.
func NewHandlers(coord *Coordinator) *Handlers {
	return &Handlers{coord: coord}
}

// HandleStage handles POST /v1/publish/articles/:id/stage.
//
// Description:
//
//	Renders the article in every supported language and writes the pages
//	to the staging environment for preview. Idempotent: unchanged content
//	skips the write but still records a ledger entry.
//
// Response:
//
//	200 OK: StageResult
//	400 Bad Request: Malformed article id
//	404 Not Found: Unknown article
//	409 Conflict: Wrong review status or a transition already in flight
//	503 Service Unavailable: Storage kept failing
func (h *Handlers) HandleStage(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	articleID := c.Param("id")
	actor := actorFrom(c)
	logger := slog.With("request_id", requestID, "handler", "HandleStage")

	if err := validation.ValidateArticleID(articleID); err != nil {
		writeInvalidArgument(c, logger, err)
		return
	}

	logger.Info("Staging article", "article_id", articleID, "actor", actor)

	resp, err := h.coord.Stage(c.Request.Context(), articleID, actor)
	if err != nil {
		writeError(c, logger, "Stage failed", err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// HandlePromote handles POST /v1/publish/articles/:id/promote.
//
// Description:
//
//	Backs up production, then copies the article's staged pages to
//	production and invalidates their cache paths. Unchanged content is a
//	recorded no-op: no backup, no write, no version bump.
//
// Response:
//
//	200 OK: PromoteResult
//	400 Bad Request: Malformed article id
//	404 Not Found: Unknown article
//	409 Conflict: Article not staged or a transition already in flight
//	502 Bad Gateway: Backup could not be verified; promotion aborted
//	503 Service Unavailable: Storage kept failing
func (h *Handlers) HandlePromote(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	articleID := c.Param("id")
	actor := actorFrom(c)
	logger := slog.With("request_id", requestID, "handler", "HandlePromote")

	if err := validation.ValidateArticleID(articleID); err != nil {
		writeInvalidArgument(c, logger, err)
		return
	}

	logger.Info("Promoting article", "article_id", articleID, "actor", actor)

	resp, err := h.coord.Promote(c.Request.Context(), articleID, actor)
	if err != nil {
		writeError(c, logger, "Promote failed", err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// HandleRepublish handles POST /v1/publish/articles/:id/republish.
//
// Description:
//
//	Re-stages and re-promotes a published article after a content edit.
//	Both ledger entries are recorded.
//
// Response:
//
//	200 OK: PromoteResult
//	404 Not Found: Unknown article
//	409 Conflict: Article not published or a transition already in flight
//	502 Bad Gateway: Backup could not be verified; promotion aborted
//	503 Service Unavailable: Storage kept failing
func (h *Handlers) HandleRepublish(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	articleID := c.Param("id")
	actor := actorFrom(c)
	logger := slog.With("request_id", requestID, "handler", "HandleRepublish")

	if err := validation.ValidateArticleID(articleID); err != nil {
		writeInvalidArgument(c, logger, err)
		return
	}

	logger.Info("Republishing article", "article_id", articleID, "actor", actor)

	resp, err := h.coord.Republish(c.Request.Context(), articleID, actor)
	if err != nil {
		writeError(c, logger, "Republish failed", err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// HandleReject handles POST /v1/publish/articles/:id/reject.
//
// Response:
//
//	200 OK: {"article_id": ..., "review_status": "rejected"}
//	404 Not Found: Unknown article
//	409 Conflict: Article already staged or published
func (h *Handlers) HandleReject(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	articleID := c.Param("id")
	actor := actorFrom(c)
	logger := slog.With("request_id", requestID, "handler", "HandleReject")

	if err := validation.ValidateArticleID(articleID); err != nil {
		writeInvalidArgument(c, logger, err)
		return
	}

	if err := h.coord.Reject(c.Request.Context(), articleID, actor); err != nil {
		writeError(c, logger, "Reject failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"article_id":    articleID,
		"review_status": "rejected",
	})
}

// HandleUnpublish handles POST /v1/publish/articles/:id/unpublish.
//
// Description:
//
//	Backs up production, removes the article's production pages, and
//	drops the article back to staged. The listing still references the
//	article until it is re-promoted.
//
// Response:
//
//	200 OK: {"article_id": ..., "stage": "staged"}
//	404 Not Found: Unknown article
//	409 Conflict: Article not published or a transition already in flight
//	502 Bad Gateway: Backup could not be verified
//	503 Service Unavailable: Storage kept failing
func (h *Handlers) HandleUnpublish(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	articleID := c.Param("id")
	actor := actorFrom(c)
	logger := slog.With("request_id", requestID, "handler", "HandleUnpublish")

	if err := validation.ValidateArticleID(articleID); err != nil {
		writeInvalidArgument(c, logger, err)
		return
	}

	logger.Info("Unpublishing article", "article_id", articleID, "actor", actor)

	if err := h.coord.Unpublish(c.Request.Context(), articleID, actor); err != nil {
		writeError(c, logger, "Unpublish failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"article_id": articleID,
		"stage":      "staged",
	})
}

// HandleStatus handles GET /v1/publish/articles/:id/status.
//
// Response:
//
//	200 OK: StatusResult
//	404 Not Found: Unknown article
func (h *Handlers) HandleStatus(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	articleID := c.Param("id")
	logger := slog.With("request_id", requestID, "handler", "HandleStatus")

	if err := validation.ValidateArticleID(articleID); err != nil {
		writeInvalidArgument(c, logger, err)
		return
	}

	resp, err := h.coord.Status(c.Request.Context(), articleID)
	if err != nil {
		writeError(c, logger, "Status lookup failed", err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// HandleHistory handles GET /v1/publish/articles/:id/history.
//
// Response:
//
//	200 OK: {"article_id": ..., "entries": [...]}
//	404 Not Found: Unknown article
func (h *Handlers) HandleHistory(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	articleID := c.Param("id")
	logger := slog.With("request_id", requestID, "handler", "HandleHistory")

	if err := validation.ValidateArticleID(articleID); err != nil {
		writeInvalidArgument(c, logger, err)
		return
	}

	entries, err := h.coord.History(c.Request.Context(), articleID)
	if err != nil {
		writeError(c, logger, "History lookup failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"article_id": articleID,
		"entries":    entries,
	})
}

// HandlePromoteListing handles POST /v1/publish/listing/:language/promote.
//
// Description:
//
//	Rebuilds the listing page for the language from the current set of
//	published articles and promotes it to production. Listing and detail
//	pages are independent publishable units.
//
// Response:
//
//	200 OK: ListingResult
//	400 Bad Request: Malformed language code
//	404 Not Found: Unsupported language
//	409 Conflict: A listing or production transition already in flight
//	502 Bad Gateway: Backup could not be verified
//	503 Service Unavailable: Storage kept failing
func (h *Handlers) HandlePromoteListing(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	language := c.Param("language")
	actor := actorFrom(c)
	logger := slog.With("request_id", requestID, "handler", "HandlePromoteListing")

	language, err := validation.SanitizeLanguage(language)
	if err != nil {
		writeInvalidArgument(c, logger, err)
		return
	}

	logger.Info("Promoting listing", "language", language, "actor", actor)

	resp, err := h.coord.PromoteListing(c.Request.Context(), language, actor)
	if err != nil {
		writeError(c, logger, "Listing promotion failed", err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// HandleListBackups handles GET /v1/publish/backups.
//
// Response:
//
//	200 OK: BackupsResult (newest first)
//	503 Service Unavailable: Storage unreachable
func (h *Handlers) HandleListBackups(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleListBackups")

	resp, err := h.coord.Backups(c.Request.Context())
	if err != nil {
		logger.Error("Listing backups failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: err.Error(),
			Code:  "STORAGE_UNAVAILABLE",
		})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// HandleRollback handles POST /v1/publish/rollback.
//
// Description:
//
//	Restores production from a backup. With no backup_id the most recent
//	backup is used. The restore bumps the production version and is
//	recorded in the ledger.
//
// Query Parameters:
//
//	backup_id: Backup timestamp to restore (optional, default newest)
//
// Response:
//
//	200 OK: RollbackResult
//	404 Not Found: Unknown backup id, or no backups exist yet
//	409 Conflict: Another production transition is in flight
//	503 Service Unavailable: Storage kept failing
func (h *Handlers) HandleRollback(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	backupID := c.Query("backup_id")
	actor := actorFrom(c)
	logger := slog.With("request_id", requestID, "handler", "HandleRollback")

	logger.Info("Rolling back production", "backup_id", backupID, "actor", actor)

	resp, err := h.coord.Rollback(c.Request.Context(), backupID, actor)
	if err != nil {
		writeError(c, logger, "Rollback failed", err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// HandleHealth handles GET /v1/publish/health.
//
// Response:
//
//	200 OK: HealthResponse
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: ServiceVersion,
	})
}

// HandleReady handles GET /v1/publish/ready.
//
// Description:
//
//	Ready means the ledger store answers queries. The reported global
//	version lets a deploy script confirm which production state it is
//	talking to.
//
// Response:
//
//	200 OK: ReadyResponse (Ready=true)
//	503 Service Unavailable: ReadyResponse (Ready=false)
func (h *Handlers) HandleReady(c *gin.Context) {
	version, err := h.coord.GlobalVersion(c.Request.Context())
	if err != nil {
		c.Header("Retry-After", "10")
		c.JSON(http.StatusServiceUnavailable, ReadyResponse{Ready: false})
		return
	}

	c.JSON(http.StatusOK, ReadyResponse{
		Ready:         true,
		GlobalVersion: version,
	})
}

// writeError maps a coordinator error onto the HTTP error contract.
func writeError(c *gin.Context, logger *slog.Logger, msg string, err error) {
	statusCode := http.StatusInternalServerError
	errCode := "INTERNAL"

	var busy *BusyError
	switch {
	case errors.Is(err, ErrNotFound):
		statusCode = http.StatusNotFound
		errCode = "NOT_FOUND"
	case errors.Is(err, ErrPreconditionFailed):
		statusCode = http.StatusConflict
		errCode = "PRECONDITION_FAILED"
	case errors.As(err, &busy):
		statusCode = http.StatusConflict
		if busy.Scope == ScopeEnvironment {
			errCode = "ENVIRONMENT_BUSY"
		} else {
			errCode = "ARTICLE_BUSY"
		}
	case errors.Is(err, ErrBackupFailed):
		statusCode = http.StatusBadGateway
		errCode = "BACKUP_FAILED"
	case errors.Is(err, ErrStorageUnavailable):
		statusCode = http.StatusServiceUnavailable
		errCode = "STORAGE_UNAVAILABLE"
	}

	if statusCode >= http.StatusInternalServerError {
		logger.Error(msg, "error", err)
	} else {
		logger.Warn(msg, "error", err, "code", errCode)
	}

	c.JSON(statusCode, ErrorResponse{
		Error: err.Error(),
		Code:  errCode,
	})
}

// writeInvalidArgument rejects input that cannot form a storage key.
func writeInvalidArgument(c *gin.Context, logger *slog.Logger, err error) {
	logger.Warn("Rejected request input", "error", err)
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error: err.Error(),
		Code:  "INVALID_ARGUMENT",
	})
}

// actorFrom extracts the acting identity from the X-Actor header. The
// value is opaque; it is recorded in the ledger, never authenticated
// here (authn terminates at the ingress).
func actorFrom(c *gin.Context) string {
	if actor := c.GetHeader("X-Actor"); actor != "" {
		return actor
	}
	return "anonymous"
}

// getOrCreateRequestID gets or creates a request ID.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}
