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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianPress/services/publish/articles"
	"github.com/AleutianAI/AleutianPress/services/publish/envstore"
)

func init() {
	// Set Gin to test mode to reduce noise
	gin.SetMode(gin.TestMode)
}

func setupTestRouter(te *testEnv) *gin.Engine {
	router := gin.New()
	handlers := NewHandlers(te.coord)
	v1 := router.Group("/v1")
	RegisterRoutes(v1, handlers)
	return router
}

func doRequest(router *gin.Engine, method, path, actor string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, nil)
	if actor != "" {
		req.Header.Set("X-Actor", actor)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal error response: %v", err)
	}
	return resp
}

func TestHandlers_HandleHealth(t *testing.T) {
	router := setupTestRouter(newTestEnv(t))

	w := doRequest(router, "GET", "/v1/publish/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var resp HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("expected status 'healthy', got %q", resp.Status)
	}
	if resp.Version != ServiceVersion {
		t.Errorf("expected version %q, got %q", ServiceVersion, resp.Version)
	}
}

func TestHandlers_HandleReady(t *testing.T) {
	router := setupTestRouter(newTestEnv(t))

	w := doRequest(router, "GET", "/v1/publish/ready", "")
	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var resp ReadyResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if !resp.Ready {
		t.Error("expected Ready=true")
	}
	if resp.GlobalVersion != 0 {
		t.Errorf("expected global version 0, got %d", resp.GlobalVersion)
	}
}

func TestHandlers_StageAndPromote(t *testing.T) {
	te := newTestEnv(t)
	te.seedArticle("a1", articles.ReviewApproved)
	router := setupTestRouter(te)

	w := doRequest(router, "POST", "/v1/publish/articles/a1/stage", "editor-1")
	if w.Code != http.StatusOK {
		t.Fatalf("stage: expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected an X-Request-ID header on the response")
	}

	var stageResp StageResult
	if err := json.Unmarshal(w.Body.Bytes(), &stageResp); err != nil {
		t.Fatalf("failed to unmarshal stage response: %v", err)
	}
	if stageResp.StagingURL == "" {
		t.Error("expected a staging URL")
	}

	w = doRequest(router, "POST", "/v1/publish/articles/a1/promote", "editor-1")
	if w.Code != http.StatusOK {
		t.Fatalf("promote: expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	var promoteResp PromoteResult
	if err := json.Unmarshal(w.Body.Bytes(), &promoteResp); err != nil {
		t.Fatalf("failed to unmarshal promote response: %v", err)
	}
	if promoteResp.Version != 1 {
		t.Errorf("expected version 1, got %d", promoteResp.Version)
	}
	if promoteResp.BackupID == "" {
		t.Error("expected a backup id on a first promote")
	}

	// The actor from the X-Actor header must land in the metadata.
	w = doRequest(router, "GET", "/v1/publish/articles/a1/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: expected status %d, got %d", http.StatusOK, w.Code)
	}
	var statusResp StatusResult
	if err := json.Unmarshal(w.Body.Bytes(), &statusResp); err != nil {
		t.Fatalf("failed to unmarshal status response: %v", err)
	}
	if statusResp.Publishing.PublishedBy != "editor-1" {
		t.Errorf("expected published_by 'editor-1', got %q", statusResp.Publishing.PublishedBy)
	}
}

func TestHandlers_StageUnknownArticle(t *testing.T) {
	router := setupTestRouter(newTestEnv(t))

	w := doRequest(router, "POST", "/v1/publish/articles/ghost/stage", "editor-1")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
	}
	if resp := decodeError(t, w); resp.Code != "NOT_FOUND" {
		t.Errorf("expected code NOT_FOUND, got %q", resp.Code)
	}
}

func TestHandlers_PromoteUnstaged(t *testing.T) {
	te := newTestEnv(t)
	te.seedArticle("a1", articles.ReviewApproved)
	router := setupTestRouter(te)

	w := doRequest(router, "POST", "/v1/publish/articles/a1/promote", "editor-1")
	if w.Code != http.StatusConflict {
		t.Errorf("expected status %d, got %d", http.StatusConflict, w.Code)
	}
	if resp := decodeError(t, w); resp.Code != "PRECONDITION_FAILED" {
		t.Errorf("expected code PRECONDITION_FAILED, got %q", resp.Code)
	}
}

func TestHandlers_PromoteBusyCodes(t *testing.T) {
	te := newTestEnv(t)
	te.seedArticle("a1", articles.ReviewApproved)
	router := setupTestRouter(te)

	w := doRequest(router, "POST", "/v1/publish/articles/a1/stage", "editor-1")
	if w.Code != http.StatusOK {
		t.Fatalf("stage: expected status %d, got %d", http.StatusOK, w.Code)
	}

	articleLease, err := te.coord.articleLocks.Acquire("a1", "other")
	if err != nil {
		t.Fatalf("failed to acquire article lock: %v", err)
	}
	w = doRequest(router, "POST", "/v1/publish/articles/a1/promote", "editor-1")
	if w.Code != http.StatusConflict {
		t.Errorf("expected status %d, got %d", http.StatusConflict, w.Code)
	}
	if resp := decodeError(t, w); resp.Code != "ARTICLE_BUSY" {
		t.Errorf("expected code ARTICLE_BUSY, got %q", resp.Code)
	}
	te.coord.articleLocks.Release(articleLease)

	envLease, err := te.coord.envLocks.Acquire(envstore.EnvProduction, "rollback")
	if err != nil {
		t.Fatalf("failed to acquire environment lock: %v", err)
	}
	w = doRequest(router, "POST", "/v1/publish/articles/a1/promote", "editor-1")
	if w.Code != http.StatusConflict {
		t.Errorf("expected status %d, got %d", http.StatusConflict, w.Code)
	}
	if resp := decodeError(t, w); resp.Code != "ENVIRONMENT_BUSY" {
		t.Errorf("expected code ENVIRONMENT_BUSY, got %q", resp.Code)
	}
	te.coord.envLocks.Release(envLease)
}

func TestHandlers_RollbackNoBackups(t *testing.T) {
	router := setupTestRouter(newTestEnv(t))

	w := doRequest(router, "POST", "/v1/publish/rollback", "oncall")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
	}
	if resp := decodeError(t, w); resp.Code != "NOT_FOUND" {
		t.Errorf("expected code NOT_FOUND, got %q", resp.Code)
	}
}

func TestHandlers_RollbackByQueryParam(t *testing.T) {
	te := newTestEnv(t)
	te.seedArticle("a1", articles.ReviewApproved)
	router := setupTestRouter(te)

	w := doRequest(router, "POST", "/v1/publish/articles/a1/stage", "editor-1")
	if w.Code != http.StatusOK {
		t.Fatalf("stage: expected status %d, got %d", http.StatusOK, w.Code)
	}
	w = doRequest(router, "POST", "/v1/publish/articles/a1/promote", "editor-1")
	if w.Code != http.StatusOK {
		t.Fatalf("promote: expected status %d, got %d", http.StatusOK, w.Code)
	}
	var promoteResp PromoteResult
	if err := json.Unmarshal(w.Body.Bytes(), &promoteResp); err != nil {
		t.Fatalf("failed to unmarshal promote response: %v", err)
	}

	w = doRequest(router, "POST", "/v1/publish/rollback?backup_id="+promoteResp.BackupID, "oncall")
	if w.Code != http.StatusOK {
		t.Fatalf("rollback: expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	var rollbackResp RollbackResult
	if err := json.Unmarshal(w.Body.Bytes(), &rollbackResp); err != nil {
		t.Fatalf("failed to unmarshal rollback response: %v", err)
	}
	if rollbackResp.BackupID != promoteResp.BackupID {
		t.Errorf("expected backup id %q, got %q", promoteResp.BackupID, rollbackResp.BackupID)
	}
}

func TestHandlers_ListBackups(t *testing.T) {
	te := newTestEnv(t)
	te.seedArticle("a1", articles.ReviewApproved)
	router := setupTestRouter(te)

	w := doRequest(router, "GET", "/v1/publish/backups", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	var resp BackupsResult
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal backups response: %v", err)
	}
	if len(resp.Backups) != 0 {
		t.Errorf("expected no backups before any promote, got %d", len(resp.Backups))
	}

	doRequest(router, "POST", "/v1/publish/articles/a1/stage", "editor-1")
	doRequest(router, "POST", "/v1/publish/articles/a1/promote", "editor-1")

	w = doRequest(router, "GET", "/v1/publish/backups", "")
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal backups response: %v", err)
	}
	if len(resp.Backups) != 1 {
		t.Errorf("expected 1 backup after the first promote, got %d", len(resp.Backups))
	}
}

func TestHandlers_PromoteListingUnknownLanguage(t *testing.T) {
	router := setupTestRouter(newTestEnv(t))

	w := doRequest(router, "POST", "/v1/publish/listing/fr/promote", "editor-1")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
	}
}

func TestHandlers_History(t *testing.T) {
	te := newTestEnv(t)
	te.seedArticle("a1", articles.ReviewApproved)
	router := setupTestRouter(te)

	doRequest(router, "POST", "/v1/publish/articles/a1/stage", "editor-1")

	w := doRequest(router, "GET", "/v1/publish/articles/a1/history", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	var resp struct {
		ArticleID string `json:"article_id"`
		Entries   []struct {
			Action string `json:"action"`
			Actor  string `json:"actor"`
		} `json:"entries"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal history response: %v", err)
	}
	if len(resp.Entries) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(resp.Entries))
	}
	if resp.Entries[0].Action != "stage" || resp.Entries[0].Actor != "editor-1" {
		t.Errorf("unexpected first entry: %+v", resp.Entries[0])
	}
}

func TestHandlers_RejectsMalformedArticleID(t *testing.T) {
	router := setupTestRouter(newTestEnv(t))

	// Ids that cannot form a storage key must never reach the coordinator.
	w := doRequest(router, "POST", "/v1/publish/articles/_production/stage", "editor-1")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
	if resp := decodeError(t, w); resp.Code != "INVALID_ARGUMENT" {
		t.Errorf("expected code INVALID_ARGUMENT, got %q", resp.Code)
	}
}

func TestHandlers_RejectsMalformedLanguage(t *testing.T) {
	router := setupTestRouter(newTestEnv(t))

	w := doRequest(router, "POST", "/v1/publish/listing/e!/promote", "editor-1")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
	if resp := decodeError(t, w); resp.Code != "INVALID_ARGUMENT" {
		t.Errorf("expected code INVALID_ARGUMENT, got %q", resp.Code)
	}
}
