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
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all publish routes with the router.
//
// Description:
//
//	Registers all /v1/publish/* endpoints with the given Gin router
//	group. The router group should already have any required middleware
//	applied.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Article Endpoints:
//
//	POST /v1/publish/articles/:id/stage - Render and write to staging
//	POST /v1/publish/articles/:id/promote - Copy staged pages to production
//	POST /v1/publish/articles/:id/republish - Re-stage and re-promote
//	POST /v1/publish/articles/:id/reject - Terminal review rejection
//	POST /v1/publish/articles/:id/unpublish - Remove from production
//	GET  /v1/publish/articles/:id/status - Current publishing block
//	GET  /v1/publish/articles/:id/history - Full audit history
//
// Listing Endpoints:
//
//	POST /v1/publish/listing/:language/promote - Rebuild and promote listing
//
// Backup Endpoints:
//
//	GET  /v1/publish/backups - List backups, newest first
//	POST /v1/publish/rollback - Restore production from a backup
//
// Health Endpoints:
//
//	GET  /v1/publish/health - Health check
//	GET  /v1/publish/ready - Readiness check
//
// Example:
//
//	coord := publish.NewCoordinator(cfg, store, renderer, env, backups, ledger)
//	handlers := publish.NewHandlers(coord)
//
//	v1 := router.Group("/v1")
//	publish.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	pub := rg.Group("/publish")
	{
		articles := pub.Group("/articles")
		{
			articles.POST("/:id/stage", handlers.HandleStage)
			articles.POST("/:id/promote", handlers.HandlePromote)
			articles.POST("/:id/republish", handlers.HandleRepublish)
			articles.POST("/:id/reject", handlers.HandleReject)
			articles.POST("/:id/unpublish", handlers.HandleUnpublish)
			articles.GET("/:id/status", handlers.HandleStatus)
			articles.GET("/:id/history", handlers.HandleHistory)
		}

		pub.POST("/listing/:language/promote", handlers.HandlePromoteListing)

		pub.GET("/backups", handlers.HandleListBackups)
		pub.POST("/rollback", handlers.HandleRollback)

		pub.GET("/health", handlers.HandleHealth)
		pub.GET("/ready", handlers.HandleReady)
	}
}
