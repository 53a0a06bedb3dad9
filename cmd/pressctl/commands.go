// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/spf13/cobra"
)

// Response mirrors of the pressd API. Kept local so the CLI stays a
// pure HTTP client of the service.

type transitionResponse struct {
	ArticleID     string `json:"article_id"`
	StagingURL    string `json:"staging_url,omitempty"`
	ProductionURL string `json:"production_url,omitempty"`
	Version       int    `json:"version,omitempty"`
	GlobalVersion uint64 `json:"global_version,omitempty"`
	BackupID      string `json:"backup_id,omitempty"`
	NoOp          bool   `json:"no_op,omitempty"`
}

type statusResponse struct {
	ArticleID  string `json:"article_id"`
	Review     string `json:"review_status"`
	Publishing struct {
		Stage         string     `json:"stage"`
		Version       int        `json:"version"`
		StagedAt      *time.Time `json:"staged_at"`
		StagedBy      string     `json:"staged_by"`
		PublishedAt   *time.Time `json:"published_at"`
		PublishedBy   string     `json:"published_by"`
		StagingURL    string     `json:"staging_url"`
		ProductionURL string     `json:"production_url"`
	} `json:"publishing"`
}

type historyResponse struct {
	ArticleID string `json:"article_id"`
	Entries   []struct {
		Seq       uint64    `json:"seq"`
		Actor     string    `json:"actor"`
		Action    string    `json:"action"`
		FromStage string    `json:"from_stage"`
		ToStage   string    `json:"to_stage"`
		Timestamp time.Time `json:"timestamp"`
		Detail    string    `json:"detail"`
	} `json:"entries"`
}

type backupsResponse struct {
	Backups []struct {
		Timestamp   string    `json:"timestamp"`
		CreatedAt   time.Time `json:"created_at"`
		ObjectCount int       `json:"object_count"`
	} `json:"backups"`
}

type rollbackResponse struct {
	BackupID      string `json:"backup_id"`
	GlobalVersion uint64 `json:"global_version"`
	ObjectCount   int    `json:"object_count"`
}

type listingResponse struct {
	Language      string `json:"language"`
	ProductionURL string `json:"production_url"`
	GlobalVersion uint64 `json:"global_version"`
	BackupID      string `json:"backup_id,omitempty"`
	ArticleCount  int    `json:"article_count"`
	NoOp          bool   `json:"no_op,omitempty"`
}

var rollbackBackupID string

var (
	stageCmd = &cobra.Command{
		Use:   "stage [article-id]",
		Short: "Render an approved article and write it to staging",
		Args:  cobra.ExactArgs(1),
		Run:   runStageCommand,
	}
	promoteCmd = &cobra.Command{
		Use:   "promote [article-id]",
		Short: "Promote a staged article to production",
		Long: `Promotes a staged article to production. A whole-production backup
is taken before anything is written; if the backup fails, production
is untouched. Promoting content identical to what production already
serves is a recorded no-op.`,
		Args: cobra.ExactArgs(1),
		Run:  runPromoteCommand,
	}
	republishCmd = &cobra.Command{
		Use:   "republish [article-id]",
		Short: "Re-stage and re-promote a published article in one step",
		Args:  cobra.ExactArgs(1),
		Run:   runRepublishCommand,
	}
	rejectCmd = &cobra.Command{
		Use:   "reject [article-id]",
		Short: "Reject an article, blocking it from publication",
		Args:  cobra.ExactArgs(1),
		Run:   runRejectCommand,
	}
	unpublishCmd = &cobra.Command{
		Use:   "unpublish [article-id]",
		Short: "Remove a published article's pages from production",
		Args:  cobra.ExactArgs(1),
		Run:   runUnpublishCommand,
	}
	statusCmd = &cobra.Command{
		Use:   "status [article-id]",
		Short: "Show an article's publishing state",
		Args:  cobra.ExactArgs(1),
		Run:   runStatusCommand,
	}
	historyCmd = &cobra.Command{
		Use:   "history [article-id]",
		Short: "Show an article's audit ledger entries",
		Args:  cobra.ExactArgs(1),
		Run:   runHistoryCommand,
	}
	listingCmd = &cobra.Command{
		Use:   "listing",
		Short: "Manage per-language listing pages",
	}
	listingPromoteCmd = &cobra.Command{
		Use:   "promote [language]",
		Short: "Rebuild a language's listing page and promote it to production",
		Args:  cobra.ExactArgs(1),
		Run:   runListingPromoteCommand,
	}
	backupsCmd = &cobra.Command{
		Use:   "backups",
		Short: "List retained production backups, newest first",
		Run:   runBackupsCommand,
	}
	rollbackCmd = &cobra.Command{
		Use:   "rollback",
		Short: "Restore production from a backup",
		Long: `Restores the production environment from a retained backup. Without
--backup-id the newest backup is used. The restore itself is snapshotted
first, so a rollback can be rolled back.`,
		Run: runRollbackCommand,
	}
	healthCmd = &cobra.Command{
		Use:   "health",
		Short: "Check that the pressd service is up",
		Run:   runHealthCommand,
	}
)

func init() {
	listingCmd.AddCommand(listingPromoteCmd)
	rollbackCmd.Flags().StringVar(&rollbackBackupID, "backup-id", "",
		"Backup timestamp to restore (default: newest)")
}

func articlePath(id, op string) string {
	return "/v1/publish/articles/" + url.PathEscape(id) + "/" + op
}

func runStageCommand(cmd *cobra.Command, args []string) {
	var resp transitionResponse
	if err := callAPI("POST", articlePath(args[0], "stage"), &resp); err != nil {
		log.Fatalf("Stage failed: %v", err)
	}
	if resp.NoOp {
		fmt.Printf("Staging already holds this content for %s (no-op)\n", resp.ArticleID)
	} else {
		fmt.Printf("Staged %s\n", resp.ArticleID)
	}
	fmt.Printf("  Preview: %s\n", resp.StagingURL)
}

func runPromoteCommand(cmd *cobra.Command, args []string) {
	var resp transitionResponse
	if err := callAPI("POST", articlePath(args[0], "promote"), &resp); err != nil {
		log.Fatalf("Promote failed: %v", err)
	}
	if resp.NoOp {
		fmt.Printf("Production already serves this content for %s (no-op)\n", resp.ArticleID)
		return
	}
	fmt.Printf("Promoted %s (version %d, production version %d)\n",
		resp.ArticleID, resp.Version, resp.GlobalVersion)
	fmt.Printf("  Live at: %s\n", resp.ProductionURL)
	fmt.Printf("  Backup:  %s\n", resp.BackupID)
}

func runRepublishCommand(cmd *cobra.Command, args []string) {
	var resp transitionResponse
	if err := callAPI("POST", articlePath(args[0], "republish"), &resp); err != nil {
		log.Fatalf("Republish failed: %v", err)
	}
	if resp.NoOp {
		fmt.Printf("Production already serves this content for %s (no-op)\n", resp.ArticleID)
		return
	}
	fmt.Printf("Republished %s (version %d, production version %d)\n",
		resp.ArticleID, resp.Version, resp.GlobalVersion)
	fmt.Printf("  Live at: %s\n", resp.ProductionURL)
}

func runRejectCommand(cmd *cobra.Command, args []string) {
	if err := callAPI("POST", articlePath(args[0], "reject"), nil); err != nil {
		log.Fatalf("Reject failed: %v", err)
	}
	fmt.Printf("Rejected %s\n", args[0])
}

func runUnpublishCommand(cmd *cobra.Command, args []string) {
	if err := callAPI("POST", articlePath(args[0], "unpublish"), nil); err != nil {
		log.Fatalf("Unpublish failed: %v", err)
	}
	fmt.Printf("Unpublished %s (production pages removed, staging kept)\n", args[0])
}

func runStatusCommand(cmd *cobra.Command, args []string) {
	var resp statusResponse
	if err := callAPI("GET", articlePath(args[0], "status"), &resp); err != nil {
		log.Fatalf("Status failed: %v", err)
	}

	fmt.Printf("Article: %s\n", resp.ArticleID)
	fmt.Printf("  Review:  %s\n", resp.Review)
	fmt.Printf("  Stage:   %s\n", resp.Publishing.Stage)
	fmt.Printf("  Version: %d\n", resp.Publishing.Version)
	if resp.Publishing.StagedAt != nil {
		fmt.Printf("  Staged:  %s by %s\n",
			resp.Publishing.StagedAt.Format(time.RFC3339), resp.Publishing.StagedBy)
		fmt.Printf("           %s\n", resp.Publishing.StagingURL)
	}
	if resp.Publishing.PublishedAt != nil {
		fmt.Printf("  Live:    %s by %s\n",
			resp.Publishing.PublishedAt.Format(time.RFC3339), resp.Publishing.PublishedBy)
		fmt.Printf("           %s\n", resp.Publishing.ProductionURL)
	}
}

func runHistoryCommand(cmd *cobra.Command, args []string) {
	var resp historyResponse
	if err := callAPI("GET", articlePath(args[0], "history"), &resp); err != nil {
		log.Fatalf("History failed: %v", err)
	}

	if len(resp.Entries) == 0 {
		fmt.Printf("No recorded transitions for %s\n", resp.ArticleID)
		return
	}
	fmt.Printf("History for %s (%d entries):\n", resp.ArticleID, len(resp.Entries))
	for _, e := range resp.Entries {
		line := fmt.Sprintf("  %3d  %s  %-10s %s -> %s  by %s",
			e.Seq, e.Timestamp.Format(time.RFC3339), e.Action,
			e.FromStage, e.ToStage, e.Actor)
		if e.Detail != "" {
			line += "  (" + e.Detail + ")"
		}
		fmt.Println(line)
	}
}

func runListingPromoteCommand(cmd *cobra.Command, args []string) {
	var resp listingResponse
	path := "/v1/publish/listing/" + url.PathEscape(args[0]) + "/promote"
	if err := callAPI("POST", path, &resp); err != nil {
		log.Fatalf("Listing promote failed: %v", err)
	}
	if resp.NoOp {
		fmt.Printf("Listing for %q is already current (no-op)\n", resp.Language)
		return
	}
	fmt.Printf("Promoted %q listing with %d articles (production version %d)\n",
		resp.Language, resp.ArticleCount, resp.GlobalVersion)
	fmt.Printf("  Live at: %s\n", resp.ProductionURL)
}

func runBackupsCommand(cmd *cobra.Command, args []string) {
	var resp backupsResponse
	if err := callAPI("GET", "/v1/publish/backups", &resp); err != nil {
		log.Fatalf("Listing backups failed: %v", err)
	}

	if len(resp.Backups) == 0 {
		fmt.Println("No backups retained yet.")
		return
	}
	fmt.Printf("%d backups (newest first):\n", len(resp.Backups))
	for _, b := range resp.Backups {
		fmt.Printf("  %s  %4d objects  created %s\n",
			b.Timestamp, b.ObjectCount, b.CreatedAt.Format(time.RFC3339))
	}
}

func runRollbackCommand(cmd *cobra.Command, args []string) {
	path := "/v1/publish/rollback"
	if rollbackBackupID != "" {
		path += "?backup_id=" + url.QueryEscape(rollbackBackupID)
	}

	var resp rollbackResponse
	if err := callAPI("POST", path, &resp); err != nil {
		log.Fatalf("Rollback failed: %v", err)
	}
	fmt.Printf("Restored production from backup %s (%d objects, production version %d)\n",
		resp.BackupID, resp.ObjectCount, resp.GlobalVersion)
}

func runHealthCommand(cmd *cobra.Command, args []string) {
	var resp struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
	if err := callAPI("GET", "/v1/publish/health", &resp); err != nil {
		log.Fatalf("Health check failed: %v", err)
	}
	fmt.Printf("pressd %s at %s: %s\n", resp.Version, serverURL, resp.Status)
}
