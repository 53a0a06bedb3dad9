// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command pressctl is the operator CLI for the AleutianPress publishing
// service.
//
// Every command is a thin client over the pressd HTTP API. The actor
// recorded in the audit ledger comes from --actor, defaulting to the
// local username.
//
// Usage:
//
//	pressctl stage a1
//	pressctl promote a1
//	pressctl status a1
//	pressctl history a1
//	pressctl listing promote en
//	pressctl backups
//	pressctl rollback --backup-id 2026-08-01T12-00-00Z
package main

import (
	"log"
	"os"
	"os/user"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	actorName string
)

var rootCmd = &cobra.Command{
	Use:   "pressctl",
	Short: "A CLI to manage article publication on AleutianPress",
	Long: `Pressctl drives the AleutianPress publishing pipeline: stage
approved articles, promote them to production, inspect history, and
roll production back to a retained backup.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server",
		envOr("PRESSD_URL", "http://localhost:8094"),
		"Base URL of the pressd service")
	rootCmd.PersistentFlags().StringVar(&actorName, "actor",
		defaultActor(), "Actor recorded in the audit ledger")

	rootCmd.AddCommand(stageCmd, promoteCmd, republishCmd, rejectCmd,
		unpublishCmd, statusCmd, historyCmd, listingCmd, backupsCmd,
		rollbackCmd, healthCmd)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultActor() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "anonymous"
}
