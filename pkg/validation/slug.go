// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for user-provided inputs that end up
// in object-store keys and database keys. Using these validators
// prevents key collisions with reserved prefixes and path traversal
// through crafted article ids.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// articleIDPattern matches valid article ids.
// Allows: lowercase letters, digits, hyphens, underscores
// Max length: 64 characters
//
// Ids starting with "_" are rejected separately; that namespace is
// reserved for environment-level ledger subjects.
var articleIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_\-]{0,63}$`)

// languagePattern matches BCP 47 primary language subtags ("en") with
// an optional region ("en-us"). That covers every language the renderer
// supports; anything fancier is rejected.
var languagePattern = regexp.MustCompile(`^[a-z]{2,3}(-[a-z]{2})?$`)

// ValidateArticleID validates an article id before it is used in
// storage keys.
//
// Valid ids:
//   - 1-64 characters
//   - Lowercase letters a-z, digits 0-9
//   - Hyphens and underscores after the first character
//
// Returns an error if the id is invalid.
//
// Example:
//
//	if err := validation.ValidateArticleID(id); err != nil {
//	    return fmt.Errorf("invalid article id: %w", err)
//	}
//	// Safe to embed in an object-store key
func ValidateArticleID(id string) error {
	if id == "" {
		return fmt.Errorf("article id cannot be empty")
	}

	if !articleIDPattern.MatchString(id) {
		return fmt.Errorf("invalid article id %q (must be 1-64 lowercase alphanumeric chars, hyphens, or underscores)", id)
	}

	return nil
}

// ValidateLanguage validates a language code before it is used in
// listing keys and rendered page paths.
func ValidateLanguage(language string) error {
	if language == "" {
		return fmt.Errorf("language cannot be empty")
	}

	if !languagePattern.MatchString(language) {
		return fmt.Errorf("invalid language code %q", language)
	}

	return nil
}

// SanitizeLanguage normalizes and validates a language code.
// Returns the lowercase code if valid, or an error if invalid.
//
// Use this when accepting language codes from request paths:
//
//	lang, err := validation.SanitizeLanguage(c.Param("language"))
//	if err != nil {
//	    return err
//	}
//	// lang is lowercase and validated
func SanitizeLanguage(language string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(language))
	if err := ValidateLanguage(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}
