// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validation

import (
	"strings"
	"testing"
)

func TestValidateArticleID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		// Valid ids
		{"simple", "a1", false},
		{"single char", "a", false},
		{"slug", "why-go-wins-2026", false},
		{"underscored", "draft_42", false},
		{"max length", strings.Repeat("a", 64), false},

		// Invalid ids - traversal and reserved namespace
		{"empty", "", true},
		{"path traversal", "../production/en/index", true},
		{"slash", "en/index", true},
		{"reserved prefix", "_production", true},
		{"reserved listing", "_listing/en", true},
		{"uppercase", "A1", true},
		{"too long", strings.Repeat("a", 65), true},
		{"spaces", "a 1", true},
		{"newline", "a1\nrm", true},
		{"unicode", "a1™", true},
		{"starts with hyphen", "-a1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateArticleID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateArticleID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
		})
	}
}

func TestValidateLanguage(t *testing.T) {
	tests := []struct {
		name     string
		language string
		wantErr  bool
	}{
		{"two letter", "en", false},
		{"three letter", "fil", false},
		{"with region", "en-us", false},
		{"empty", "", true},
		{"uppercase", "EN", true},
		{"too short", "e", true},
		{"slash", "en/..", true},
		{"numeric", "e1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLanguage(tt.language)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateLanguage(%q) error = %v, wantErr %v", tt.language, err, tt.wantErr)
			}
		})
	}
}

func TestSanitizeLanguage(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"already clean", "en", "en", false},
		{"uppercase", "EN", "en", false},
		{"padded", "  es ", "es", false},
		{"invalid", "e!", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeLanguage(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SanitizeLanguage(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("SanitizeLanguage(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
