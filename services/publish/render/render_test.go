// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/AleutianAI/AleutianPress/services/publish/articles"
)

func testArticle() *articles.Article {
	return &articles.Article{
		ID:              "a1",
		Source:          "TechCrunch",
		SourceURL:       "https://example.com/original",
		PublishedDate:   "2026-08-01",
		PrimaryLanguage: "en",
		Title: map[string]string{
			"en": "New Model Released",
			"es": "Nuevo modelo publicado",
		},
		Content: map[string]string{
			"en": "A **major** release.",
			"es": "Un lanzamiento **importante**.",
		},
	}
}

func TestRenderDetail_Deterministic(t *testing.T) {
	r := NewRenderer()
	a := testArticle()

	first, err := r.RenderDetail(a, "en")
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	second, err := r.RenderDetail(a, "en")
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("expected byte-identical output for identical input")
	}
}

func TestRenderDetail_ConvertsMarkdown(t *testing.T) {
	r := NewRenderer()
	out, err := r.RenderDetail(testArticle(), "en")
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !strings.Contains(string(out), "<strong>major</strong>") {
		t.Errorf("expected markdown conversion in output:\n%s", out)
	}
	if !strings.Contains(string(out), `<html lang="en">`) {
		t.Error("expected language attribute on html element")
	}
}

func TestRenderDetail_FallbackMarker(t *testing.T) {
	r := NewRenderer()
	a := testArticle()

	// "uk" has no translation: render must still succeed, using the
	// primary language content and embedding the fallback marker.
	out, err := r.RenderDetail(a, "uk")
	if err != nil {
		t.Fatalf("expected fallback render to succeed, got %v", err)
	}
	if !strings.Contains(string(out), `<meta name="content-fallback" content="en">`) {
		t.Error("expected fallback marker for missing translation")
	}
	if !strings.Contains(string(out), "New Model Released") {
		t.Error("expected primary-language title in fallback render")
	}

	// A present translation must not carry the marker.
	out, err = r.RenderDetail(a, "es")
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if strings.Contains(string(out), "content-fallback") {
		t.Error("unexpected fallback marker on translated render")
	}
}

func TestRenderDetail_NoContentAtAll(t *testing.T) {
	r := NewRenderer()
	a := testArticle()
	a.Content = map[string]string{}

	if _, err := r.RenderDetail(a, "en"); err == nil {
		t.Error("expected error for article with no content")
	}
}

func TestRenderDetail_EscapesTitle(t *testing.T) {
	r := NewRenderer()
	a := testArticle()
	a.Title["en"] = `<script>alert("x")</script>`

	out, err := r.RenderDetail(a, "en")
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if strings.Contains(string(out), `<script>alert`) {
		t.Error("title was not escaped")
	}
}

func TestRenderListing(t *testing.T) {
	r := NewRenderer()
	a1 := testArticle()
	a2 := testArticle()
	a2.ID = "a2"
	a2.Title["en"] = "Second Story"

	out, err := r.RenderListing("en", []*articles.Article{a1, a2})
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	body := string(out)

	if !strings.Contains(body, `href="/en/a1"`) || !strings.Contains(body, `href="/en/a2"`) {
		t.Errorf("expected links to both articles:\n%s", body)
	}
	if !strings.Contains(body, "Second Story") {
		t.Error("expected second article title")
	}

	again, err := r.RenderListing("en", []*articles.Article{a1, a2})
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !bytes.Equal(out, again) {
		t.Error("expected deterministic listing output")
	}
}

func TestRenderListing_Empty(t *testing.T) {
	r := NewRenderer()
	out, err := r.RenderListing("en", nil)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !strings.Contains(string(out), `<div class="grid">`) {
		t.Error("expected empty grid in listing shell")
	}
}
