// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package render turns article records into self-contained page artifacts.
//
// Rendering is pure and deterministic: the same article and language always
// produce byte-identical output. The publish coordinator's content-hash
// idempotence depends on that, so nothing time- or environment-dependent
// may enter the output.
package render

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/AleutianAI/AleutianPress/services/publish/articles"
	"github.com/yuin/goldmark"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"
)

// SiteTitle is the site heading embedded in every artifact.
const SiteTitle = "AI & Tech Blog"

// FallbackMarker is embedded in a detail page whose requested translation
// was missing and was rendered from the primary language instead.
const FallbackMarker = `<meta name="content-fallback" content="%s">`

// Renderer renders detail and listing pages.
//
// # Thread Safety
//
// Safe for concurrent use; goldmark converters are stateless across calls.
type Renderer struct {
	md goldmark.Markdown
}

// NewRenderer creates a renderer with the markdown converter configured
// for article bodies.
func NewRenderer() *Renderer {
	return &Renderer{
		md: goldmark.New(
			goldmark.WithRendererOptions(
				// Article bodies come from the acquisition pipeline and
				// may carry inline HTML from the source site.
				goldmarkhtml.WithUnsafe(),
			),
		),
	}
}

// RenderDetail renders the detail page (PDP) for one article in one language.
//
// Description:
//
//	A missing translation is not an error: the primary-language content is
//	used and the artifact carries a fallback marker in its head. The output
//	is deterministic for a given (article, language) pair.
//
// Inputs:
//
//	article - The article record. Must have content in its primary language.
//	language - Requested language code.
//
// Outputs:
//
//	[]byte - The rendered HTML artifact.
//	error - Non-nil only if the article has no renderable content at all.
func (r *Renderer) RenderDetail(article *articles.Article, language string) ([]byte, error) {
	body, fellBack := article.ContentFor(language)
	if body == "" {
		return nil, fmt.Errorf("article %s has no content for language %q or its primary language", article.ID, language)
	}
	title := article.TitleFor(language)

	var content bytes.Buffer
	if err := r.md.Convert([]byte(body), &content); err != nil {
		return nil, fmt.Errorf("convert article %s body: %w", article.ID, err)
	}

	fallback := ""
	if fellBack {
		fallback = "\n    " + fmt.Sprintf(FallbackMarker, article.PrimaryLanguage)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<!DOCTYPE html>
<html lang="%s">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">%s
    <title>%s</title>
    <link rel="stylesheet" href="/static/styles.css">
</head>
<body>
    <header>
        <nav class="container">
            <h1><a href="/">%s</a></h1>
        </nav>
    </header>
    <main class="container">
        <article>
            <h1>%s</h1>
            <div class="meta">
                <time>%s</time>
                <span>Source: %s</span>
            </div>
            <div class="content">%s</div>
            <footer>
                <a href="%s">Read original article</a>
            </footer>
        </article>
    </main>
</body>
</html>`,
		html.EscapeString(language),
		fallback,
		html.EscapeString(title),
		SiteTitle,
		html.EscapeString(title),
		html.EscapeString(article.PublishedDate),
		html.EscapeString(article.Source),
		content.String(),
		html.EscapeString(article.SourceURL),
	)
	return buf.Bytes(), nil
}

// RenderListing renders the listing page (PLP) for a language.
//
// Description:
//
//	Enumerates the given articles in the order provided. Membership and
//	order are the caller's responsibility; the renderer only lays them out.
//	Deterministic for a given (language, articles) input.
//
// Inputs:
//
//	language - Language the listing is rendered for.
//	items - Ordered articles to enumerate. May be empty.
//
// Outputs:
//
//	[]byte - The rendered HTML artifact.
//	error - Always nil today; kept for interface symmetry with RenderDetail.
func (r *Renderer) RenderListing(language string, items []*articles.Article) ([]byte, error) {
	var cards strings.Builder
	for _, a := range items {
		fmt.Fprintf(&cards, `            <article class="card">
                <h2><a href="/%s/%s">%s</a></h2>
                <div class="meta">
                    <time>%s</time>
                    <span>%s</span>
                </div>
            </article>
`,
			html.EscapeString(language),
			html.EscapeString(a.ID),
			html.EscapeString(a.TitleFor(language)),
			html.EscapeString(a.PublishedDate),
			html.EscapeString(a.Source),
		)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<!DOCTYPE html>
<html lang="%s">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>%s</title>
    <link rel="stylesheet" href="/static/styles.css">
</head>
<body>
    <header>
        <nav class="container">
            <h1>%s</h1>
        </nav>
    </header>
    <main class="container">
        <div class="grid">
%s        </div>
    </main>
</body>
</html>`,
		html.EscapeString(language),
		SiteTitle,
		SiteTitle,
		cards.String(),
	)
	return buf.Bytes(), nil
}
