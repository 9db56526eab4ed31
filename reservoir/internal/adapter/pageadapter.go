// CLAUDE:SUMMARY Built-in page adapter: fetch one HTML page, sanitize, convert to a markdown document.
package adapter

import (
	"context"
	"fmt"

	"github.com/hazyhaar/reservoir/reservoir/internal/chanstore"
	"github.com/hazyhaar/reservoir/reservoir/internal/fetch"
)

// PageAdapter fetches a single HTML page. Parameter: "url" (required).
type PageAdapter struct {
	fetcher *fetch.Fetcher
	md      *markdown
}

// Fetch downloads the page and converts it to one markdown item.
func (a *PageAdapter) Fetch(ctx context.Context, src *chanstore.Source) ([]Item, error) {
	url := src.Params["url"]
	if url == "" {
		return nil, fmt.Errorf("%w: page source %q has no url parameter", chanstore.ErrInvalidInput, src.ID)
	}

	body, err := a.fetcher.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("page adapter: %w", err)
	}

	title := pageTitle(body)
	content := a.md.Convert(string(body), url, string(body))
	if title != "" {
		content = "# " + title + "\n\n" + content
	}

	var suggested string
	if title != "" {
		suggested = chanstore.Slugify(title) + ".md"
	}
	return []Item{{
		Content:           content + "\n",
		SuggestedFilename: suggested,
		Fields: map[string]string{
			"url":   url,
			"title": title,
		},
	}}, nil
}
