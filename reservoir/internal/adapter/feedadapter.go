// CLAUDE:SUMMARY Built-in feed adapter: fetch RSS/Atom, one item per entry with guid/link/title fields.
package adapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/hazyhaar/reservoir/reservoir/internal/chanstore"
	"github.com/hazyhaar/reservoir/reservoir/internal/feed"
	"github.com/hazyhaar/reservoir/reservoir/internal/fetch"
)

// FeedAdapter fetches an RSS or Atom feed. Parameters: "url" (required),
// "max_entries" (default 50).
type FeedAdapter struct {
	fetcher *fetch.Fetcher
	md      *markdown
}

// Fetch downloads and parses the feed, producing one item per entry.
func (a *FeedAdapter) Fetch(ctx context.Context, src *chanstore.Source) ([]Item, error) {
	url := src.Params["url"]
	if url == "" {
		return nil, fmt.Errorf("%w: feed source %q has no url parameter", chanstore.ErrInvalidInput, src.ID)
	}

	body, err := a.fetcher.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("feed adapter: %w", err)
	}
	f, err := feed.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("feed adapter: %w", err)
	}

	limit := paramInt(src, "max_entries", 50)
	if limit > len(f.Entries) {
		limit = len(f.Entries)
	}

	items := make([]Item, 0, limit)
	for _, entry := range f.Entries[:limit] {
		items = append(items, a.render(entry, url))
	}
	return items, nil
}

// render formats one entry as a markdown document with a small header block.
func (a *FeedAdapter) render(e feed.Entry, feedURL string) Item {
	bodyHTML := e.Content
	if bodyHTML == "" {
		bodyHTML = e.Summary
	}
	body := a.md.Convert(bodyHTML, feedURL, e.Summary)

	var b strings.Builder
	if e.Title != "" {
		fmt.Fprintf(&b, "# %s\n\n", e.Title)
	}
	if e.Link != "" {
		fmt.Fprintf(&b, "Link: %s\n", e.Link)
	}
	if e.Published != "" {
		fmt.Fprintf(&b, "Published: %s\n", e.Published)
	}
	if e.Author != "" {
		fmt.Fprintf(&b, "Author: %s\n", e.Author)
	}
	if body != "" {
		b.WriteString("\n")
		b.WriteString(body)
		b.WriteString("\n")
	}

	var suggested string
	if e.Title != "" {
		suggested = chanstore.Slugify(e.Title) + ".md"
	}
	return Item{
		Content:           b.String(),
		SuggestedFilename: suggested,
		Fields: map[string]string{
			"guid":      e.GUID,
			"link":      e.Link,
			"title":     e.Title,
			"published": e.Published,
			"author":    e.Author,
		},
	}
}
