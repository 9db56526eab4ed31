// CLAUDE:SUMMARY HTML sanitization + markdown conversion shared by the feed and page adapters.
package adapter

import (
	"bytes"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// markdown sanitizes HTML and converts it to markdown.
type markdown struct {
	conv   *converter.Converter
	policy *bluemonday.Policy
}

func newMarkdown() *markdown {
	return &markdown{
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
		policy: bluemonday.UGCPolicy(),
	}
}

// Convert sanitizes raw HTML and renders it as markdown. If conversion fails
// or produces nothing, the fallback plain text is returned instead.
func (m *markdown) Convert(rawHTML, sourceURL, fallback string) string {
	if strings.TrimSpace(rawHTML) == "" {
		return strings.TrimSpace(fallback)
	}
	clean := m.policy.Sanitize(rawHTML)
	result, err := m.conv.ConvertString(clean, converter.WithDomain(sourceURL))
	if err != nil || strings.TrimSpace(result) == "" {
		return strings.TrimSpace(fallback)
	}
	return strings.TrimSpace(result)
}

// pageTitle extracts the <title> text from an HTML document, pre-sanitization.
func pageTitle(body []byte) string {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	var find func(n *html.Node) string
	find = func(n *html.Node) string {
		if n.Type == html.ElementNode && n.DataAtom == atom.Title && n.FirstChild != nil {
			return strings.TrimSpace(n.FirstChild.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if t := find(c); t != "" {
				return t
			}
		}
		return ""
	}
	return find(doc)
}
