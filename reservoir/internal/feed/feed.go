// CLAUDE:SUMMARY RSS 2.0 / Atom 1.0 parser feeding the feed adapter; format sniffed from the root element.
// Package feed parses RSS 2.0 and Atom 1.0 with encoding/xml.
//
// The format is sniffed from the XML root element: <rss> (or RDF) parses as
// RSS, <feed> as Atom. Entries come back in one canonical shape regardless of
// the wire format.
package feed

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
)

// Entry is one item of a feed in canonical form.
type Entry struct {
	GUID      string
	Title     string
	Link      string
	Summary   string // description (RSS) or summary (Atom)
	Content   string // content:encoded (RSS) or content (Atom), may be HTML
	Published string
	Author    string
}

// Feed is a parsed feed.
type Feed struct {
	Title   string
	Link    string
	Entries []Entry
}

// Parse sniffs the format and parses the feed.
func Parse(data []byte) (*Feed, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("feed: empty document")
	}
	switch rootElement(trimmed) {
	case "rss", "rdf":
		return parseRSS(trimmed)
	case "feed":
		return parseAtom(trimmed)
	default:
		return nil, fmt.Errorf("feed: unrecognized format (expected <rss> or <feed>)")
	}
}

// rootElement returns the lowercased local name of the first start element.
func rootElement(data []byte) string {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return ""
		}
		if start, ok := tok.(xml.StartElement); ok {
			return strings.ToLower(start.Name.Local)
		}
	}
}

type rssDoc struct {
	Channel struct {
		Title string `xml:"title"`
		Link  string `xml:"link"`
		Items []struct {
			GUID        string `xml:"guid"`
			Title       string `xml:"title"`
			Link        string `xml:"link"`
			Description string `xml:"description"`
			Encoded     string `xml:"encoded"` // content:encoded
			PubDate     string `xml:"pubDate"`
			Date        string `xml:"date"` // dc:date (RDF feeds)
			Author      string `xml:"author"`
			Creator     string `xml:"creator"` // dc:creator
		} `xml:"item"`
	} `xml:"channel"`
}

func parseRSS(data []byte) (*Feed, error) {
	var doc rssDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("feed: parse rss: %w", err)
	}
	out := &Feed{
		Title:   strings.TrimSpace(doc.Channel.Title),
		Link:    strings.TrimSpace(doc.Channel.Link),
		Entries: make([]Entry, 0, len(doc.Channel.Items)),
	}
	for _, it := range doc.Channel.Items {
		e := Entry{
			GUID:      strings.TrimSpace(it.GUID),
			Title:     strings.TrimSpace(it.Title),
			Link:      strings.TrimSpace(it.Link),
			Summary:   strings.TrimSpace(it.Description),
			Content:   strings.TrimSpace(it.Encoded),
			Published: firstNonEmpty(it.PubDate, it.Date),
			Author:    firstNonEmpty(it.Author, it.Creator),
		}
		if e.GUID == "" {
			e.GUID = e.Link
		}
		out.Entries = append(out.Entries, e)
	}
	return out, nil
}

type atomDoc struct {
	Title   string     `xml:"title"`
	Links   []atomLink `xml:"link"`
	Entries []struct {
		ID        string     `xml:"id"`
		Title     string     `xml:"title"`
		Links     []atomLink `xml:"link"`
		Summary   string     `xml:"summary"`
		Published string     `xml:"published"`
		Updated   string     `xml:"updated"`
		Content   struct {
			Body string `xml:",chardata"`
		} `xml:"content"`
		Authors []struct {
			Name string `xml:"name"`
		} `xml:"author"`
	} `xml:"entry"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
}

func parseAtom(data []byte) (*Feed, error) {
	var doc atomDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("feed: parse atom: %w", err)
	}
	out := &Feed{
		Title:   strings.TrimSpace(doc.Title),
		Link:    alternateLink(doc.Links),
		Entries: make([]Entry, 0, len(doc.Entries)),
	}
	for _, it := range doc.Entries {
		e := Entry{
			GUID:      strings.TrimSpace(it.ID),
			Title:     strings.TrimSpace(it.Title),
			Link:      alternateLink(it.Links),
			Summary:   strings.TrimSpace(it.Summary),
			Content:   strings.TrimSpace(it.Content.Body),
			Published: firstNonEmpty(it.Published, it.Updated),
		}
		if len(it.Authors) > 0 {
			e.Author = strings.TrimSpace(it.Authors[0].Name)
		}
		if e.GUID == "" {
			e.GUID = e.Link
		}
		out.Entries = append(out.Entries, e)
	}
	return out, nil
}

// alternateLink prefers rel="alternate" (or no rel), falling back to the
// first link present.
func alternateLink(links []atomLink) string {
	for _, l := range links {
		if l.Rel == "alternate" || l.Rel == "" {
			return strings.TrimSpace(l.Href)
		}
	}
	if len(links) > 0 {
		return strings.TrimSpace(links[0].Href)
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
